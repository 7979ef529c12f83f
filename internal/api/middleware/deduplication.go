package middleware

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	// 請求指紋緩存，用於去重
	requestCache = struct {
		sync.RWMutex
		requests map[string]time.Time
	}{
		requests: make(map[string]time.Time),
	}

	cleanupOnce sync.Once
)

func startDeduplicationCleanup(window time.Duration) {
	cleanupOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				now := time.Now()
				requestCache.Lock()
				for k, t := range requestCache.requests {
					if now.Sub(t) > 10*window {
						delete(requestCache.requests, k)
					}
				}
				requestCache.Unlock()
			}
		}()
	})
}

// Deduplication 請求去重中間件
// 同一份媒體在去重視窗內重複 POST（例如前端連點）直接擋下，
// 避免同一支影片觸發兩次昂貴的下載與 AI 分析
func Deduplication(cfg *config.Config) gin.HandlerFunc {
	window := 1 * time.Second
	if cfg != nil && cfg.DedupWindow > 0 {
		window = cfg.DedupWindow
	}
	startDeduplicationCleanup(window)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		// 指紋 = 方法 + 路徑 + 請求體雜湊
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("讀取請求體失敗", zap.Error(err))
				c.Next()
				return
			}
			bodyHash = common.HashBytes(body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		fingerprint := c.Request.Method + ":" + c.Request.URL.Path
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		now := time.Now()
		requestCache.RLock()
		if lastTime, exists := requestCache.requests[fingerprint]; exists {
			if now.Sub(lastTime) <= window {
				requestCache.RUnlock()
				c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrorResponse{
					Code:    common.ErrCodeTooManyRequests,
					Message: "相同的匯入請求過於頻繁",
				})
				return
			}
		}
		requestCache.RUnlock()

		requestCache.Lock()
		requestCache.requests[fingerprint] = now
		requestCache.Unlock()

		c.Next()
	}
}
