package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-importer/internal/infrastructure/cache"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/infrastructure/queue"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BackendChecker 食譜後端的連線檢查
type BackendChecker interface {
	TestConnection(ctx context.Context) (bool, string)
}

// QuotaChecker AI 供應商的配額探測
type QuotaChecker interface {
	CheckQuota(ctx context.Context, model string) (bool, string)
}

// Handler 健康檢查處理器
type Handler struct {
	config  *config.Config
	backend BackendChecker
	quota   QuotaChecker
	jobs    *queue.Manager
	store   cache.Store
}

// NewHandler 創建健康檢查處理器
func NewHandler(cfg *config.Config, backend BackendChecker, quota QuotaChecker, jobs *queue.Manager, store cache.Store) *Handler {
	return &Handler{
		config:  cfg,
		backend: backend,
		quota:   quota,
		jobs:    jobs,
		store:   store,
	}
}

// Response 健康檢查響應
type Response struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// Check 整體健康檢查
func (h *Handler) Check(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := Response{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.config.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Queue: h.jobs.QueueStatus(),
		Cache: h.store.Stats(),
	}

	common.LogDebug("健康檢查",
		zap.String("client_ip", c.ClientIP()),
	)
	c.JSON(http.StatusOK, response)
}

// CheckMealie 食譜後端連線檢查
func (h *Handler) CheckMealie(c *gin.Context) {
	ok, message := h.backend.TestConnection(c.Request.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"connected": ok,
		"message":   message,
		"url":       h.config.Mealie.URL,
	})
}

// CheckQuota AI 供應商配額探測
// 會對指定模型發出一次最小請求，查詢參數 model 省略時用預設模型
func (h *Handler) CheckQuota(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		model = h.config.Gemini.DefaultModel
	}

	ok, message := h.quota.CheckQuota(c.Request.Context(), model)
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"available": ok,
		"model":     model,
		"message":   message,
	})
}

// Liveness 存活檢查
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness 就緒檢查
func (h *Handler) Readiness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
