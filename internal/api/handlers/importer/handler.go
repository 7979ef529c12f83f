package importer

import (
	"context"
	"errors"
	"net/http"

	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/core/mealie"
	"recipe-importer/internal/core/media"
	"recipe-importer/internal/core/recipe/extract"
	"recipe-importer/internal/infrastructure/cache"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/infrastructure/queue"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Extractor 食譜抽取引擎的操作面
type Extractor interface {
	FromText(ctx context.Context, text, model string, obs fallback.Observer) (*common.Recipe, string, error)
	FromImages(ctx context.Context, images [][]byte, model string, obs fallback.Observer) (*common.Recipe, string, int, error)
	FromVideo(ctx context.Context, in extract.VideoInput, model string, obs fallback.Observer) (*extract.VideoResult, error)
}

// Cataloger 食譜後端的寫入面
type Cataloger interface {
	CreateRecipe(ctx context.Context, recipe *common.Recipe, opts mealie.UpsertOptions) (string, error)
}

// Handler 匯入 API 處理器
type Handler struct {
	config  *config.Config
	engine  Extractor
	catalog Cataloger
	store   cache.Store
	jobs    *queue.Manager

	// 外部程序呼叫，測試時可替換
	downloadVideo func(ctx context.Context, url string, maxDurationMin int) (*media.VideoInfo, error)
	extractFrame  func(ctx context.Context, videoData []byte, timestampSeconds int) ([]byte, error)
}

// NewHandler 創建匯入處理器
func NewHandler(cfg *config.Config, engine Extractor, catalog Cataloger, store cache.Store, jobs *queue.Manager) *Handler {
	return &Handler{
		config:        cfg,
		engine:        engine,
		catalog:       catalog,
		store:         store,
		jobs:          jobs,
		downloadVideo: media.DownloadVideo,
		extractFrame:  media.ExtractFrame,
	}
}

// ImportResult 匯入端點的統一回應
type ImportResult struct {
	Recipe           *common.Recipe            `json:"recipe"`
	UsedModel        string                    `json:"used_model"`
	ModelSwitches    []common.ModelSwitchEvent `json:"model_switches,omitempty"`
	BestImageIndex   *int                      `json:"best_image_index,omitempty"`
	BestFrameSeconds int                       `json:"best_frame_seconds,omitempty"`
	ThumbnailBase64  string                    `json:"thumbnail_base64,omitempty"`
	Platform         string                    `json:"platform,omitempty"`
	SourceURL        string                    `json:"source_url,omitempty"`
	Caption          string                    `json:"caption,omitempty"`
	CacheHit         bool                      `json:"cache_hit,omitempty"`
}

// respondError 把分類錯誤轉成對應的 HTTP 回應
func respondError(c *gin.Context, err error) {
	var ie *common.ImportError
	if errors.As(err, &ie) {
		c.JSON(ie.HTTPStatus(), common.ErrorResponse{
			Code:    ie.Code,
			Message: ie.Error(),
		})
		return
	}
	if common.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: err.Error(),
		})
		return
	}

	common.LogError("未分類的處理錯誤", zap.Error(err))
	c.JSON(http.StatusInternalServerError, common.ErrorResponse{
		Code:    common.ErrCodeInternalError,
		Message: "伺服器內部錯誤",
	})
}

// cachedResult 查詢快取的匯入結果
func (h *Handler) cachedResult(ctx context.Context, key string) (*ImportResult, bool) {
	raw, err := h.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var result ImportResult
	if err := common.ParseJSON(raw, &result); err != nil {
		common.LogWarn("快取內容無法解析，忽略", zap.String("鍵", key), zap.Error(err))
		return nil, false
	}
	result.CacheHit = true
	return &result, true
}

// storeResult 寫入匯入結果快取（失敗只記錄）
func (h *Handler) storeResult(ctx context.Context, key string, result *ImportResult) {
	raw, err := common.ToJSON(result)
	if err != nil {
		return
	}
	if err := h.store.Set(ctx, key, raw); err != nil && !errors.Is(err, common.ErrCacheDisabled) {
		common.LogWarn("寫入快取失敗", zap.String("鍵", key), zap.Error(err))
	}
}
