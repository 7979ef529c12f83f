package importer

import (
	"context"
	"encoding/base64"
	"net/http"

	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/core/media"
	"recipe-importer/internal/core/recipe/extract"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ImportVideo 從上傳的影片匯入食譜（非同步）
// 表單欄位：file（影片檔）、caption（可選的說明文字）、model（可選）
// 回傳任務 ID，結果由 GET /import/jobs/:id 輪詢
func (h *Handler) ImportVideo(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "缺少影片檔案（表單欄位 file）",
		})
		return
	}

	data, err := readMultipartFile(fh)
	if err != nil {
		respondError(c, common.NewMediaProcessingError("讀取上傳影片失敗", err))
		return
	}

	filename := fh.Filename
	caption := c.PostForm("caption")
	model := c.PostForm("model")

	jobID, err := h.jobs.Submit(func(ctx context.Context, progress func(string)) (interface{}, error) {
		return h.runVideoImport(ctx, extract.VideoInput{
			Data:     data,
			Filename: filename,
			Caption:  caption,
		}, model, "", "", nil, progress)
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{
			Code:    common.ErrCodeTooManyRequests,
			Message: "匯入任務隊列已滿，請稍後再試",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// importURLRequest 社群網址匯入請求
type importURLRequest struct {
	URL   string `json:"url" binding:"required"`
	Model string `json:"model"`
}

// ImportURL 從社群平台網址匯入食譜（非同步）
// 下載影片與詮釋資料後走影片抽取流程，說明文字一併交給模型
func (h *Handler) ImportURL(c *gin.Context) {
	var req importURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "缺少 url 欄位",
		})
		return
	}
	if !media.IsSupportedURL(req.URL) {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "不支援的平台網址（支援 TikTok / Instagram / YouTube / Facebook / Twitter）",
		})
		return
	}

	jobID, err := h.jobs.Submit(func(ctx context.Context, progress func(string)) (interface{}, error) {
		progress("下載影片中")
		info, err := h.downloadVideo(ctx, req.URL, h.config.Media.MaxVideoDurationMin)
		if err != nil {
			return nil, err
		}

		return h.runVideoImport(ctx, extract.VideoInput{
			Data:            info.Data,
			Filename:        info.Filename,
			Caption:         info.Caption,
			DurationSeconds: float64(info.Duration),
		}, req.Model, info.Platform, req.URL, info.Thumbnail, progress)
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{
			Code:    common.ErrCodeTooManyRequests,
			Message: "匯入任務隊列已滿，請稍後再試",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// runVideoImport 影片匯入的共用流程：抽取、挑封面畫面、打包結果
// fallbackThumbnail 是平台縮圖，擷取不到封面畫面時使用
func (h *Handler) runVideoImport(ctx context.Context, in extract.VideoInput, model, platform, sourceURL string, fallbackThumbnail []byte, progress func(string)) (*ImportResult, error) {
	in.Progress = progress
	obs, events := fallback.CollectEvents()
	videoResult, err := h.engine.FromVideo(ctx, in, model, obs)
	if err != nil {
		return nil, err
	}

	// 封面來源優先順序：AI 選的畫面 > 平台縮圖
	thumbnail := fallbackThumbnail
	if videoResult.BestFrameSeconds > 0 {
		progress("擷取封面畫面中")
		if frame, err := h.extractFrame(ctx, in.Data, videoResult.BestFrameSeconds); err == nil {
			thumbnail = frame
		} else {
			common.LogWarn("封面畫面擷取失敗，改用平台縮圖", zap.Error(err))
		}
	}

	result := &ImportResult{
		Recipe:           videoResult.Recipe,
		UsedModel:        videoResult.UsedModel,
		ModelSwitches:    *events,
		BestFrameSeconds: videoResult.BestFrameSeconds,
		Platform:         platform,
		SourceURL:        sourceURL,
		Caption:          in.Caption,
	}
	if len(thumbnail) > 0 {
		result.ThumbnailBase64 = base64.StdEncoding.EncodeToString(thumbnail)
	}
	return result, nil
}

// JobStatus 查詢匯入任務狀態
func (h *Handler) JobStatus(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, common.ErrorResponse{
			Code:    common.ErrCodeNotFound,
			Message: "找不到指定的匯入任務",
		})
		return
	}
	c.JSON(http.StatusOK, job)
}
