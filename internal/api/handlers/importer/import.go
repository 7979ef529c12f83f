package importer

import (
	"io"
	"mime/multipart"
	"net/http"

	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/core/media"
	"recipe-importer/internal/infrastructure/cache"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ImportPDF 從 PDF 匯入食譜
// 表單欄位：file（PDF 檔案）、model（可選的起始模型）
func (h *Handler) ImportPDF(c *gin.Context) {
	data, err := readFormFile(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "缺少 PDF 檔案（表單欄位 file）",
		})
		return
	}

	key := cache.Key("pdf", data)
	if result, ok := h.cachedResult(c.Request.Context(), key); ok {
		c.JSON(http.StatusOK, result)
		return
	}

	text, err := media.ExtractPDFText(data)
	if err != nil {
		respondError(c, err)
		return
	}

	obs, events := fallback.CollectEvents()
	recipe, usedModel, err := h.engine.FromText(c.Request.Context(), text, c.PostForm("model"), obs)
	if err != nil {
		respondError(c, err)
		return
	}

	result := &ImportResult{
		Recipe:        recipe,
		UsedModel:     usedModel,
		ModelSwitches: *events,
	}
	h.storeResult(c.Request.Context(), key, result)
	c.JSON(http.StatusOK, result)
}

// ImportImages 從一或多張照片匯入食譜
// 表單欄位：images（可重複）、model（可選的起始模型）
func (h *Handler) ImportImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "無法解析上傳內容",
		})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "缺少圖片（表單欄位 images）",
		})
		return
	}

	images := make([][]byte, 0, len(files))
	var combined []byte
	for _, fh := range files {
		data, err := readMultipartFile(fh)
		if err != nil {
			respondError(c, common.NewMediaProcessingError("讀取上傳圖片失敗", err))
			return
		}
		if err := media.ValidateImage(data, h.config.Media.MaxImageBytes); err != nil {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{
				Code:    common.ErrCodeInvalidRequest,
				Message: err.Error(),
			})
			return
		}
		images = append(images, data)
		combined = append(combined, []byte(common.HashBytes(data))...)
	}

	key := cache.Key("images", combined)
	if result, ok := h.cachedResult(c.Request.Context(), key); ok {
		c.JSON(http.StatusOK, result)
		return
	}

	common.LogInfo("圖片匯入開始", zap.Int("圖片數", len(images)))

	obs, events := fallback.CollectEvents()
	recipe, usedModel, bestIndex, err := h.engine.FromImages(c.Request.Context(), images, c.PostForm("model"), obs)
	if err != nil {
		respondError(c, err)
		return
	}

	result := &ImportResult{
		Recipe:         recipe,
		UsedModel:      usedModel,
		ModelSwitches:  *events,
		BestImageIndex: &bestIndex,
	}
	h.storeResult(c.Request.Context(), key, result)
	c.JSON(http.StatusOK, result)
}

// readFormFile 讀取單一上傳檔案的內容
func readFormFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	return readMultipartFile(fh)
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
