package importer

import (
	"encoding/base64"
	"net/http"

	"recipe-importer/internal/core/mealie"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// saveRecipeRequest 食譜寫入請求
type saveRecipeRequest struct {
	Recipe          *common.Recipe `json:"recipe" binding:"required"`
	SourceURL       string         `json:"source_url"`
	ThumbnailBase64 string         `json:"thumbnail_base64"`
}

// SaveRecipe 把抽取出的食譜寫入 Mealie
// 匯入端點回傳的結果由客戶端確認（或編輯）後送到這裡持久化
func (h *Handler) SaveRecipe(c *gin.Context) {
	var req saveRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "缺少 recipe 欄位",
		})
		return
	}

	var thumbnail []byte
	if req.ThumbnailBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ThumbnailBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{
				Code:    common.ErrCodeInvalidRequest,
				Message: "thumbnail_base64 不是有效的 base64 內容",
			})
			return
		}
		thumbnail = data
	}

	req.Recipe.ApplyDefaults()
	slug, err := h.catalog.CreateRecipe(c.Request.Context(), req.Recipe, mealie.UpsertOptions{
		SourceURL: req.SourceURL,
		Thumbnail: thumbnail,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	common.LogInfo("食譜已儲存",
		zap.String("食譜", req.Recipe.Name),
		zap.String("slug", slug),
	)
	c.JSON(http.StatusCreated, gin.H{"slug": slug})
}
