package extract

import (
	"context"
	"errors"
	"testing"

	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// stubGenerator 依呼叫順序回傳預先排好的回應
type stubGenerator struct {
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	text  string
	model string
	err   error
}

func (s *stubGenerator) Generate(_ context.Context, _ string, _ []*genai.Part, _ fallback.Observer) (string, string, error) {
	if s.calls >= len(s.responses) {
		return "", "", errors.New("no more stubbed responses")
	}
	r := s.responses[s.calls]
	s.calls++
	return r.text, r.model, r.err
}

// stubFiles 記錄上傳與刪除呼叫
type stubFiles struct {
	uploadedMIME string
	uploadErr    error
	deleted      []string
}

func (s *stubFiles) UploadFile(_ context.Context, _ []byte, mimeType string) (*genai.File, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.uploadedMIME = mimeType
	return &genai.File{Name: "files/test-video", URI: "https://example.com/files/test-video"}, nil
}

func (s *stubFiles) DeleteFile(_ context.Context, name string) {
	s.deleted = append(s.deleted, name)
}

const sampleRecipeJSON = `{
	"name": "巴斯克乳酪蛋糕",
	"description": "外焦內嫩的乳酪蛋糕",
	"recipeYield": "8 人份",
	"recipeIngredient": [
		{"quantity": 500, "unit": "g", "food": "奶油乳酪", "note": ""},
		{"quantity": 0.5, "unit": "", "food": "檸檬", "note": "取皮屑"}
	],
	"recipeInstructions": [
		{"text": "先加入一半的奶油乳酪攪拌"},
		{"text": "烤箱預熱 220 度"}
	]
}`

func TestFromTextExtractsRecipe(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: sampleRecipeJSON, model: "model-a"},
	}}
	engine := NewEngine(gen, &stubFiles{})

	recipe, usedModel, err := engine.FromText(context.Background(), "食譜文字", "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, "model-a", usedModel)
	assert.Equal(t, "巴斯克乳酪蛋糕", recipe.Name)
	assert.Equal(t, "8 人份", recipe.RecipeYield)

	require.Len(t, recipe.RecipeIngredient, 2)
	// 份量保持原樣，不換算
	assert.Equal(t, 500.0, recipe.RecipeIngredient[0].QuantityValue())
	assert.Equal(t, "g", recipe.RecipeIngredient[0].UnitName())
	assert.Equal(t, 0.5, recipe.RecipeIngredient[1].QuantityValue())
	assert.Equal(t, "", recipe.RecipeIngredient[1].UnitName())

	require.Len(t, recipe.RecipeInstructions, 2)
	assert.Contains(t, recipe.RecipeInstructions[0].Text, "一半")
}

func TestFromTextHandlesFencedResponse(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: "以下是結果：\n```json\n" + sampleRecipeJSON + "\n```\n希望有幫助！", model: "model-a"},
	}}
	engine := NewEngine(gen, &stubFiles{})

	recipe, _, err := engine.FromText(context.Background(), "食譜文字", "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, "巴斯克乳酪蛋糕", recipe.Name)
}

func TestFromTextMalformedResponse(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: "抱歉，我無法處理這個請求。", model: "model-a"},
	}}
	engine := NewEngine(gen, &stubFiles{})

	_, _, err := engine.FromText(context.Background(), "食譜文字", "model-a", nil)

	require.Error(t, err)
	assert.True(t, common.HasErrorCode(err, common.ErrCodeMalformedResponse))
}

func TestFromTextAppliesDefaultName(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: `{"description": "沒有名字的食譜"}`, model: "model-a"},
	}}
	engine := NewEngine(gen, &stubFiles{})

	recipe, _, err := engine.FromText(context.Background(), "食譜文字", "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, common.DefaultRecipeName, recipe.Name)
}

func TestFromImagesReturnsBestIndex(t *testing.T) {
	response := `{"name": "煎餃", "recipeIngredient": [], "recipeInstructions": [], "best_image_index": 1}`
	gen := &stubGenerator{responses: []stubResponse{{text: response, model: "model-a"}}}
	engine := NewEngine(gen, &stubFiles{})

	images := [][]byte{[]byte("img0"), []byte("img1"), []byte("img2")}
	recipe, _, bestIndex, err := engine.FromImages(context.Background(), images, "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, "煎餃", recipe.Name)
	assert.Equal(t, 1, bestIndex)
}

func TestFromImagesClampsOutOfRangeIndex(t *testing.T) {
	response := `{"name": "煎餃", "best_image_index": 5}`
	gen := &stubGenerator{responses: []stubResponse{{text: response, model: "model-a"}}}
	engine := NewEngine(gen, &stubFiles{})

	images := [][]byte{[]byte("img0"), []byte("img1"), []byte("img2")}
	_, _, bestIndex, err := engine.FromImages(context.Background(), images, "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, bestIndex)
}

func TestFromImagesNonIntegerIndexDefaultsToZero(t *testing.T) {
	// 索引不是整數時退回 0，不能讓整份食譜解析失敗
	for _, response := range []string{
		`{"name": "煎餃", "best_image_index": 2.7}`,
		`{"name": "煎餃", "best_image_index": "第二張"}`,
		`{"name": "煎餃", "best_image_index": null}`,
	} {
		gen := &stubGenerator{responses: []stubResponse{{text: response, model: "model-a"}}}
		engine := NewEngine(gen, &stubFiles{})

		images := [][]byte{[]byte("img0"), []byte("img1"), []byte("img2")}
		recipe, _, bestIndex, err := engine.FromImages(context.Background(), images, "model-a", nil)

		require.NoError(t, err, response)
		assert.Equal(t, "煎餃", recipe.Name)
		assert.Equal(t, 0, bestIndex, response)
	}
}

func TestFromImagesDefaultsMissingIndex(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{{text: `{"name": "煎餃"}`, model: "model-a"}}}
	engine := NewEngine(gen, &stubFiles{})

	_, _, bestIndex, err := engine.FromImages(context.Background(), [][]byte{[]byte("img0")}, "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, bestIndex)
}

func TestFromVideoExtractsRecipeAndBestFrame(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: sampleRecipeJSON, model: "model-a"},
		{text: `{"best_timestamp_seconds": 45, "description": "成品上桌"}`, model: "model-a"},
	}}
	files := &stubFiles{}
	engine := NewEngine(gen, files)

	result, err := engine.FromVideo(context.Background(), VideoInput{
		Data:     []byte("video-bytes"),
		Filename: "rezept.mov",
		Caption:  "阿嬤的食譜 500g 麵粉",
	}, "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, "巴斯克乳酪蛋糕", result.Recipe.Name)
	assert.Equal(t, "model-a", result.UsedModel)
	assert.Equal(t, 45, result.BestFrameSeconds)
	assert.Equal(t, "video/quicktime", files.uploadedMIME)
	// 供應商端的檔案在完成後清理
	assert.Equal(t, []string{"files/test-video"}, files.deleted)
}

func TestFromVideoUnknownExtensionDefaultsToMP4(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: sampleRecipeJSON, model: "model-a"},
		{text: `{"best_timestamp_seconds": 0}`, model: "model-a"},
	}}
	files := &stubFiles{}
	engine := NewEngine(gen, files)

	_, err := engine.FromVideo(context.Background(), VideoInput{
		Data:     []byte("video-bytes"),
		Filename: "download.bin",
	}, "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, "video/mp4", files.uploadedMIME)
}

func TestFromVideoBestFrameFailureFallsBackToZero(t *testing.T) {
	gen := &stubGenerator{responses: []stubResponse{
		{text: sampleRecipeJSON, model: "model-a"},
		{err: common.NewOverloadedError("model-a", errors.New("503 overloaded"))},
	}}
	files := &stubFiles{}
	engine := NewEngine(gen, files)

	result, err := engine.FromVideo(context.Background(), VideoInput{
		Data:     []byte("video-bytes"),
		Filename: "clip.mp4",
	}, "model-a", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.BestFrameSeconds)
	assert.Len(t, files.deleted, 1)
}

func TestFromVideoUploadFailure(t *testing.T) {
	files := &stubFiles{uploadErr: common.NewMediaProcessingError("媒體上傳失敗", errors.New("network"))}
	engine := NewEngine(&stubGenerator{}, files)

	_, err := engine.FromVideo(context.Background(), VideoInput{
		Data:     []byte("video-bytes"),
		Filename: "clip.mp4",
	}, "model-a", nil)

	require.Error(t, err)
	assert.True(t, common.HasErrorCode(err, common.ErrCodeMediaProcessing))
	assert.Empty(t, files.deleted)
}
