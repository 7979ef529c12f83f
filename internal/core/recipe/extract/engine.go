package extract

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/core/media"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Generator 帶備援的內容生成，由 fallback.Driver 實現
type Generator interface {
	Generate(ctx context.Context, startModel string, parts []*genai.Part, obs fallback.Observer) (string, string, error)
}

// FileStore 大型媒體的上傳與清理，由 gemini.Client 實現
type FileStore interface {
	UploadFile(ctx context.Context, data []byte, mimeType string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string)
}

// Engine 食譜抽取引擎
// 負責組裝提示詞、呼叫模型並把回應正規化成統一的食譜結構
// 引擎本身無狀態，快取與佇列由 API 層處理
type Engine struct {
	driver Generator
	files  FileStore
}

// NewEngine 創建抽取引擎
func NewEngine(driver Generator, files FileStore) *Engine {
	return &Engine{
		driver: driver,
		files:  files,
	}
}

// VideoInput 影片抽取的輸入
// Progress 為可選的進度回報，與呼叫同流程同步觸發
type VideoInput struct {
	Data            []byte
	Filename        string
	Caption         string
	DurationSeconds float64
	Progress        func(string)
}

func (in VideoInput) report(msg string) {
	if in.Progress != nil {
		in.Progress(msg)
	}
}

// VideoResult 影片抽取的結果
// BestFrameSeconds 為封面畫面的時間點，找不到時為 0
type VideoResult struct {
	Recipe           *common.Recipe
	UsedModel        string
	BestFrameSeconds int
}

// imageExtraction 圖片模式的回應結構，多了封面圖片索引
type imageExtraction struct {
	common.Recipe
	BestImageIndex imageIndex `json:"best_image_index"`
}

// imageIndex 寬鬆解析模型回傳的封面索引
// 模型偶爾會回非整數（小數、字串），這些值一律視為未提供而非解析失敗
type imageIndex struct {
	value *int
}

func (x *imageIndex) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	i, err := n.Int64()
	if err != nil {
		return nil
	}
	v := int(i)
	x.value = &v
	return nil
}

// frameExtraction 封面時間點分析的回應結構
type frameExtraction struct {
	BestTimestampSeconds int    `json:"best_timestamp_seconds"`
	Description          string `json:"description"`
}

// FromText 從純文字（如 PDF 抽出的內容）抽取食譜
// 回傳食譜與實際完成請求的模型名稱
func (e *Engine) FromText(ctx context.Context, text, model string, obs fallback.Observer) (*common.Recipe, string, error) {
	parts := []*genai.Part{genai.NewPartFromText(buildTextPrompt(text))}

	raw, usedModel, err := e.driver.Generate(ctx, model, parts, obs)
	if err != nil {
		return nil, usedModel, err
	}

	recipe := &common.Recipe{}
	if err := parseResponse(raw, recipe); err != nil {
		return nil, usedModel, err
	}
	recipe.ApplyDefaults()

	common.LogInfo("從文字抽取食譜完成",
		zap.String("食譜", recipe.Name),
		zap.String("模型", usedModel),
	)
	return recipe, usedModel, nil
}

// FromImages 從多張圖片抽取食譜並選出最適合當封面的一張
// 回傳食譜、實際使用的模型與封面圖片索引（0 起算，夾取到有效範圍）
func (e *Engine) FromImages(ctx context.Context, images [][]byte, model string, obs fallback.Observer) (*common.Recipe, string, int, error) {
	parts := []*genai.Part{genai.NewPartFromText(buildImagePrompt(len(images) > 1))}
	for i, img := range images {
		mimeType := media.DetectImageMIME(img)
		common.LogDebug("加入圖片",
			zap.Int("序號", i+1),
			zap.Int("大小KB", len(img)/1024),
			zap.String("mime_type", mimeType),
		)
		parts = append(parts, genai.NewPartFromBytes(img, mimeType))
	}

	raw, usedModel, err := e.driver.Generate(ctx, model, parts, obs)
	if err != nil {
		return nil, usedModel, 0, err
	}

	var result imageExtraction
	if err := parseResponse(raw, &result); err != nil {
		return nil, usedModel, 0, err
	}
	result.Recipe.ApplyDefaults()

	bestIndex := clampImageIndex(result.BestImageIndex.value, len(images))
	common.LogInfo("從圖片抽取食譜完成",
		zap.String("食譜", result.Recipe.Name),
		zap.String("模型", usedModel),
		zap.Int("封面圖片", bestIndex+1),
	)
	return &result.Recipe, usedModel, bestIndex, nil
}

// FromImage 從單張圖片抽取食譜，FromImages 的簡便包裝
func (e *Engine) FromImage(ctx context.Context, image []byte, model string, obs fallback.Observer) (*common.Recipe, string, error) {
	recipe, usedModel, _, err := e.FromImages(ctx, [][]byte{image}, model, obs)
	return recipe, usedModel, err
}

// FromVideo 從影片抽取食譜
// 影片先上傳到供應商端，抽取完成後一併分析封面時間點，最後清理檔案
func (e *Engine) FromVideo(ctx context.Context, in VideoInput, model string, obs fallback.Observer) (*VideoResult, error) {
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if !media.IsSupportedVideoExt(ext) {
		ext = ".mp4"
	}
	mimeType := media.VideoMIMEType(ext)

	in.report("上傳影片中")
	file, err := e.files.UploadFile(ctx, in.Data, mimeType)
	if err != nil {
		return nil, err
	}
	defer e.files.DeleteFile(ctx, file.Name)

	parts := []*genai.Part{
		genai.NewPartFromURI(file.URI, mimeType),
		genai.NewPartFromText(buildVideoPrompt(in.Caption)),
	}

	in.report("分析影片內容中")
	raw, usedModel, err := e.driver.Generate(ctx, model, parts, obs)
	if err != nil {
		return nil, err
	}

	recipe := &common.Recipe{}
	if err := parseResponse(raw, recipe); err != nil {
		return nil, err
	}
	recipe.ApplyDefaults()

	// 封面時間點是加值分析，任何失敗都退回 0 而不中斷匯入
	in.report("分析封面時間點中")
	bestFrame := e.bestFrameTimestamp(ctx, file, mimeType, usedModel, in.DurationSeconds, obs)

	common.LogInfo("從影片抽取食譜完成",
		zap.String("食譜", recipe.Name),
		zap.String("模型", usedModel),
		zap.Int("封面秒數", bestFrame),
	)
	return &VideoResult{
		Recipe:           recipe,
		UsedModel:        usedModel,
		BestFrameSeconds: bestFrame,
	}, nil
}

// bestFrameTimestamp 請模型在已上傳的影片中找出最適合當封面的秒數
func (e *Engine) bestFrameTimestamp(ctx context.Context, file *genai.File, mimeType, model string, duration float64, obs fallback.Observer) int {
	parts := []*genai.Part{
		genai.NewPartFromURI(file.URI, mimeType),
		genai.NewPartFromText(buildBestFramePrompt(duration)),
	}

	raw, _, err := e.driver.Generate(ctx, model, parts, obs)
	if err != nil {
		common.LogWarn("無法分析封面時間點，退回片頭", zap.Error(err))
		return 0
	}

	var result frameExtraction
	if err := parseResponse(raw, &result); err != nil {
		common.LogWarn("封面時間點回應無法解析，退回片頭", zap.Error(err))
		return 0
	}
	if result.BestTimestampSeconds < 0 {
		return 0
	}

	common.LogDebug("封面時間點",
		zap.Int("秒數", result.BestTimestampSeconds),
		zap.String("理由", result.Description),
	)
	return result.BestTimestampSeconds
}

// parseResponse 清理模型回應中的 JSON 並解析到目標結構
func parseResponse(raw string, v interface{}) error {
	cleaned := common.ExtractJSONObject(raw)
	if err := common.ParseJSON(cleaned, v); err != nil {
		common.LogError("模型回應不是有效的 JSON",
			zap.Error(err),
			zap.String("回應片段", truncate(raw, 200)),
		)
		return common.NewMalformedResponseError(err)
	}
	return nil
}

// clampImageIndex 將模型回傳的封面索引夾取到有效範圍，無效時退回 0
func clampImageIndex(idx *int, count int) int {
	if idx == nil || *idx < 0 || *idx >= count {
		return 0
	}
	return *idx
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
