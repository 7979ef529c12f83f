package gemini

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// retryDelayPattern 從配額錯誤訊息中擷取建議等待秒數
var retryDelayPattern = regexp.MustCompile(`(?i)retry in (\d+)`)

// Client Gemini API 客戶端
// 封裝內容生成、配額探測與大型媒體（影片）上傳的生命週期
type Client struct {
	config *config.GeminiConfig
	genai  *genai.Client
}

// NewClient 創建 Gemini 客戶端
func NewClient(ctx context.Context, cfg *config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		config: cfg,
		genai:  client,
	}, nil
}

// GenerateContent 對指定模型發出單次生成請求，回傳回應文字
// 失敗時回傳分類後的錯誤（配額 / 模型不可用 / 過載 / 其他）
func (c *Client) GenerateContent(ctx context.Context, model string, parts []*genai.Part) (string, error) {
	start := time.Now()

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	res, err := c.genai.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		classified := c.classifyError(model, err)
		common.LogAICall(model, time.Since(start), classified)
		return "", classified
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		err := common.NewProviderError(model, fmt.Errorf("empty candidates in response"))
		common.LogAICall(model, time.Since(start), err)
		return "", err
	}

	text := res.Candidates[0].Content.Parts[0].Text
	if text == "" {
		err := common.NewProviderError(model, fmt.Errorf("empty content in response"))
		common.LogAICall(model, time.Since(start), err)
		return "", err
	}

	common.LogAICall(model, time.Since(start), nil)
	return text, nil
}

// CheckQuota 以最小請求探測指定模型的配額狀態
func (c *Client) CheckQuota(ctx context.Context, model string) (bool, string) {
	_, err := c.GenerateContent(ctx, model, []*genai.Part{genai.NewPartFromText("請只回覆：OK")})
	if err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("配額正常，模型：%s", model)
}

// classifyError 將供應商錯誤轉為分類錯誤
// 依錯誤字串比對（SDK 未提供穩定的錯誤型別）
func (c *Client) classifyError(model string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	// 配額耗盡
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(lower, "quota") {
		retryAfter := 0
		if m := retryDelayPattern.FindStringSubmatch(msg); m != nil {
			retryAfter, _ = strconv.Atoi(m[1])
		}
		return common.NewQuotaError(model, retryAfter)
	}

	// 模型不存在或不可用
	if strings.Contains(msg, "404") || strings.Contains(lower, "not found") {
		return common.NewModelUnavailableError(model, err)
	}

	// 服務過載
	if strings.Contains(msg, "503") || strings.Contains(lower, "overloaded") || strings.Contains(msg, "UNAVAILABLE") {
		return common.NewOverloadedError(model, err)
	}

	return common.NewProviderError(model, err)
}

// UploadFile 上傳大型媒體並等待供應商端處理完成
// 輪詢間隔與次數受設定限制，超過視為 MediaProcessingFailed
func (c *Client) UploadFile(ctx context.Context, data []byte, mimeType string) (*genai.File, error) {
	common.LogInfo("上傳媒體到 Gemini",
		zap.Int("大小KB", len(data)/1024),
		zap.String("mime_type", mimeType),
	)

	file, err := c.genai.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return nil, common.NewMediaProcessingError("媒體上傳失敗", err)
	}

	// 等待供應商端處理完成（有界輪詢，不是無限迴圈）
	attempts := 0
	for file.State == genai.FileStateProcessing {
		attempts++
		if attempts > c.config.FilePollMaxAttempts {
			c.DeleteFile(ctx, file.Name)
			return nil, common.NewMediaProcessingError(
				fmt.Sprintf("媒體處理逾時（等待超過 %s）",
					time.Duration(c.config.FilePollMaxAttempts)*c.config.FilePollInterval), nil)
		}

		select {
		case <-ctx.Done():
			c.DeleteFile(context.Background(), file.Name)
			return nil, ctx.Err()
		case <-time.After(c.config.FilePollInterval):
		}

		file, err = c.genai.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, common.NewMediaProcessingError("查詢媒體處理狀態失敗", err)
		}
		common.LogDebug("等待媒體處理",
			zap.Int("輪詢次數", attempts),
			zap.String("state", string(file.State)),
		)
	}

	if file.State == genai.FileStateFailed {
		detail := "未知原因"
		if file.Error != nil && file.Error.Message != "" {
			detail = file.Error.Message
		}
		c.DeleteFile(ctx, file.Name)
		return nil, common.NewMediaProcessingError(fmt.Sprintf("供應商端媒體處理失敗：%s", detail), nil)
	}

	common.LogInfo("媒體處理完成",
		zap.String("name", file.Name),
		zap.String("state", string(file.State)),
	)
	return file, nil
}

// DeleteFile 刪除供應商端的媒體檔案（盡力而為，失敗僅記錄）
func (c *Client) DeleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if _, err := c.genai.Files.Delete(ctx, name, nil); err != nil {
		common.LogWarn("無法刪除供應商端媒體",
			zap.String("name", name),
			zap.Error(err),
		)
		return
	}
	common.LogDebug("供應商端媒體已刪除", zap.String("name", name))
}
