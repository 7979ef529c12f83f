package media

import (
	"bytes"
	"strings"

	"recipe-importer/internal/pkg/common"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ExtractPDFText 從 PDF 內容抽出純文字
// 純圖片掃描的 PDF（沒有文字層）視為錯誤，呼叫端應改走圖片流程
func ExtractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", common.NewMediaProcessingError("無效的 PDF 格式", err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			common.LogWarn("讀取 PDF 頁面失敗", zap.Int("頁碼", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
		common.LogDebug("PDF 頁面", zap.Int("頁碼", i), zap.Int("字元數", len(text)))
	}

	full := strings.Join(parts, "\n")
	if strings.TrimSpace(full) == "" {
		return "", common.NewMediaProcessingError("PDF 沒有可抽取的文字（可能是掃描圖片，請改用圖片匯入）", nil)
	}

	common.LogInfo("PDF 文字抽取完成", zap.Int("字元數", len(full)))
	return full, nil
}
