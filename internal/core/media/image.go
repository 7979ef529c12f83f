package media

import (
	"bytes"
	"fmt"
)

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	riffSignature = []byte("RIFF")
	webpSignature = []byte("WEBP")
)

// DetectImageMIME 從檔頭判斷圖片的 MIME 類型
// 無法辨識時當作 JPEG 處理
func DetectImageMIME(data []byte) string {
	if len(data) >= 8 && bytes.Equal(data[:8], pngSignature) {
		return "image/png"
	}
	if len(data) > 12 && bytes.Equal(data[:4], riffSignature) && bytes.Equal(data[8:12], webpSignature) {
		return "image/webp"
	}
	return "image/jpeg"
}

// ImageExtension 回傳對應 MIME 類型的副檔名（含點）
func ImageExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// ValidateImage 檢查圖片資料是否可接受
func ValidateImage(data []byte, maxBytes int64) error {
	if len(data) == 0 {
		return fmt.Errorf("圖片資料為空")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("圖片過大：%d bytes（上限 %d）", len(data), maxBytes)
	}
	return nil
}

// videoMIMETypes 影片副檔名對應的 MIME 類型
var videoMIMETypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// VideoMIMEType 回傳影片副檔名對應的 MIME 類型，不認識的一律當 mp4
func VideoMIMEType(ext string) string {
	if mime, ok := videoMIMETypes[ext]; ok {
		return mime
	}
	return "video/mp4"
}

// IsSupportedVideoExt 回傳副檔名是否為支援的影片格式
func IsSupportedVideoExt(ext string) bool {
	_, ok := videoMIMETypes[ext]
	return ok
}
