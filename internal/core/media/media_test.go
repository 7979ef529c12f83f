package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectImageMIME(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 16)...)
	assert.Equal(t, "image/png", DetectImageMIME(png))

	webp := append([]byte("RIFF"), append(make([]byte, 4), []byte("WEBP")...)...)
	webp = append(webp, make([]byte, 8)...)
	assert.Equal(t, "image/webp", DetectImageMIME(webp))

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	assert.Equal(t, "image/jpeg", DetectImageMIME(jpeg))

	// 無法辨識的內容一律當 JPEG
	assert.Equal(t, "image/jpeg", DetectImageMIME([]byte("whatever")))
	assert.Equal(t, "image/jpeg", DetectImageMIME(nil))
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", ImageExtension("image/png"))
	assert.Equal(t, ".webp", ImageExtension("image/webp"))
	assert.Equal(t, ".jpg", ImageExtension("image/jpeg"))
	assert.Equal(t, ".jpg", ImageExtension("application/octet-stream"))
}

func TestValidateImage(t *testing.T) {
	assert.Error(t, ValidateImage(nil, 100))
	assert.Error(t, ValidateImage(make([]byte, 200), 100))
	assert.NoError(t, ValidateImage(make([]byte, 50), 100))
	assert.NoError(t, ValidateImage(make([]byte, 200), 0))
}

func TestVideoMIMEType(t *testing.T) {
	assert.Equal(t, "video/quicktime", VideoMIMEType(".mov"))
	assert.Equal(t, "video/webm", VideoMIMEType(".webm"))
	assert.Equal(t, "video/x-matroska", VideoMIMEType(".mkv"))
	// 不認識的副檔名一律當 mp4
	assert.Equal(t, "video/mp4", VideoMIMEType(".bin"))
	assert.Equal(t, "video/mp4", VideoMIMEType(""))
}

func TestDetectPlatform(t *testing.T) {
	assert.Equal(t, "TikTok", DetectPlatform("https://www.tiktok.com/@cook/video/123"))
	assert.Equal(t, "Instagram", DetectPlatform("https://www.instagram.com/reel/abc/"))
	assert.Equal(t, "YouTube", DetectPlatform("https://youtu.be/xyz"))
	assert.Equal(t, "Facebook", DetectPlatform("https://fb.watch/abc"))
	assert.Equal(t, "Twitter/X", DetectPlatform("https://x.com/user/status/1"))
	assert.Equal(t, "未知平台", DetectPlatform("https://example.com/video"))
}

func TestIsSupportedURL(t *testing.T) {
	assert.True(t, IsSupportedURL("https://www.TIKTOK.com/@cook/video/123"))
	assert.True(t, IsSupportedURL("https://youtube.com/watch?v=1"))
	assert.False(t, IsSupportedURL("https://example.com/video.mp4"))
}

func TestBuildCaption(t *testing.T) {
	meta := &videoMetadata{
		Title:       "阿嬤的滷肉飯",
		Description: "家傳配方 500g 五花肉",
		Tags:        []string{"滷肉飯", "台菜"},
	}
	caption := buildCaption(meta)
	assert.Contains(t, caption, "家傳配方")
	assert.Contains(t, caption, "#滷肉飯 #台菜")

	// 沒有內文時退回標題
	caption = buildCaption(&videoMetadata{Title: "阿嬤的滷肉飯"})
	assert.Equal(t, "阿嬤的滷肉飯", caption)
}
