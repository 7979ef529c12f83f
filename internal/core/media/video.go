package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// VideoInfo 從社群平台下載的影片與其詮釋資料
type VideoInfo struct {
	Data      []byte
	Filename  string
	Title     string
	Caption   string
	Platform  string
	URL       string
	Duration  int // 秒
	Thumbnail []byte
}

// downloadTimeout 整個 yt-dlp 下載流程的上限
const downloadTimeout = 5 * time.Minute

// supportedPlatforms 支援的社群平台網域
var supportedPlatforms = []string{
	"tiktok.com",
	"instagram.com",
	"youtube.com",
	"youtu.be",
	"facebook.com",
	"fb.watch",
	"twitter.com",
	"x.com",
}

// DetectPlatform 從網址判斷社群平台名稱
func DetectPlatform(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "tiktok.com"):
		return "TikTok"
	case strings.Contains(lower, "instagram.com"):
		return "Instagram"
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return "YouTube"
	case strings.Contains(lower, "facebook.com"), strings.Contains(lower, "fb.watch"):
		return "Facebook"
	case strings.Contains(lower, "twitter.com"), strings.Contains(lower, "x.com"):
		return "Twitter/X"
	default:
		return "未知平台"
	}
}

// IsSupportedURL 檢查網址是否來自支援的平台
func IsSupportedURL(url string) bool {
	lower := strings.ToLower(url)
	for _, platform := range supportedPlatforms {
		if strings.Contains(lower, platform) {
			return true
		}
	}
	return false
}

// videoMetadata yt-dlp 的 info.json 中我們關心的欄位
type videoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    float64  `json:"duration"`
	Tags        []string `json:"tags"`
}

// DownloadVideo 以 yt-dlp 下載社群平台影片與詮釋資料
// maxDurationMin 為影片長度上限（分鐘），超過即中止
func DownloadVideo(ctx context.Context, url string, maxDurationMin int) (*VideoInfo, error) {
	platform := DetectPlatform(url)
	common.LogInfo("下載影片", zap.String("平台", platform), zap.String("url", url))

	tmpDir, err := os.MkdirTemp("", "recipe-video-*")
	if err != nil {
		return nil, common.NewMediaProcessingError("無法建立暫存目錄", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPath := filepath.Join(tmpDir, "video.mp4")
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	// 固定輸出檔名，避免超長的影片標題變成檔名
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--no-warnings",
		"--no-playlist",
		"-o", outputPath,
		"--write-info-json",
		"--write-thumbnail",
		"--format", "best[ext=mp4]/mp4/best",
		url,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, common.NewMediaProcessingError("影片下載逾時（超過 5 分鐘）", nil)
		}
		if _, ok := err.(*exec.Error); ok {
			return nil, common.NewMediaProcessingError("找不到 yt-dlp，請先安裝", err)
		}
		return nil, classifyDownloadError(string(output))
	}

	meta, err := readInfoJSON(tmpDir)
	if err != nil {
		return nil, err
	}

	duration := int(meta.Duration)
	if maxDurationMin > 0 && duration > maxDurationMin*60 {
		return nil, common.NewMediaProcessingError(
			fmt.Sprintf("影片太長（%d 分鐘），上限 %d 分鐘", duration/60, maxDurationMin), nil)
	}

	videoPath, err := findVideoFile(tmpDir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, common.NewMediaProcessingError("無法讀取下載的影片", err)
	}
	common.LogInfo("影片下載完成",
		zap.String("檔名", filepath.Base(videoPath)),
		zap.Int("大小MB", len(data)/1024/1024),
		zap.Int("長度秒", duration),
	)

	return &VideoInfo{
		Data:      data,
		Filename:  filepath.Base(videoPath),
		Title:     meta.Title,
		Caption:   buildCaption(meta),
		Platform:  platform,
		URL:       url,
		Duration:  duration,
		Thumbnail: readThumbnail(tmpDir),
	}, nil
}

// classifyDownloadError 把常見的 yt-dlp 錯誤翻成好懂的訊息
func classifyDownloadError(output string) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(output, "Video unavailable"):
		return common.NewMediaProcessingError("影片無法取得或為私人影片", nil)
	case strings.Contains(output, "Sign in") || strings.Contains(lower, "login"):
		return common.NewMediaProcessingError("影片需要登入才能觀看，無法匯入", nil)
	case strings.Contains(lower, "not found") || strings.Contains(output, "404"):
		return common.NewMediaProcessingError("找不到影片，連結可能已失效", nil)
	default:
		msg := output
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return common.NewMediaProcessingError(fmt.Sprintf("影片下載失敗：%s", msg), nil)
	}
}

// readInfoJSON 讀取 yt-dlp 產生的詮釋資料
func readInfoJSON(dir string) (*videoMetadata, error) {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.info.json"))
	if len(matches) == 0 {
		return nil, common.NewMediaProcessingError("下載完成但找不到影片詮釋資料", nil)
	}

	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, common.NewMediaProcessingError("無法讀取影片詮釋資料", err)
	}
	var meta videoMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, common.NewMediaProcessingError("影片詮釋資料格式錯誤", err)
	}
	return &meta, nil
}

// findVideoFile 在下載目錄中找出影片本體（排除 info.json 等附屬檔）
func findVideoFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", common.NewMediaProcessingError("無法讀取下載目錄", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if IsSupportedVideoExt(ext) && !strings.Contains(name, ".info") {
			path := filepath.Join(dir, name)
			if info, err := entry.Info(); err == nil && info.Size() < 10*1024 {
				return "", common.NewMediaProcessingError("下載的影片檔案是空的", nil)
			}
			return path, nil
		}
	}
	return "", common.NewMediaProcessingError("下載完成但找不到影片檔案", nil)
}

// readThumbnail 讀取 yt-dlp 附帶下載的縮圖，沒有就回傳 nil
func readThumbnail(dir string) []byte {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".webp", ".image":
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil
			}
			common.LogDebug("找到影片縮圖",
				zap.String("檔名", entry.Name()),
				zap.Int("大小KB", len(data)/1024),
			)
			return data
		}
	}
	return nil
}

// buildCaption 組合影片的說明文字：內文優先，沒有就用標題，最後補 hashtag
func buildCaption(meta *videoMetadata) string {
	caption := meta.Description
	if caption == "" {
		caption = meta.Title
	}

	if len(meta.Tags) > 0 {
		tags := meta.Tags
		if len(tags) > 10 {
			tags = tags[:10]
		}
		var parts []string
		for _, tag := range tags {
			parts = append(parts, "#"+tag)
		}
		hashtags := strings.Join(parts, " ")
		if hashtags != "" && !strings.Contains(caption, hashtags) {
			caption = caption + "\n\nHashtags: " + hashtags
		}
	}
	return strings.TrimSpace(caption)
}

// ExtractFrame 以 ffmpeg 從影片中擷取指定秒數的單一畫面（JPEG）
func ExtractFrame(ctx context.Context, videoData []byte, timestampSeconds int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "recipe-frame-*")
	if err != nil {
		return nil, common.NewMediaProcessingError("無法建立暫存目錄", err)
	}
	defer os.RemoveAll(tmpDir)

	videoPath := filepath.Join(tmpDir, "video.mp4")
	framePath := filepath.Join(tmpDir, "frame.jpg")
	if err := os.WriteFile(videoPath, videoData, 0o600); err != nil {
		return nil, common.NewMediaProcessingError("無法寫入暫存影片", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	common.LogInfo("擷取影片畫面", zap.Int("秒數", timestampSeconds))
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", strconv.Itoa(timestampSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		msg := string(output)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, common.NewMediaProcessingError(fmt.Sprintf("ffmpeg 擷取畫面失敗：%s", msg), err)
	}

	frame, err := os.ReadFile(framePath)
	if err != nil {
		return nil, common.NewMediaProcessingError("無法讀取擷取的畫面", err)
	}
	return frame, nil
}
