package importer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/core/mealie"
	"recipe-importer/internal/core/media"
	"recipe-importer/internal/core/recipe/extract"
	"recipe-importer/internal/infrastructure/cache"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/infrastructure/queue"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExtractor 回傳預先設定的抽取結果
type stubExtractor struct {
	recipe      *common.Recipe
	usedModel   string
	bestIndex   int
	videoResult *extract.VideoResult
	err         error
}

func (s *stubExtractor) FromText(_ context.Context, _, _ string, _ fallback.Observer) (*common.Recipe, string, error) {
	return s.recipe, s.usedModel, s.err
}

func (s *stubExtractor) FromImages(_ context.Context, _ [][]byte, _ string, _ fallback.Observer) (*common.Recipe, string, int, error) {
	return s.recipe, s.usedModel, s.bestIndex, s.err
}

func (s *stubExtractor) FromVideo(_ context.Context, _ extract.VideoInput, _ string, _ fallback.Observer) (*extract.VideoResult, error) {
	return s.videoResult, s.err
}

// stubCatalog 記錄寫入呼叫
type stubCatalog struct {
	slug      string
	err       error
	gotRecipe *common.Recipe
	gotOpts   mealie.UpsertOptions
}

func (s *stubCatalog) CreateRecipe(_ context.Context, recipe *common.Recipe, opts mealie.UpsertOptions) (string, error) {
	s.gotRecipe = recipe
	s.gotOpts = opts
	return s.slug, s.err
}

func newTestHandler(t *testing.T, engine Extractor, catalog Cataloger) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Media.MaxVideoDurationMin = 10
	store, err := cache.New(&config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	jobs := queue.NewManager(&config.QueueConfig{Workers: 1, MaxSize: 4, JobTTL: time.Minute})
	t.Cleanup(jobs.Close)

	return NewHandler(cfg, engine, catalog, store, jobs)
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func waitForJob(t *testing.T, h *Handler, id string) queue.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := h.jobs.Get(id); ok && (job.State == queue.JobCompleted || job.State == queue.JobFailed) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("任務未在期限內結束")
	return queue.Job{}
}

func TestImportPDFMissingFile(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, &stubCatalog{})
	router := gin.New()
	router.POST("/import/pdf", h.ImportPDF)

	w := performJSON(router, http.MethodPost, "/import/pdf", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeInvalidRequest)
}

func TestImportURLUnsupportedPlatform(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, &stubCatalog{})
	router := gin.New()
	router.POST("/import/url", h.ImportURL)

	w := performJSON(router, http.MethodPost, "/import/url", map[string]string{
		"url": "https://example.com/video.mp4",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "不支援的平台")
}

func TestImportURLAsyncFlow(t *testing.T) {
	recipe := &common.Recipe{Name: "滷肉飯"}
	engine := &stubExtractor{videoResult: &extract.VideoResult{
		Recipe:           recipe,
		UsedModel:        "model-a",
		BestFrameSeconds: 42,
	}}
	h := newTestHandler(t, engine, &stubCatalog{})

	// 替換外部程序呼叫
	h.downloadVideo = func(_ context.Context, url string, _ int) (*media.VideoInfo, error) {
		return &media.VideoInfo{
			Data:      []byte("video-bytes"),
			Filename:  "video.mp4",
			Caption:   "阿嬤的滷肉飯 500g 五花肉",
			Platform:  "TikTok",
			URL:       url,
			Duration:  90,
			Thumbnail: []byte("platform-thumb"),
		}, nil
	}
	h.extractFrame = func(context.Context, []byte, int) ([]byte, error) {
		return []byte("ai-frame"), nil
	}

	router := gin.New()
	router.POST("/import/url", h.ImportURL)

	w := performJSON(router, http.MethodPost, "/import/url", map[string]string{
		"url": "https://www.tiktok.com/@cook/video/123",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)

	job := waitForJob(t, h, accepted.JobID)
	require.Equal(t, queue.JobCompleted, job.State)

	result, ok := job.Result.(*ImportResult)
	require.True(t, ok)
	assert.Equal(t, "滷肉飯", result.Recipe.Name)
	assert.Equal(t, "model-a", result.UsedModel)
	assert.Equal(t, 42, result.BestFrameSeconds)
	assert.Equal(t, "TikTok", result.Platform)
	assert.Equal(t, "https://www.tiktok.com/@cook/video/123", result.SourceURL)
	// AI 選的畫面優先於平台縮圖
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("ai-frame")), result.ThumbnailBase64)
}

func TestImportURLFrameFailureFallsBackToPlatformThumbnail(t *testing.T) {
	engine := &stubExtractor{videoResult: &extract.VideoResult{
		Recipe:           &common.Recipe{Name: "滷肉飯"},
		UsedModel:        "model-a",
		BestFrameSeconds: 42,
	}}
	h := newTestHandler(t, engine, &stubCatalog{})
	h.downloadVideo = func(_ context.Context, url string, _ int) (*media.VideoInfo, error) {
		return &media.VideoInfo{
			Data:      []byte("video-bytes"),
			Filename:  "video.mp4",
			Platform:  "YouTube",
			URL:       url,
			Thumbnail: []byte("platform-thumb"),
		}, nil
	}
	h.extractFrame = func(context.Context, []byte, int) ([]byte, error) {
		return nil, errors.New("ffmpeg not installed")
	}

	router := gin.New()
	router.POST("/import/url", h.ImportURL)

	w := performJSON(router, http.MethodPost, "/import/url", map[string]string{
		"url": "https://youtu.be/xyz",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))

	job := waitForJob(t, h, accepted.JobID)
	require.Equal(t, queue.JobCompleted, job.State)

	result := job.Result.(*ImportResult)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("platform-thumb")), result.ThumbnailBase64)
}

func TestImportURLDownloadFailure(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, &stubCatalog{})
	h.downloadVideo = func(context.Context, string, int) (*media.VideoInfo, error) {
		return nil, common.NewMediaProcessingError("影片無法取得或為私人影片", nil)
	}

	router := gin.New()
	router.POST("/import/url", h.ImportURL)

	w := performJSON(router, http.MethodPost, "/import/url", map[string]string{
		"url": "https://www.instagram.com/reel/abc/",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))

	job := waitForJob(t, h, accepted.JobID)
	assert.Equal(t, queue.JobFailed, job.State)
	assert.Contains(t, job.Error, "私人影片")
}

func TestJobStatusUnknown(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, &stubCatalog{})
	router := gin.New()
	router.GET("/import/jobs/:id", h.JobStatus)

	req := httptest.NewRequest(http.MethodGet, "/import/jobs/no-such-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveRecipePersistsToCatalog(t *testing.T) {
	catalog := &stubCatalog{slug: "braised-pork-rice"}
	h := newTestHandler(t, &stubExtractor{}, catalog)
	router := gin.New()
	router.POST("/recipes", h.SaveRecipe)

	thumbnail := base64.StdEncoding.EncodeToString([]byte("cover"))
	w := performJSON(router, http.MethodPost, "/recipes", map[string]interface{}{
		"recipe": map[string]interface{}{
			"name":        "滷肉飯",
			"recipeYield": "4 人份",
		},
		"source_url":       "https://www.tiktok.com/@cook/video/123",
		"thumbnail_base64": thumbnail,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "braised-pork-rice")

	require.NotNil(t, catalog.gotRecipe)
	assert.Equal(t, "滷肉飯", catalog.gotRecipe.Name)
	assert.Equal(t, "https://www.tiktok.com/@cook/video/123", catalog.gotOpts.SourceURL)
	assert.Equal(t, []byte("cover"), catalog.gotOpts.Thumbnail)
}

func TestSaveRecipeMissingRecipe(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, &stubCatalog{})
	router := gin.New()
	router.POST("/recipes", h.SaveRecipe)

	w := performJSON(router, http.MethodPost, "/recipes", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveRecipeBackendRejected(t *testing.T) {
	catalog := &stubCatalog{err: common.NewBackendRejectedError(422, `{"detail":"duplicate"}`)}
	h := newTestHandler(t, &stubExtractor{}, catalog)
	router := gin.New()
	router.POST("/recipes", h.SaveRecipe)

	w := performJSON(router, http.MethodPost, "/recipes", map[string]interface{}{
		"recipe": map[string]interface{}{"name": "重複的食譜"},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeBackendRejected)
}

// newMultipartImage 建立含單張圖片的 multipart 請求本體，回傳 Content-Type
func newMultipartImage(t *testing.T, buf *bytes.Buffer) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("images", "dish.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType()
}

func TestQuotaExhaustedMapsTo429(t *testing.T) {
	engine := &stubExtractor{err: common.NewQuotaExhaustedAll([]string{"model-a", "model-b"})}
	h := newTestHandler(t, engine, &stubCatalog{})
	router := gin.New()
	router.POST("/import/images", h.ImportImages)

	var buf bytes.Buffer
	mw := newMultipartImage(t, &buf)
	req := httptest.NewRequest(http.MethodPost, "/import/images", &buf)
	req.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeQuotaExhausted)
}
