package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"recipe-importer/internal/api/handlers/health"
	"recipe-importer/internal/api/handlers/importer"
	"recipe-importer/internal/api/middleware"
	"recipe-importer/internal/core/ai/fallback"
	"recipe-importer/internal/core/ai/gemini"
	"recipe-importer/internal/core/mealie"
	"recipe-importer/internal/core/recipe/extract"
	"recipe-importer/internal/infrastructure/cache"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/infrastructure/queue"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 同步端點的請求超時（涵蓋一次完整的 AI 往返）
	timeoutDuration = 120 * time.Second

	// 請求體大小限制，依端點的媒體類型分級
	maxJSONBodySize  = 1 << 20   // 1MB
	maxPDFBodySize   = 20 << 20  // 20MB
	maxImageBodySize = 50 << 20  // 50MB
	maxVideoBodySize = 200 << 20 // 200MB
)

// SetupRouter 設置路由並組裝匯入管線
func SetupRouter(cfg *config.Config, store cache.Store, jobs *queue.Manager) (*gin.Engine, error) {
	common.LogInfo("開始設置路由",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 組裝匯入管線：Gemini 供應商 → 備援驅動 → 抽取引擎 → Mealie 客戶端
	geminiClient, err := gemini.NewClient(context.Background(), &cfg.Gemini)
	if err != nil {
		common.LogError("初始化 Gemini 客戶端失敗", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	driver := fallback.NewDriver(geminiClient, cfg.Gemini.Models)
	engine := extract.NewEngine(driver, geminiClient)
	mealieClient := mealie.NewClient(&cfg.Mealie)

	importHandler := importer.NewHandler(cfg, engine, mealieClient, store, jobs)
	healthHandler := health.NewHandler(cfg, mealieClient, geminiClient, jobs, store)

	common.LogInfo("匯入管線初始化完成",
		zap.Strings("候選模型", cfg.Gemini.Models),
		zap.String("mealie_url", cfg.Mealie.URL),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Int("queue_workers", cfg.Queue.Workers),
	)

	// 同步端點的請求超時
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("請求超時",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeoutDuration),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    common.ErrCodeBackendTimeout,
				Message: "請求處理超時",
			})
		}
	})

	// 健康檢查路由
	router.GET("/live", healthHandler.Liveness)
	router.GET("/ready", healthHandler.Readiness)

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	api.Use(middleware.Deduplication(cfg))
	{
		api.GET("/health", healthHandler.Check)
		api.GET("/health/mealie", healthHandler.CheckMealie)
		api.GET("/health/quota", healthHandler.CheckQuota)

		importGroup := api.Group("/import")
		{
			importGroup.POST("/pdf", middleware.BodySizeLimit(maxPDFBodySize), importHandler.ImportPDF)
			importGroup.POST("/images", middleware.BodySizeLimit(maxImageBodySize), importHandler.ImportImages)
			importGroup.POST("/video", middleware.BodySizeLimit(maxVideoBodySize), importHandler.ImportVideo)
			importGroup.POST("/url", middleware.BodySizeLimit(maxJSONBodySize), importHandler.ImportURL)
			importGroup.GET("/jobs/:id", importHandler.JobStatus)
		}

		api.POST("/recipes", middleware.BodySizeLimit(maxImageBodySize), importHandler.SaveRecipe)
	}

	common.LogInfo("路由設置完成",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	return router, nil
}
