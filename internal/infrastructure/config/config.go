package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Mealie    MealieConfig    `mapstructure:"mealie"`
	Media     MediaConfig     `mapstructure:"media"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Queue     QueueConfig     `mapstructure:"queue"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
	LogLevel    string        `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// GeminiConfig Gemini API 配置
type GeminiConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	DefaultModel string        `mapstructure:"default_model"`
	Models       []string      `mapstructure:"models"` // 優先順序 = 偏好順序（快/便宜優先）
	Timeout      time.Duration `mapstructure:"timeout"`
	// 大型媒體處理輪詢設定
	FilePollInterval    time.Duration `mapstructure:"file_poll_interval"`
	FilePollMaxAttempts int           `mapstructure:"file_poll_max_attempts"`
}

// MealieConfig 食譜後端（Mealie）配置
type MealieConfig struct {
	URL      string        `mapstructure:"url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MediaConfig 媒體限制配置
type MediaConfig struct {
	MaxImageBytes       int64 `mapstructure:"max_image_bytes"`
	MaxVideoDurationMin int   `mapstructure:"max_video_duration_min"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr"` // 空字串表示只用記憶體快取
}

// QueueConfig 匯入任務隊列設定
type QueueConfig struct {
	Workers int           `mapstructure:"workers"`
	MaxSize int           `mapstructure:"max_size"`
	JobTTL  time.Duration `mapstructure:"job_ttl"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時不視為錯誤）
	_ = godotenv.Load()

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.default_model", "GEMINI_MODEL")
	viper.BindEnv("mealie.url", "MEALIE_URL")
	viper.BindEnv("mealie.api_token", "MEALIE_API_TOKEN")
	viper.BindEnv("mealie.timeout", "MEALIE_TIMEOUT")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.redis_addr", "CACHE_REDIS_ADDR")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 添加調試日誌（logger 尚未初始化，改用 fmt.Println）
	fmt.Println("Loading configuration",
		"gemini_api_key:", maskAPIKey(viper.GetString("gemini.api_key")),
		"gemini_model:", viper.GetString("gemini.default_model"),
		"mealie_url:", viper.GetString("mealie.url"))

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// URL 正規化（移除結尾斜線）
	config.Mealie.URL = strings.TrimRight(config.Mealie.URL, "/")

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "recipe-importer")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "60s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Gemini 設定
	viper.SetDefault("gemini.default_model", "gemini-2.5-flash")
	viper.SetDefault("gemini.models", []string{
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-2.5-pro",
		"gemini-flash-lite-latest",
	})
	viper.SetDefault("gemini.timeout", "120s")
	viper.SetDefault("gemini.file_poll_interval", "3s")
	viper.SetDefault("gemini.file_poll_max_attempts", 60)

	// Mealie 設定
	viper.SetDefault("mealie.url", "http://localhost:9000")
	viper.SetDefault("mealie.timeout", "30s")

	// 媒體設定
	viper.SetDefault("media.max_image_bytes", 10*1024*1024) // 10MB
	viper.SetDefault("media.max_video_duration_min", 2)

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.cleanup_interval", "10m")
	viper.SetDefault("cache.redis_addr", "")

	// 隊列設定
	viper.SetDefault("queue.workers", 2)
	viper.SetDefault("queue.max_size", 20)
	viper.SetDefault("queue.job_ttl", "1h")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// 去重視窗
	viper.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證模型清單
	if len(config.Gemini.Models) == 0 {
		return fmt.Errorf("gemini model list is empty")
	}
	if config.Gemini.DefaultModel == "" {
		config.Gemini.DefaultModel = config.Gemini.Models[0]
	}
	if config.Gemini.FilePollInterval <= 0 || config.Gemini.FilePollMaxAttempts <= 0 {
		return fmt.Errorf("invalid gemini file poll settings")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	// 驗證隊列設定
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	return nil
}
