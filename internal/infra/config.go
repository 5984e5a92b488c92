package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	TelegramBotToken      string
	TelegramAPIBaseURL    string
	TelegramWebhookSecret string

	MiniMaxAPIKey  string
	MiniMaxGroupID string
	MiniMaxBaseURL string
	VideoModel     string
	MusicModel     string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	SupabaseURL        string
	SupabaseServiceKey string
	VideoBucket        string
	MusicBucket        string
	ImageBucket        string
	StoragePath        string
	StorageBaseURL     string

	StartingBalance int
	VideoCost       int
	MusicCost       int
	ImageCost       int

	VideoPollInterval time.Duration
	VideoPollAttempts int
	MusicPollInterval time.Duration
	MusicPollAttempts int
	MaxConcurrentJobs int

	DefaultLocale    string
	AllowedOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBaseURL:    getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),

		MiniMaxAPIKey:  os.Getenv("MINIMAX_API_KEY"),
		MiniMaxGroupID: os.Getenv("MINIMAX_GROUP_ID"),
		MiniMaxBaseURL: getEnv("MINIMAX_BASE_URL", "https://api.minimax.io/v1"),
		VideoModel:     getEnv("VIDEO_MODEL", "MiniMax-Hailuo-02"),
		MusicModel:     getEnv("MUSIC_MODEL", "music-1.5"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		VideoBucket:        getEnv("VIDEO_BUCKET", "videos"),
		MusicBucket:        getEnv("MUSIC_BUCKET", "music"),
		ImageBucket:        getEnv("IMAGE_BUCKET", "images"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		StartingBalance: getEnvInt("STARTING_BALANCE", 100),
		VideoCost:       getEnvInt("VIDEO_COST", 20),
		MusicCost:       getEnvInt("MUSIC_COST", 10),
		ImageCost:       getEnvInt("IMAGE_COST", 5),

		VideoPollInterval: time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 10)),
		VideoPollAttempts: getEnvInt("VIDEO_POLL_ATTEMPTS", 36),
		MusicPollInterval: time.Second * time.Duration(getEnvInt("MUSIC_POLL_INTERVAL_SECONDS", 5)),
		MusicPollAttempts: getEnvInt("MUSIC_POLL_ATTEMPTS", 36),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 0),

		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
