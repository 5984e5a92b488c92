package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StartingBalance != 100 || cfg.VideoCost != 20 || cfg.MusicCost != 10 || cfg.ImageCost != 5 {
		t.Fatalf("cost defaults mismatch: %d/%d/%d/%d", cfg.StartingBalance, cfg.VideoCost, cfg.MusicCost, cfg.ImageCost)
	}
	if cfg.VideoPollInterval != 10*time.Second || cfg.VideoPollAttempts != 36 {
		t.Fatalf("video poll defaults mismatch: %v/%d", cfg.VideoPollInterval, cfg.VideoPollAttempts)
	}
	if cfg.MusicPollInterval != 5*time.Second {
		t.Fatalf("music poll interval = %v, want 5s", cfg.MusicPollInterval)
	}
	if cfg.MaxConcurrentJobs != 0 {
		t.Fatalf("MaxConcurrentJobs = %d, want unbounded default", cfg.MaxConcurrentJobs)
	}
	if cfg.VideoModel != "MiniMax-Hailuo-02" || cfg.MusicModel != "music-1.5" {
		t.Fatalf("model defaults mismatch: %q/%q", cfg.VideoModel, cfg.MusicModel)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadConfigRequiresBotToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadConfigParsesAllowedOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://web.telegram.org ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "https://web.telegram.org"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %#v, want %#v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfigPollIntervalOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("VIDEO_POLL_INTERVAL_SECONDS", "2")
	t.Setenv("VIDEO_POLL_ATTEMPTS", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.VideoPollInterval != 2*time.Second || cfg.VideoPollAttempts != 5 {
		t.Fatalf("video poll overrides mismatch: %v/%d", cfg.VideoPollInterval, cfg.VideoPollAttempts)
	}
}
