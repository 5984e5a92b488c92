package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stargen/internal/artifact"
	"stargen/internal/delivery"
	"stargen/internal/domain"
	"stargen/internal/http/handlers"
	"stargen/internal/http/httpapi"
	"stargen/internal/infra"
	"stargen/internal/ledger"
	"stargen/internal/orchestrator"
	"stargen/internal/provider"
	"stargen/internal/provider/gemini"
	"stargen/internal/provider/minimax"
	"stargen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	httpClient := &http.Client{Timeout: 120 * time.Second}

	minimaxClient, err := minimax.NewClient(minimax.Options{
		APIKey:     cfg.MiniMaxAPIKey,
		GroupID:    cfg.MiniMaxGroupID,
		BaseURL:    cfg.MiniMaxBaseURL,
		VideoModel: cfg.VideoModel,
		MusicModel: cfg.MusicModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure minimax client")
	}

	geminiClient, err := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure gemini client")
	}

	uploader, staticDir := buildUploader(cfg, httpClient, logger)
	store := artifact.NewStore(uploader, artifact.NewRepository(dbpool), map[domain.JobKind]string{
		domain.JobKindVideo: cfg.VideoBucket,
		domain.JobKindMusic: cfg.MusicBucket,
		domain.JobKindImage: cfg.ImageBucket,
	}, logger)

	tokenLedger := ledger.New(dbpool, logger, cfg.StartingBalance)
	telegram := delivery.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIBaseURL, httpClient, &logger)

	orch := orchestrator.New(orchestrator.Config{
		Gateways: map[domain.JobKind]provider.Gateway{
			domain.JobKindVideo: minimaxClient.Video(),
			domain.JobKindMusic: minimaxClient.Music(),
		},
		Store:   store,
		Channel: telegram,
		Ledger:  tokenLedger,
		Policies: map[domain.JobKind]orchestrator.Policy{
			domain.JobKindVideo: {
				PollInterval:    cfg.VideoPollInterval,
				MaxPollAttempts: cfg.VideoPollAttempts,
				Cost:            cfg.VideoCost,
				Model:           minimaxClient.VideoModel(),
			},
			domain.JobKindMusic: {
				PollInterval:    cfg.MusicPollInterval,
				MaxPollAttempts: cfg.MusicPollAttempts,
				Cost:            cfg.MusicCost,
				Model:           minimaxClient.MusicModel(),
			},
		},
		Logger:        logger,
		MaxConcurrent: cfg.MaxConcurrentJobs,
	})

	app := &handlers.App{
		Logger:        logger,
		Orchestrator:  orch,
		Ledger:        tokenLedger,
		Store:         store,
		Artifacts:     artifact.NewRepository(dbpool),
		Images:        geminiClient,
		Payments:      telegram,
		HTTPClient:    httpClient,
		ImageCost:     cfg.ImageCost,
		WebhookSecret: cfg.TelegramWebhookSecret,
	}

	router := httpapi.NewRouter(app, cfg, logger, staticDir)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Give detached workflows a bounded window to reach a terminal state.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelDrain()
	if err := orch.Wait(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown with workflows still in flight")
	}
	logger.Info().Msg("server stopped")
}

// buildUploader picks the durable backend when Supabase is configured
// and falls back to local disk for development. The second return value
// is the directory the router serves under /static when local storage
// is in use.
func buildUploader(cfg *infra.Config, httpClient *http.Client, logger infra.Logger) (artifact.Uploader, string) {
	if cfg.SupabaseURL != "" {
		return artifact.NewSupabaseUploader(cfg.SupabaseURL, cfg.SupabaseServiceKey, httpClient), ""
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure local storage")
	}
	logger.Warn().Str("path", storagePath).Msg("supabase not configured, storing artifacts on local disk")
	return artifact.NewFileUploader(fileStore, cfg.StorageBaseURL), storagePath
}
