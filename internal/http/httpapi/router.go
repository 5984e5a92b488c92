package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"stargen/internal/http/handlers"
	"stargen/internal/infra"
	"stargen/internal/middleware"
)

// NewRouter assembles the service's HTTP surface.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, staticDir string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Locale(cfg.DefaultLocale))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	r.Get("/v1/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/video/generate", app.VideoGenerate)
		r.Post("/music/generate", app.MusicGenerate)
		r.Post("/image/generate", app.ImageGenerate)
		r.Get("/balance/{owner_id}", app.Balance)
		r.Get("/artifacts", app.ListArtifacts)
		r.Get("/artifacts/archive", app.ArchiveArtifacts)
		r.Post("/payments/invoice", app.CreateInvoice)
	})

	r.Post("/telegram/webhook", app.PaymentWebhook)

	if staticDir != "" {
		fileServer := stdhttp.FileServer(stdhttp.Dir(staticDir))
		r.Handle("/static/*", stdhttp.StripPrefix("/static/", fileServer))
	}

	return r
}
