package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"stargen/internal/delivery"
	"stargen/internal/domain"
	"stargen/internal/infra"
	"stargen/internal/provider/gemini"
)

// Launcher accepts a generation request and spawns its detached workflow.
type Launcher interface {
	Launch(ctx context.Context, ownerID int64, params domain.JobParams, locale string) (*domain.GenerationJob, error)
}

// Ledger is the balance contract the handlers need.
type Ledger interface {
	Balance(ctx context.Context, ownerID int64) (int, error)
	Deduct(ctx context.Context, ownerID int64, amount int) (int, error)
	Credit(ctx context.Context, ownerID int64, amount int) (int, error)
}

// ArtifactStore persists synchronous generation results.
type ArtifactStore interface {
	Persist(ctx context.Context, ownerID int64, kind domain.JobKind, data []byte, contentType, fallbackURL string) (string, error)
	RecordMetadata(ctx context.Context, art *domain.Artifact) error
}

// ArtifactLister reads artifact metadata rows.
type ArtifactLister interface {
	ListByOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Artifact, error)
}

// ImageGenerator is the synchronous image provider.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (*gemini.ImageAsset, error)
	Model() string
}

// InvoiceCreator creates Telegram Stars invoice links.
type InvoiceCreator interface {
	CreateInvoiceLink(ctx context.Context, inv delivery.Invoice) (string, error)
}

// App bundles the dependencies the HTTP handlers operate on.
type App struct {
	Logger       infra.Logger
	Orchestrator Launcher
	Ledger       Ledger
	Store        ArtifactStore
	Artifacts    ArtifactLister
	Images       ImageGenerator
	Payments     InvoiceCreator
	HTTPClient   *http.Client

	ImageCost     int
	WebhookSecret string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"success": false,
		"error":   slug,
		"message": message,
	})
}
