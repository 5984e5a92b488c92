package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"stargen/internal/delivery"
	"stargen/internal/domain"
	"stargen/internal/infra"
	"stargen/internal/provider/gemini"
)

type fakeLauncher struct {
	job    *domain.GenerationJob
	err    error
	params domain.JobParams
	locale string
}

func (f *fakeLauncher) Launch(ctx context.Context, ownerID int64, params domain.JobParams, locale string) (*domain.GenerationJob, error) {
	f.params = params
	f.locale = locale
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeLedger struct {
	balance    int
	balanceErr error
	deducts    []int
	deductErr  error
	credits    []int
}

func (l *fakeLedger) Balance(ctx context.Context, ownerID int64) (int, error) {
	return l.balance, l.balanceErr
}

func (l *fakeLedger) Deduct(ctx context.Context, ownerID int64, amount int) (int, error) {
	l.deducts = append(l.deducts, amount)
	return l.balance - amount, l.deductErr
}

func (l *fakeLedger) Credit(ctx context.Context, ownerID int64, amount int) (int, error) {
	l.credits = append(l.credits, amount)
	return l.balance + amount, nil
}

type fakeArtifactStore struct {
	url        string
	persistErr error
	recorded   []domain.Artifact
}

func (s *fakeArtifactStore) Persist(ctx context.Context, ownerID int64, kind domain.JobKind, data []byte, contentType, fallbackURL string) (string, error) {
	return s.url, s.persistErr
}

func (s *fakeArtifactStore) RecordMetadata(ctx context.Context, art *domain.Artifact) error {
	s.recorded = append(s.recorded, *art)
	return nil
}

type fakeLister struct {
	items []domain.Artifact
	err   error
}

func (l *fakeLister) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Artifact, error) {
	return l.items, l.err
}

type fakeImageGen struct {
	asset *gemini.ImageAsset
	err   error
}

func (g *fakeImageGen) GenerateImage(ctx context.Context, req gemini.ImageRequest) (*gemini.ImageAsset, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.asset, nil
}

func (g *fakeImageGen) Model() string { return "gemini-test" }

type fakeInvoices struct {
	link string
	err  error
	inv  delivery.Invoice
}

func (f *fakeInvoices) CreateInvoiceLink(ctx context.Context, inv delivery.Invoice) (string, error) {
	f.inv = inv
	return f.link, f.err
}

func newApp() (*App, *fakeLauncher, *fakeLedger) {
	launcher := &fakeLauncher{job: &domain.GenerationJob{ID: "job-1", Status: domain.JobStatusAccepted}}
	ledger := &fakeLedger{balance: 100}
	return &App{
		Logger:       infra.NewLogger("test"),
		Orchestrator: launcher,
		Ledger:       ledger,
		Store:        &fakeArtifactStore{url: "https://cdn.example/i.png"},
		Artifacts:    &fakeLister{},
		Images:       &fakeImageGen{asset: &gemini.ImageAsset{Data: []byte("png"), MIMEType: "image/png"}},
		Payments:     &fakeInvoices{link: "https://t.me/$abc"},
		ImageCost:    5,
	}, launcher, ledger
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestVideoGenerateAccepted(t *testing.T) {
	app, launcher, _ := newApp()
	req := httptest.NewRequest(http.MethodPost, "/api/video/generate",
		strings.NewReader(`{"owner_id":42,"prompt":"a cat","aspect_ratio":"16:9","duration_seconds":6}`))
	rec := httptest.NewRecorder()

	app.VideoGenerate(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["job_id"] != "job-1" {
		t.Errorf("body = %v", body)
	}
	params, ok := launcher.params.(domain.VideoParams)
	if !ok {
		t.Fatalf("params type = %T", launcher.params)
	}
	if params.Prompt != "a cat" || params.AspectRatio != "16:9" || params.DurationSeconds != 6 {
		t.Errorf("params = %+v", params)
	}
}

func TestVideoGenerateDecodesAttachment(t *testing.T) {
	app, launcher, _ := newApp()
	req := httptest.NewRequest(http.MethodPost, "/api/video/generate",
		strings.NewReader(`{"owner_id":42,"attachment":{"mime_type":"image/png","base64_data":"cG5n"}}`))
	rec := httptest.NewRecorder()

	app.VideoGenerate(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	params := launcher.params.(domain.VideoParams)
	if params.FirstFrame == nil || string(params.FirstFrame.Data) != "png" {
		t.Errorf("first frame = %+v", params.FirstFrame)
	}
}

func TestVideoGenerateRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing owner", `{"prompt":"a cat"}`},
		{"bad base64", `{"owner_id":42,"attachment":{"base64_data":"???"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, _ := newApp()
			req := httptest.NewRequest(http.MethodPost, "/api/video/generate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			app.VideoGenerate(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestMusicGenerateAccepted(t *testing.T) {
	app, launcher, _ := newApp()
	req := httptest.NewRequest(http.MethodPost, "/api/music/generate",
		strings.NewReader(`{"owner_id":42,"prompt":"a song","lyrics":"la la"}`))
	rec := httptest.NewRecorder()

	app.MusicGenerate(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	params := launcher.params.(domain.MusicParams)
	if params.Lyrics != "la la" {
		t.Errorf("params = %+v", params)
	}
}

func TestLaunchErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid prompt", domain.ErrInvalidPrompt, http.StatusBadRequest},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusPaymentRequired},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, launcher, _ := newApp()
			launcher.err = tt.err
			req := httptest.NewRequest(http.MethodPost, "/api/video/generate",
				strings.NewReader(`{"owner_id":42,"prompt":"a cat"}`))
			rec := httptest.NewRecorder()

			app.VideoGenerate(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestImageGenerateReturnsURL(t *testing.T) {
	app, _, ledger := newApp()
	req := httptest.NewRequest(http.MethodPost, "/api/image/generate",
		strings.NewReader(`{"owner_id":42,"prompt":"a cat"}`))
	rec := httptest.NewRecorder()

	app.ImageGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["url"] != "https://cdn.example/i.png" {
		t.Errorf("body = %v", body)
	}
	if len(ledger.deducts) != 1 || ledger.deducts[0] != 5 {
		t.Errorf("deducts = %v, want [5]", ledger.deducts)
	}
	if len(ledger.credits) != 0 {
		t.Errorf("credits = %v, want none on success", ledger.credits)
	}
}

func TestImageGenerateRefundsOnProviderFailure(t *testing.T) {
	app, _, ledger := newApp()
	app.Images = &fakeImageGen{err: errors.New("model unavailable")}
	req := httptest.NewRequest(http.MethodPost, "/api/image/generate",
		strings.NewReader(`{"owner_id":42,"prompt":"a cat"}`))
	rec := httptest.NewRecorder()

	app.ImageGenerate(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if len(ledger.credits) != 1 || ledger.credits[0] != 5 {
		t.Errorf("credits = %v, want refund of the pre-charge", ledger.credits)
	}
}

func TestImageGenerateInsufficientBalance(t *testing.T) {
	app, _, ledger := newApp()
	ledger.balance = 2
	req := httptest.NewRequest(http.MethodPost, "/api/image/generate",
		strings.NewReader(`{"owner_id":42,"prompt":"a cat"}`))
	rec := httptest.NewRecorder()

	app.ImageGenerate(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if len(ledger.deducts) != 0 {
		t.Errorf("deducts = %v, want none", ledger.deducts)
	}
}

func TestImageGenerateFallsBackToBytes(t *testing.T) {
	app, _, _ := newApp()
	app.Store = &fakeArtifactStore{url: "", persistErr: errors.New("bucket unreachable")}
	req := httptest.NewRequest(http.MethodPost, "/api/image/generate",
		strings.NewReader(`{"owner_id":42,"prompt":"a cat"}`))
	rec := httptest.NewRecorder()

	app.ImageGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["base64_data"] != "cG5n" {
		t.Errorf("body = %v, want inline bytes when storage is down", body)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	app, _, ledger := newApp()
	ledger.balance = 73

	r := chi.NewRouter()
	r.Get("/api/balance/{owner_id}", app.Balance)

	req := httptest.NewRequest(http.MethodGet, "/api/balance/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["balance"] != float64(73) {
		t.Errorf("body = %v", body)
	}
}

func TestBalanceEndpointDegradedStillAnswers(t *testing.T) {
	app, _, ledger := newApp()
	ledger.balance = 100
	ledger.balanceErr = domain.ErrLedgerUnavailable

	r := chi.NewRouter()
	r.Get("/api/balance/{owner_id}", app.Balance)

	req := httptest.NewRequest(http.MethodGet, "/api/balance/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, a ledger outage must not fail balance display", rec.Code)
	}
}

func TestCreateInvoice(t *testing.T) {
	app, _, _ := newApp()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/invoice",
		strings.NewReader(`{"owner_id":42,"stars":100}`))
	rec := httptest.NewRecorder()

	app.CreateInvoice(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["invoice_url"] != "https://t.me/$abc" {
		t.Errorf("body = %v", body)
	}
	inv := app.Payments.(*fakeInvoices).inv
	if inv.Stars != 100 || inv.Payload != "topup:42" {
		t.Errorf("invoice = %+v", inv)
	}
}

func TestCreateInvoiceRejectsNonPositiveStars(t *testing.T) {
	app, _, _ := newApp()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/invoice",
		strings.NewReader(`{"owner_id":42,"stars":0}`))
	rec := httptest.NewRecorder()

	app.CreateInvoice(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPaymentWebhookCreditsLedger(t *testing.T) {
	app, _, ledger := newApp()
	app.WebhookSecret = "hook-secret"

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook",
		strings.NewReader(`{"message":{"from":{"id":42},"successful_payment":{"currency":"XTR","total_amount":100,"invoice_payload":"topup:42"}}}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hook-secret")
	rec := httptest.NewRecorder()

	app.PaymentWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(ledger.credits) != 1 || ledger.credits[0] != 100 {
		t.Errorf("credits = %v, want [100]", ledger.credits)
	}
}

func TestPaymentWebhookRejectsBadSecret(t *testing.T) {
	app, _, ledger := newApp()
	app.WebhookSecret = "hook-secret"

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()

	app.PaymentWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(ledger.credits) != 0 {
		t.Errorf("credits = %v, want none", ledger.credits)
	}
}

func TestPaymentWebhookIgnoresNonPaymentUpdates(t *testing.T) {
	app, _, ledger := newApp()

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook",
		strings.NewReader(`{"message":{"from":{"id":42}}}`))
	rec := httptest.NewRecorder()

	app.PaymentWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, non-payment updates must still be acknowledged", rec.Code)
	}
	if len(ledger.credits) != 0 {
		t.Errorf("credits = %v, want none", ledger.credits)
	}
}

func TestListArtifacts(t *testing.T) {
	app, _, _ := newApp()
	app.Artifacts = &fakeLister{items: []domain.Artifact{
		{ID: "a1", OwnerID: 42, Kind: domain.JobKindVideo, URL: "https://cdn.example/v.mp4", MIMEType: "video/mp4"},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts?owner_id=42&limit=10", nil)
	rec := httptest.NewRecorder()

	app.ListArtifacts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v", body["items"])
	}
}

func TestListArtifactsRequiresOwner(t *testing.T) {
	app, _, _ := newApp()
	req := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
	rec := httptest.NewRecorder()

	app.ListArtifacts(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestArchiveArtifactsBuildsZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4 bytes"))
	}))
	t.Cleanup(srv.Close)

	app, _, _ := newApp()
	app.HTTPClient = srv.Client()
	app.Artifacts = &fakeLister{items: []domain.Artifact{
		{ID: "a1", Kind: domain.JobKindVideo, URL: srv.URL + "/v.mp4", MIMEType: "video/mp4"},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/archive?owner_id=42", nil)
	rec := httptest.NewRecorder()

	app.ArchiveArtifacts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("content type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty archive body")
	}
}

func TestArchiveArtifactsEmptyIsNotFound(t *testing.T) {
	app, _, _ := newApp()
	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/archive?owner_id=42", nil)
	rec := httptest.NewRecorder()

	app.ArchiveArtifacts(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
