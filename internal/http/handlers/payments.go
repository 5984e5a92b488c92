package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"stargen/internal/delivery"
)

type invoiceRequest struct {
	OwnerID int64 `json:"owner_id"`
	Stars   int   `json:"stars"`
}

// CreateInvoice returns a Telegram Stars invoice link for a token
// top-up. One star buys one token.
func (a *App) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.OwnerID == 0 || req.Stars <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id and positive stars required")
		return
	}

	link, err := a.Payments.CreateInvoiceLink(r.Context(), delivery.Invoice{
		Title:       fmt.Sprintf("%d tokens", req.Stars),
		Description: "Token top-up for media generation",
		Payload:     fmt.Sprintf("topup:%d", req.OwnerID),
		Stars:       req.Stars,
	})
	if err != nil {
		a.Logger.Error().Err(err).Int64("owner_id", req.OwnerID).Msg("handlers: invoice creation failed")
		a.error(w, http.StatusBadGateway, "unavailable", "failed to create invoice")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"success":     true,
		"invoice_url": link,
	})
}

type webhookUpdate struct {
	Message *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		SuccessfulPayment *struct {
			Currency       string `json:"currency"`
			TotalAmount    int    `json:"total_amount"`
			InvoicePayload string `json:"invoice_payload"`
		} `json:"successful_payment"`
	} `json:"message"`
}

// PaymentWebhook consumes bot updates and credits the ledger when a
// Stars payment settles. Anything that is not a successful payment is
// acknowledged and ignored; Telegram retries on non-200 responses.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if a.WebhookSecret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != a.WebhookSecret {
		a.error(w, http.StatusUnauthorized, "unauthorized", "bad webhook secret")
		return
	}

	var update webhookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid update")
		return
	}

	if update.Message == nil || update.Message.SuccessfulPayment == nil || update.Message.From == nil {
		a.json(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	payment := update.Message.SuccessfulPayment
	ownerID := update.Message.From.ID
	if _, err := a.Ledger.Credit(r.Context(), ownerID, payment.TotalAmount); err != nil {
		// Keep the 200: Telegram retrying will not make the ledger
		// reachable, and double-credit on retry is worse.
		a.Logger.Error().Err(err).
			Int64("owner_id", ownerID).
			Int("amount", payment.TotalAmount).
			Msg("handlers: payment credit failed")
	} else {
		a.Logger.Info().
			Int64("owner_id", ownerID).
			Int("amount", payment.TotalAmount).
			Str("payload", payment.InvoicePayload).
			Msg("handlers: payment credited")
	}

	a.json(w, http.StatusOK, map[string]any{"ok": true})
}
