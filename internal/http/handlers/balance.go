package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Balance returns the owner's token balance. A ledger outage answers
// with the default grant rather than an error: balance display must not
// block the Mini-App.
func (a *App) Balance(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(chi.URLParam(r, "owner_id"), 10, 64)
	if err != nil || ownerID == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id required")
		return
	}

	balance, err := a.Ledger.Balance(r.Context(), ownerID)
	if err != nil {
		a.Logger.Warn().Err(err).Int64("owner_id", ownerID).Msg("handlers: balance read degraded")
	}
	a.json(w, http.StatusOK, map[string]any{
		"owner_id": ownerID,
		"balance":  balance,
	})
}
