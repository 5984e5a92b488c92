package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"stargen/internal/domain"
	"stargen/internal/middleware"
)

type attachment struct {
	MIMEType   string `json:"mime_type"`
	Base64Data string `json:"base64_data"`
}

type videoGenerateRequest struct {
	OwnerID         int64       `json:"owner_id"`
	Prompt          string      `json:"prompt"`
	AspectRatio     string      `json:"aspect_ratio"`
	DurationSeconds int         `json:"duration_seconds"`
	Attachment      *attachment `json:"attachment"`
}

type musicGenerateRequest struct {
	OwnerID    int64  `json:"owner_id"`
	Prompt     string `json:"prompt"`
	Lyrics     string `json:"lyrics"`
	ReferVoice string `json:"refer_voice"`
}

// VideoGenerate accepts a video job and acknowledges before any
// background work starts. The response means "started", not "completed":
// the result arrives through the bot chat minutes later.
func (a *App) VideoGenerate(w http.ResponseWriter, r *http.Request) {
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.OwnerID == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id required")
		return
	}

	params := domain.VideoParams{
		Prompt:          req.Prompt,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
	}
	if req.Attachment != nil && req.Attachment.Base64Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Base64Data)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "attachment is not valid base64")
			return
		}
		params.FirstFrame = &domain.InlineMedia{MIMEType: req.Attachment.MIMEType, Data: data}
	}

	a.launch(w, r, req.OwnerID, params)
}

// MusicGenerate accepts a music job; same acknowledgment contract as
// VideoGenerate.
func (a *App) MusicGenerate(w http.ResponseWriter, r *http.Request) {
	var req musicGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.OwnerID == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id required")
		return
	}

	a.launch(w, r, req.OwnerID, domain.MusicParams{
		Prompt:     req.Prompt,
		Lyrics:     req.Lyrics,
		ReferVoice: req.ReferVoice,
	})
}

func (a *App) launch(w http.ResponseWriter, r *http.Request, ownerID int64, params domain.JobParams) {
	locale := middleware.LocaleFromContext(r.Context())
	job, err := a.Orchestrator.Launch(r.Context(), ownerID, params, locale)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPrompt):
			a.error(w, http.StatusBadRequest, "bad_request", "prompt or attachment required")
		case errors.Is(err, domain.ErrInsufficientBalance):
			a.error(w, http.StatusPaymentRequired, "insufficient_balance", "not enough tokens")
		default:
			a.Logger.Error().Err(err).Int64("owner_id", ownerID).Msg("handlers: launch failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to start generation")
		}
		return
	}

	a.json(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "Started",
		"job_id":  job.ID,
	})
}
