package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"stargen/internal/domain"
	"stargen/internal/provider/gemini"
)

type imageGenerateRequest struct {
	OwnerID     int64       `json:"owner_id"`
	Prompt      string      `json:"prompt"`
	AspectRatio string      `json:"aspect_ratio"`
	Attachment  *attachment `json:"attachment"`
}

// ImageGenerate runs the synchronous image flow. Unlike the background
// media kinds this one charges up front and reverses the deduction when
// generation fails; the result URL is returned in the response body.
func (a *App) ImageGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.OwnerID == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id required")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" && req.Attachment == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt or attachment required")
		return
	}

	balance, err := a.Ledger.Balance(r.Context(), req.OwnerID)
	if err == nil && balance < a.ImageCost {
		a.error(w, http.StatusPaymentRequired, "insufficient_balance", "not enough tokens")
		return
	}

	genReq := gemini.ImageRequest{Prompt: req.Prompt, AspectRatio: req.AspectRatio}
	if req.Attachment != nil && req.Attachment.Base64Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Base64Data)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "attachment is not valid base64")
			return
		}
		genReq.Reference = data
		genReq.ReferenceMIME = req.Attachment.MIMEType
	}

	// Pre-authorize, then compensate if generation fails.
	if _, err := a.Ledger.Deduct(r.Context(), req.OwnerID, a.ImageCost); err != nil {
		a.Logger.Warn().Err(err).Int64("owner_id", req.OwnerID).Msg("handlers: image pre-charge skipped")
	}

	asset, err := a.Images.GenerateImage(r.Context(), genReq)
	if err != nil {
		if _, creditErr := a.Ledger.Credit(r.Context(), req.OwnerID, a.ImageCost); creditErr != nil {
			a.Logger.Warn().Err(creditErr).Int64("owner_id", req.OwnerID).Msg("handlers: image refund failed")
		}
		a.Logger.Error().Err(err).Int64("owner_id", req.OwnerID).Msg("handlers: image generation failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "image generation failed")
		return
	}

	url, persistErr := a.Store.Persist(r.Context(), req.OwnerID, domain.JobKindImage, asset.Data, asset.MIMEType, "")
	if persistErr != nil {
		a.Logger.Warn().Err(persistErr).Int64("owner_id", req.OwnerID).Msg("handlers: image persist degraded")
	}
	if url != "" {
		if err := a.Store.RecordMetadata(r.Context(), &domain.Artifact{
			OwnerID:     req.OwnerID,
			Kind:        domain.JobKindImage,
			URL:         url,
			MIMEType:    asset.MIMEType,
			Prompt:      req.Prompt,
			SourceModel: a.Images.Model(),
		}); err != nil {
			a.Logger.Warn().Err(err).Int64("owner_id", req.OwnerID).Msg("handlers: image metadata failed")
		}
	}

	resp := map[string]any{
		"success":   true,
		"mime_type": asset.MIMEType,
	}
	if url != "" {
		resp["url"] = url
	} else {
		resp["base64_data"] = base64.StdEncoding.EncodeToString(asset.Data)
	}
	a.json(w, http.StatusOK, resp)
}
