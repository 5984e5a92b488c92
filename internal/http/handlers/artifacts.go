package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	zippkg "stargen/pkg/zip"
)

// ListArtifacts returns the owner's generated media, newest first.
func (a *App) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil || ownerID == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	artifacts, err := a.Artifacts.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Int64("owner_id", ownerID).Msg("handlers: artifact list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}

	items := make([]map[string]any, 0, len(artifacts))
	for _, art := range artifacts {
		items = append(items, map[string]any{
			"id":           art.ID,
			"kind":         art.Kind,
			"url":          art.URL,
			"mime_type":    art.MIMEType,
			"prompt":       art.Prompt,
			"source_model": art.SourceModel,
			"created_at":   art.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

const archiveLimit = 20

// ArchiveArtifacts bundles the owner's most recent artifacts into a zip
// download. Unreachable objects are skipped, not fatal.
func (a *App) ArchiveArtifacts(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil || ownerID == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "owner_id required")
		return
	}

	artifacts, err := a.Artifacts.ListByOwner(r.Context(), ownerID, archiveLimit)
	if err != nil {
		a.Logger.Error().Err(err).Int64("owner_id", ownerID).Msg("handlers: artifact list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}
	if len(artifacts) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no artifacts to archive")
		return
	}

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	var entries []zippkg.Asset
	for i, art := range artifacts {
		data, err := fetchURL(r.Context(), client, art.URL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("url", art.URL).Msg("handlers: archive entry skipped")
			continue
		}
		entries = append(entries, zippkg.Asset{
			Filename: fmt.Sprintf("%02d_%s%s", i+1, art.Kind, zippkg.ExtensionForMIME(art.MIMEType)),
			MIME:     art.MIMEType,
			Data:     data,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusBadGateway, "unavailable", "artifacts could not be fetched")
		return
	}

	archive := zippkg.ArchiveAssets(entries)
	if archive == nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=artifacts_%d_%d.zip", ownerID, time.Now().Unix()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
