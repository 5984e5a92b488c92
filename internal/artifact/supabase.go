package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SupabaseUploader uploads objects to Supabase storage buckets over its
// REST API and derives the public object URL.
type SupabaseUploader struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewSupabaseUploader constructs an uploader for the given project URL
// and service role key. Callers may provide a nil HTTP client.
func NewSupabaseUploader(baseURL, serviceKey string, httpClient *http.Client) *SupabaseUploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &SupabaseUploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: strings.TrimSpace(serviceKey),
		httpClient: httpClient,
	}
}

// Upload stores the bytes and returns the public URL of the object.
func (u *SupabaseUploader) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if u.baseURL == "" {
		return "", fmt.Errorf("supabase url not configured")
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", u.baseURL, url.PathEscape(bucket), escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		if len(body) > 0 {
			return "", fmt.Errorf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return "", fmt.Errorf("upload status %d", resp.StatusCode)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", u.baseURL, url.PathEscape(bucket), escapeKey(key)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
