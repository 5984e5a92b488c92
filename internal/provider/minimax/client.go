// Package minimax adapts the MiniMax task API to the provider.Gateway
// contract. Submission, status polling and file retrieval are distinct
// endpoints; errors can be signaled in the response payload even on
// HTTP 200, so every call inspects the base_resp envelope as well as the
// transport status.
package minimax

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stargen/internal/domain"
	"stargen/internal/infra"
	"stargen/internal/provider"
)

// Options controls how the MiniMax client is configured.
type Options struct {
	APIKey     string
	GroupID    string
	BaseURL    string
	VideoModel string
	MusicModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the MiniMax HTTP API shared by the
// kind-specific gateways.
type Client struct {
	apiKey     string
	groupID    string
	baseURL    string
	videoModel string
	musicModel string
	httpClient *http.Client
	logger     *infra.Logger
}

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type submitResponse struct {
	TaskID   string   `json:"task_id"`
	BaseResp baseResp `json:"base_resp"`
}

type queryResponse struct {
	TaskID   string   `json:"task_id"`
	Status   string   `json:"status"`
	FileID   string   `json:"file_id"`
	BaseResp baseResp `json:"base_resp"`
}

type retrieveResponse struct {
	File struct {
		FileID      int64  `json:"file_id"`
		DownloadURL string `json:"download_url"`
	} `json:"file"`
	BaseResp baseResp `json:"base_resp"`
}

// NewClient constructs a MiniMax client. Callers may provide a nil HTTP
// client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.minimax.io/v1"
	}

	videoModel := opts.VideoModel
	if videoModel == "" {
		videoModel = "MiniMax-Hailuo-02"
	}
	musicModel := opts.MusicModel
	if musicModel == "" {
		musicModel = "music-1.5"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		groupID:    strings.TrimSpace(opts.GroupID),
		baseURL:    baseURL,
		videoModel: videoModel,
		musicModel: musicModel,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// VideoModel returns the configured video model identifier.
func (c *Client) VideoModel() string { return c.videoModel }

// MusicModel returns the configured music model identifier.
func (c *Client) MusicModel() string { return c.musicModel }

// Video returns a provider.Gateway bound to the video endpoints.
func (c *Client) Video() provider.Gateway { return &gateway{client: c, kind: domain.JobKindVideo} }

// Music returns a provider.Gateway bound to the music endpoints.
func (c *Client) Music() provider.Gateway { return &gateway{client: c, kind: domain.JobKindMusic} }

type gateway struct {
	client *Client
	kind   domain.JobKind
}

func (g *gateway) Submit(ctx context.Context, params domain.JobParams) (string, error) {
	if params.Kind() != g.kind {
		return "", fmt.Errorf("%w: %s params passed to %s gateway", domain.ErrSubmission, params.Kind(), g.kind)
	}

	var payload any
	var path string
	switch p := params.(type) {
	case domain.VideoParams:
		path = "/video_generation"
		payload = g.client.videoPayload(p)
	case domain.MusicParams:
		path = "/music_generation"
		payload = g.client.musicPayload(p)
	default:
		return "", fmt.Errorf("%w: unsupported params type %T", domain.ErrSubmission, params)
	}

	var resp submitResponse
	if err := g.client.post(ctx, path, payload, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmission, err)
	}
	if resp.BaseResp.StatusCode != 0 {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrSubmission, resp.BaseResp.StatusCode, resp.BaseResp.StatusMsg)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("%w: empty task_id", domain.ErrSubmission)
	}

	g.client.logger.Debug().
		Str("task_id", resp.TaskID).
		Str("kind", string(g.kind)).
		Msg("minimax: job submitted")

	return resp.TaskID, nil
}

func (g *gateway) PollStatus(ctx context.Context, jobID string) (provider.Status, error) {
	path := "/query/video_generation"
	if g.kind == domain.JobKindMusic {
		path = "/query/music_generation"
	}

	var resp queryResponse
	if err := g.client.get(ctx, path, url.Values{"task_id": {jobID}}, &resp); err != nil {
		return provider.Status{}, err
	}
	if resp.BaseResp.StatusCode != 0 {
		return provider.Status{}, fmt.Errorf("query status %d: %s", resp.BaseResp.StatusCode, resp.BaseResp.StatusMsg)
	}

	switch resp.Status {
	case "Success", "Succeeded":
		return provider.Status{State: provider.StateSucceeded, ResultRef: resp.FileID}, nil
	case "Fail", "Failed":
		reason := resp.BaseResp.StatusMsg
		if reason == "" {
			reason = "generation failed"
		}
		return provider.Status{State: provider.StateFailed, Reason: reason}, nil
	default:
		// Queueing, Preparing, Processing and anything the API adds later.
		return provider.Status{State: provider.StateProcessing}, nil
	}
}

func (g *gateway) FetchResult(ctx context.Context, resultRef string) (*provider.Result, error) {
	query := url.Values{"file_id": {resultRef}}
	if g.client.groupID != "" {
		query.Set("GroupId", g.client.groupID)
	}

	var resp retrieveResponse
	if err := g.client.get(ctx, "/files/retrieve", query, &resp); err != nil {
		return nil, err
	}
	if resp.BaseResp.StatusCode != 0 {
		return nil, fmt.Errorf("retrieve status %d: %s", resp.BaseResp.StatusCode, resp.BaseResp.StatusMsg)
	}
	if resp.File.DownloadURL == "" {
		return nil, fmt.Errorf("retrieve returned empty download_url")
	}

	data, contentType, err := g.client.download(ctx, resp.File.DownloadURL)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = defaultContentType(g.kind)
	}

	return &provider.Result{
		Data:        data,
		ContentType: contentType,
		SourceURL:   resp.File.DownloadURL,
	}, nil
}

func (c *Client) videoPayload(p domain.VideoParams) map[string]any {
	payload := map[string]any{
		"model":  c.videoModel,
		"prompt": p.Prompt,
	}
	if p.DurationSeconds > 0 {
		payload["duration"] = p.DurationSeconds
	}
	if p.AspectRatio != "" {
		payload["aspect_ratio"] = p.AspectRatio
	}
	if p.FirstFrame != nil && len(p.FirstFrame.Data) > 0 {
		payload["first_frame_image"] = fmt.Sprintf("data:%s;base64,%s",
			p.FirstFrame.MIMEType, base64.StdEncoding.EncodeToString(p.FirstFrame.Data))
	}
	return payload
}

func (c *Client) musicPayload(p domain.MusicParams) map[string]any {
	payload := map[string]any{
		"model":  c.musicModel,
		"prompt": p.Prompt,
	}
	if p.Lyrics != "" {
		payload["lyrics"] = p.Lyrics
	}
	if p.ReferVoice != "" {
		payload["refer_voice"] = p.ReferVoice
	}
	return payload
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.invoke(req, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = query.Encode()
	return c.invoke(req, out)
}

func (c *Client) invoke(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke minimax: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("minimax status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("minimax status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode minimax response: %w", err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, downloadURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read result: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func defaultContentType(kind domain.JobKind) string {
	if kind == domain.JobKindMusic {
		return "audio/mpeg"
	}
	return "video/mp4"
}
