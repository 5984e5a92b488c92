// Package delivery sends finished artifacts and failure notices to the
// originating user through the Telegram Bot API. Generated bytes go out
// as multipart uploads; URL-only payloads are passed by reference and
// fetched by Telegram itself.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stargen/internal/domain"
	"stargen/internal/infra"
)

// Payload describes one artifact to deliver. When Data is set the bytes
// are uploaded inline; otherwise URL is sent as a remote reference.
type Payload struct {
	Kind     domain.JobKind
	Data     []byte
	MIMEType string
	URL      string
	Caption  string
}

// Invoice describes a Telegram Stars invoice link request.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Stars       int
}

// Client calls the Telegram Bot API for one bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// NewClient constructs a Telegram client. Callers may provide a nil HTTP
// client; uploads can be large, so the default timeout is generous.
func NewClient(token, baseURL string, httpClient *http.Client, logger *infra.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		token:      strings.TrimSpace(token),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send delivers the artifact to the chat. The Bot API method and binary
// field are chosen from the payload kind.
func (c *Client) Send(ctx context.Context, chatID int64, p Payload) error {
	method, field := methodForKind(p.Kind, p.MIMEType)

	if len(p.Data) > 0 {
		fields := map[string]string{
			"chat_id": strconv.FormatInt(chatID, 10),
			"caption": p.Caption,
		}
		return c.postMultipart(ctx, method, fields, field, p.Data, p.MIMEType)
	}

	if p.URL == "" {
		return fmt.Errorf("%w: payload has neither bytes nor url", domain.ErrDeliveryFailed)
	}
	return c.postForm(ctx, method, map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"caption": p.Caption,
		field:     p.URL,
	})
}

// NotifyFailure sends a human readable failure notice. Its own failure
// is swallowed and logged: if this call cannot reach the user there is
// no further channel to try.
func (c *Client) NotifyFailure(ctx context.Context, chatID int64, reason string) {
	err := c.postForm(ctx, "sendMessage", map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    reason,
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("delivery: failure notice not sent")
	}
}

// CreateInvoiceLink creates a Telegram Stars invoice link (currency XTR,
// empty provider token).
func (c *Client) CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error) {
	prices, err := json.Marshal([]map[string]any{{"label": inv.Title, "amount": inv.Stars}})
	if err != nil {
		return "", fmt.Errorf("marshal prices: %w", err)
	}

	body, err := c.call(ctx, "createInvoiceLink", map[string]string{
		"title":       inv.Title,
		"description": inv.Description,
		"payload":     inv.Payload,
		"currency":    "XTR",
		"prices":      string(prices),
	})
	if err != nil {
		return "", err
	}

	var link string
	if err := json.Unmarshal(body, &link); err != nil {
		return "", fmt.Errorf("decode invoice link: %w", err)
	}
	return link, nil
}

func (c *Client) postForm(ctx context.Context, method string, fields map[string]string) error {
	_, err := c.call(ctx, method, fields)
	return err
}

func (c *Client) call(ctx context.Context, method string, fields map[string]string) (json.RawMessage, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.invoke(req, method)
}

func (c *Client) postMultipart(ctx context.Context, method string, fields map[string]string, fileField string, data []byte, mimeType string) error {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile(fileField, fileField+extensionForMIME(mimeType))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write file data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, err = c.invoke(req, method)
	return err
}

func (c *Client) invoke(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDeliveryFailed, method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", domain.ErrDeliveryFailed, method, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrDeliveryFailed, method, envelope.Description)
	}
	return envelope.Result, nil
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func methodForKind(kind domain.JobKind, mimeType string) (method, field string) {
	switch kind {
	case domain.JobKindVideo:
		return "sendVideo", "video"
	case domain.JobKindMusic:
		return "sendAudio", "audio"
	default:
		if strings.HasPrefix(mimeType, "image/") {
			return "sendPhoto", "photo"
		}
		return "sendDocument", "document"
	}
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ".bin"
	}
}
