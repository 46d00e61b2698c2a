/*
Package relay forwards chat messages to the external message backend over
HTTP. The gateway never persists messages itself; the backend's response body
is handed back to the caller and becomes the broadcast content.
*/
package relay

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pairgate/internal/pkg/logx"
)

const createMessagePath = "/messages/create"

// maxResponseBytes bounds how much of a backend response is read back.
const maxResponseBytes = 1 << 20

// Client posts messages to per-client-type backend base URLs.
type Client struct {
	targets    map[string]string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a relay over the client-type to base-URL table. timeout
// bounds each backend call end to end.
func NewClient(targets map[string]string, timeout time.Duration) *Client {
	normalized := make(map[string]string, len(targets))
	for clientType, baseURL := range targets {
		normalized[strings.ToLower(clientType)] = strings.TrimRight(baseURL, "/")
	}

	return &Client{
		targets:    normalized,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logx.Logger().With().Str("component", "relay").Logger(),
	}
}

// TargetURL resolves the message-create endpoint for a client type.
func (c *Client) TargetURL(clientType string) (string, error) {
	baseURL, ok := c.targets[strings.ToLower(clientType)]
	if !ok || baseURL == "" {
		return "", fmt.Errorf("no backend configured for client type %q", clientType)
	}

	return baseURL + createMessagePath, nil
}

// Send posts the message as a multipart form (receiver_id, body, media) to
// the backend for the sender's client type, forwarding the caller's
// Authorization header verbatim. It returns the backend's response body.
func (c *Client) Send(ctx context.Context, clientType, receiverID, body string, media []string, authorization string) (string, error) {
	targetURL, err := c.TargetURL(clientType)
	if err != nil {
		return "", err
	}

	var form strings.Builder
	writer := multipart.NewWriter(&form)

	if err := writer.WriteField("receiver_id", receiverID); err != nil {
		return "", fmt.Errorf("build relay form: %w", err)
	}
	if err := writer.WriteField("body", body); err != nil {
		return "", fmt.Errorf("build relay form: %w", err)
	}
	for _, item := range media {
		if err := writer.WriteField("media", item); err != nil {
			return "", fmt.Errorf("build relay form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build relay form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(form.String()))
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("target", targetURL).
			Msg("Backend rejected relayed message.")
		return "", fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	return string(responseBytes), nil
}
