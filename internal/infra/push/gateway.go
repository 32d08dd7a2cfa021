package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pushdesk/internal/domain/notification"
)

var _ notification.Dispatcher = (*Gateway)(nil)

// Gateway delivers push notifications through the upstream dispatch handler.
// The handler's response is opaque: any non-2xx status fails the whole
// dispatch — per-token partial delivery is not modeled.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGateway creates a new push gateway client.
func NewGateway(baseURL, apiKey string) *Gateway {
	return &Gateway{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Dispatch sends title/body/data to every token in one gateway call.
func (g *Gateway) Dispatch(ctx context.Context, tokens []string, title, body string, data map[string]any, notificationID string) error {
	payload := map[string]any{
		"tokens": tokens,
		"title":  title,
		"body":   body,
	}
	if len(data) > 0 {
		payload["data"] = data
	}
	if notificationID != "" {
		payload["notificationId"] = notificationID
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = fmt.Sprintf("push gateway error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("push gateway: %s", msg)
	}

	return nil
}
