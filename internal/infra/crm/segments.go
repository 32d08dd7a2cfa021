package crm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pushdesk/internal/domain/audience"
	"pushdesk/internal/infra/upstream"
)

var _ audience.SegmentSource = (*Client)(nil)

// Client talks to the upstream CRM's segment handlers. Segment membership is
// always fetched on demand and never cached here.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new CRM segments client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchSegments retrieves all segments. The CRM has shipped this list both
// bare and wrapped; the payload normalizer absorbs the difference.
func (c *Client) FetchSegments(ctx context.Context) ([]audience.Segment, error) {
	body, err := c.get(ctx, "/segments")
	if err != nil {
		return nil, err
	}
	return upstream.Segments(body), nil
}

// FetchSegmentMembers retrieves the users belonging to one segment.
func (c *Client) FetchSegmentMembers(ctx context.Context, segmentID string) ([]audience.User, error) {
	body, err := c.get(ctx, "/segments/"+url.PathEscape(segmentID)+"/members")
	if err != nil {
		return nil, err
	}
	return upstream.Users(body), nil
}

// SyncSegments triggers an upstream segment recomputation.
func (c *Client) SyncSegments(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/segments/sync", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("crm segments sync: status %d", resp.StatusCode)
	}
	return nil
}

// get issues an authenticated GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // 4 MB max
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("crm %s: status %d", path, resp.StatusCode)
	}

	return body, nil
}
