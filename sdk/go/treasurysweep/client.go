package treasurysweep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the sweeper's operational REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Stats mirrors the cumulative counters the sweeper exposes. Counters reset
// when the sweeper process restarts.
type Stats struct {
	Iterations      int    `json:"iterations"`
	TicksSkipped    int    `json:"ticks_skipped"`
	Attempted       int    `json:"attempted"`
	Succeeded       int    `json:"succeeded"`
	Skipped         int    `json:"skipped"`
	Failed          int    `json:"failed"`
	SweptTotal      string `json:"swept_total"`
	LastIterationAt int64  `json:"last_iteration_at,omitempty"`
}

// Health is the response of the health endpoint.
type Health struct {
	Status string `json:"status"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("treasurysweep api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("treasurysweep api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the sweeper API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Health checks whether the sweeper process is serving.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.get(ctx, "/healthz", &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

// SweepStats fetches the cumulative sweep counters.
func (c *Client) SweepStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/v1/sweep/stats", &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr APIError
		apiErr.StatusCode = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			err := json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr})
			// A body without the "error" wrapper decodes cleanly but leaves
			// the fields empty; fall back to the flat shape in that case too.
			if err != nil || (apiErr.Code == "" && apiErr.Message == "") {
				_ = json.Unmarshal(data, &apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
