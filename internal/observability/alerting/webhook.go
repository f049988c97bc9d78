package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig describes a generic JSON webhook endpoint.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookNotifier posts each event as a JSON document to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	Code       string            `json:"code"`
	Severity   string            `json:"severity"`
	Message    string            `json:"message,omitempty"`
	Network    string            `json:"network,omitempty"`
	RealmID    string            `json:"realm_id,omitempty"`
	Wallet     string            `json:"wallet,omitempty"`
	TxHash     string            `json:"tx_hash,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewWebhookNotifier validates the endpoint and returns a webhook channel.
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Channel reports the webhook channel identifier.
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Notify posts the event to the endpoint and requires a 2xx response.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	payload := webhookPayload{
		Code:       string(event.Code),
		Severity:   string(event.Severity),
		Message:    event.Message,
		Network:    event.Network,
		RealmID:    event.RealmID,
		Wallet:     event.Wallet,
		TxHash:     event.TxHash,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
