package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookChannel posts the message as JSON to an arbitrary URL.
type WebhookChannel struct {
	URL    string
	Token  string // Optional bearer token
	client *http.Client
}

// NewWebhookChannel creates a webhook channel.
func NewWebhookChannel(url, token string) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		Token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Type returns the channel type.
func (w *WebhookChannel) Type() string {
	return "webhook"
}

// Send posts msg.
func (w *WebhookChannel) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
