package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Poster delivers a rendered report to its destination. The messaging layer
// behind it is a collaborator; delivery is best effort and the caller decides
// whether a failure is retried.
type Poster interface {
	Post(ctx context.Context, content string) error
}

// LogPoster writes reports to the log. Used as the default sink and in
// development setups without a webhook.
type LogPoster struct {
	Logger zerolog.Logger
}

// Post logs the report content.
func (p LogPoster) Post(_ context.Context, content string) error {
	p.Logger.Info().Str("report", content).Msg("Daily report")
	return nil
}

// WebhookPoster delivers reports as JSON to an HTTP webhook, the shape most
// chat platforms accept for channel messages.
type WebhookPoster struct {
	url    string
	client *http.Client
}

// NewWebhookPoster creates a poster targeting url.
func NewWebhookPoster(url string) *WebhookPoster {
	return &WebhookPoster{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Post sends {"content": ...} to the webhook.
func (p *WebhookPoster) Post(ctx context.Context, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
