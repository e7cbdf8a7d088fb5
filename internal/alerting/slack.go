package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Sender delivers one formatted alert. Implementations make a single
// attempt; the Dispatcher owns retries.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type SlackConfig struct {
	// WebhookURL may be empty, in which case alerts are logged locally
	// instead of posted.
	WebhookURL string

	// Timeout bounds a single POST. 0 = 5s.
	Timeout time.Duration

	// PostRate and PostBurst cap outbound posts across all alerts; Slack
	// throttles incoming webhooks at roughly one message per second.
	// 0 = 1/s with a burst of 3.
	PostRate  rate.Limit
	PostBurst int
}

type SlackSender struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter
}

func NewSlackSender(cfg SlackConfig) *SlackSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PostRate <= 0 {
		cfg.PostRate = 1
	}
	if cfg.PostBurst <= 0 {
		cfg.PostBurst = 3
	}
	return &SlackSender{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(cfg.PostRate, cfg.PostBurst),
	}
}

// Configured reports whether a webhook URL was provided.
func (s *SlackSender) Configured() bool {
	return s.webhookURL != ""
}

type slackPayload struct {
	Text string `json:"text"`
}

// Send posts the text to the webhook. Without a configured URL the alert
// is logged and Send succeeds, so an unconfigured watcher still surfaces
// alerts in its own output.
func (s *SlackSender) Send(ctx context.Context, text string) error {
	if s.webhookURL == "" {
		slog.Info("ALERT (webhook not configured)", "text", text)
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for webhook rate limit: %w", err)
	}

	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
