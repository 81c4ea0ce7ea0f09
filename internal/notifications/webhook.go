package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mediaprep/internal/config"
	"mediaprep/internal/logging"
	"mediaprep/internal/queue"
)

const userAgent = "Mediaprep-Go/0.1.0"

// Webhook pushes lifecycle events to an ntfy-compatible endpoint. Only
// transitions a person cares about are forwarded; per-step churn stays in the
// logs.
type Webhook struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewWebhook builds a webhook subscriber from notification settings. Returns
// nil when no webhook URL is configured.
func NewWebhook(cfg *config.Config, logger *slog.Logger) *Webhook {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return nil
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Webhook{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With(logging.String(logging.FieldComponent, "webhook")),
	}
}

// Notify implements Subscriber.
func (w *Webhook) Notify(ctx context.Context, event Event) {
	title, message, priority, ok := render(event)
	if !ok {
		return
	}
	if err := w.send(ctx, title, message, priority); err != nil {
		w.logger.Warn("webhook delivery failed",
			logging.Int64(logging.FieldItemID, event.ItemID),
			logging.Error(err))
	}
}

func render(event Event) (title, message, priority string, ok bool) {
	switch event.NewStatus {
	case queue.StatusCompleted:
		return "Mediaprep - Complete",
			fmt.Sprintf("Item %d processed and uploaded", event.ItemID),
			"", true
	case queue.StatusFailed:
		detail := event.Err
		if detail == "" {
			detail = "unknown error"
		}
		return "Mediaprep - Failed",
			fmt.Sprintf("Item %d failed at %s: %s", event.ItemID, stepLabel(event.Step), detail),
			"high", true
	case queue.StatusCancelled:
		return "Mediaprep - Cancelled",
			fmt.Sprintf("Item %d cancelled", event.ItemID),
			"", true
	default:
		return "", "", "", false
	}
}

func stepLabel(step string) string {
	if strings.TrimSpace(step) == "" {
		return "planning"
	}
	return step
}

func (w *Webhook) send(ctx context.Context, title, message, priority string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if priority != "" && priority != "default" {
		req.Header.Set("Priority", priority)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
