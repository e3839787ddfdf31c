package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"certwatch/internal/logger"
	"certwatch/pkg/models"
)

// ErrDelivery wraps every failure to hand an alert to its channel.
var ErrDelivery = errors.New("alert delivery failed")

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 5 * time.Second

// Notifier delivers one message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// Webhook payload formats.
const (
	FormatJSON  = "json"
	FormatSlack = "slack"
)

// WebhookNotifier POSTs alerts to a fixed endpoint, authenticating with a
// bearer token when one is configured.
type WebhookNotifier struct {
	URL    string
	Token  string
	Format string
	Client *http.Client
}

func NewWebhookNotifier(url, token, format string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if format == "" {
		format = FormatJSON
	}
	return &WebhookNotifier{
		URL:    url,
		Token:  token,
		Format: format,
		Client: &http.Client{Timeout: timeout},
	}
}

func (wn *WebhookNotifier) Notify(ctx context.Context, recipient, message string) error {
	var payload []byte
	var err error

	switch wn.Format {
	case FormatSlack:
		payload, err = json.Marshal(map[string]string{
			"channel": recipient,
			"text":    message,
		})
	default:
		payload, err = json.Marshal(map[string]string{
			"recipient": recipient,
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
	if err != nil {
		return fmt.Errorf("%w: failed to marshal webhook payload: %v", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if wn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wn.Token)
	}

	resp, err := wn.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook request failed: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: webhook returned status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}

// MultiNotifier delivers to every channel and reports all failures.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, recipient, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, recipient, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers alerts one by one. Failures are logged and skipped so a
// broken channel never stops a scan. It returns how many were delivered.
func Dispatch(ctx context.Context, n Notifier, recipient string, alerts []models.Alert) int {
	log := logger.GetFromContext(ctx, logger.Get())

	if n == nil {
		if len(alerts) > 0 {
			log.Warn("no alert channel configured, dropping alerts",
				slog.Int("count", len(alerts)))
		}
		return 0
	}

	delivered := 0
	for _, a := range alerts {
		if err := n.Notify(ctx, recipient, a.Message); err != nil {
			log.Error("alert delivery failed",
				slog.String("host", a.Host),
				slog.String("kind", string(a.Kind)),
				slog.String("error", err.Error()))
			continue
		}
		delivered++
		log.Info("alert delivered",
			slog.String("host", a.Host),
			slog.String("kind", string(a.Kind)))
	}
	return delivered
}
