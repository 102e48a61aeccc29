// Package notify delivers signed HTTP callbacks when schedule
// extensions finish.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

const (
	EventScheduleExtended = "schedule.extended"
	EventExtensionFailed  = "schedule.extension_failed"
)

// Event is the wire shape of a notification payload.
type Event struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier posts events to a single configured endpoint. A Notifier
// with an empty URL is a no-op.
type Notifier struct {
	client      *http.Client
	url         string
	secret      string
	maxAttempts int
	log         *logging.Logger
}

// New creates a notifier from configuration.
func New(cfg config.NotifyConfig, log *logging.Logger) *Notifier {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Notifier{
		client:      &http.Client{Timeout: 30 * time.Second},
		url:         cfg.URL,
		secret:      cfg.Secret,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// ScheduleExtended reports a completed extension run.
func (n *Notifier) ScheduleExtended(ctx context.Context, result *models.ExtendResult) error {
	return n.notify(ctx, EventScheduleExtended, result)
}

// ExtensionFailed reports a permanently rejected extension job.
func (n *Notifier) ExtensionFailed(ctx context.Context, req *models.ExtendRequest, cause error) error {
	return n.notify(ctx, EventExtensionFailed, map[string]interface{}{
		"job_id":     req.JobID,
		"channel_id": req.ChannelID,
		"mode":       req.Mode,
		"error":      cause.Error(),
	})
}

func (n *Notifier) notify(ctx context.Context, event string, data interface{}) error {
	if !n.Enabled() {
		return nil
	}

	payload, err := json.Marshal(Event{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	deliveryID := uuid.New().String()

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		if lastErr = n.deliver(ctx, event, deliveryID, payload); lastErr == nil {
			metrics.NotifyDeliveriesTotal.WithLabelValues("delivered").Inc()
			return nil
		}

		metrics.NotifyDeliveriesTotal.WithLabelValues("failed").Inc()
		n.log.WithField("delivery_id", deliveryID).WithError(lastErr).
			Warnf("Notification delivery attempt %d/%d failed", attempt, n.maxAttempts)
	}

	return fmt.Errorf("delivery %s gave up after %d attempts: %w", deliveryID, n.maxAttempts, lastErr)
}

func (n *Notifier) deliver(ctx context.Context, event, deliveryID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Playout-Notify/1.0")
	req.Header.Set("X-Playout-Event", event)
	req.Header.Set("X-Playout-Delivery", deliveryID)

	if n.secret != "" {
		req.Header.Set("X-Playout-Signature", signature(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	// 1s, 2s, 4s, capped at 30s
	d := time.Second << (attempt - 2)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// signature computes the HMAC-SHA256 header value for a payload.
func signature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
