package makecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// FallbackStore persists payloads that could not be delivered. The Redis
// state store satisfies it.
type FallbackStore interface {
	PushFailedWebhook(ctx context.Context, payload []byte) error
}

const (
	maxAttempts    = 3
	overallTimeout = 30 * time.Second
)

var retryDelays = []time.Duration{time.Second, 3 * time.Second}

// Sender delivers flattened JSON payloads to fixed Make.com webhook URLs.
// 5xx responses are retried up to three times with increasing delays; the
// whole delivery is bounded by a 30-second context. If every attempt
// fails, the payload is pushed to the failed-webhook list in the state
// store. Best effort, not a guaranteed-delivery queue.
type Sender struct {
	httpClient *http.Client
	fallback   FallbackStore
	logger     zerolog.Logger
}

// NewSender creates a webhook sender with the given fallback store.
func NewSender(fallback FallbackStore, logger zerolog.Logger) *Sender {
	return &Sender{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		fallback:   fallback,
		logger:     logger,
	}
}

// Send posts the payload, retrying 5xx responses. Returns the final error
// after fallback persistence; callers treat it as best-effort.
func (s *Sender) Send(ctx context.Context, webhookURL string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	var lastErr error
attempts:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryable, err := s.post(ctx, webhookURL, body)
		if err == nil {
			return nil
		}
		lastErr = err

		s.logger.Warn().
			Err(err).
			Str("url", webhookURL).
			Int("attempt", attempt).
			Msg("Webhook delivery failed")

		if !retryable || attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(retryDelays[attempt-1]):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		}
	}

	record, _ := json.Marshal(map[string]any{
		"url":       webhookURL,
		"payload":   json.RawMessage(body),
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.fallback.PushFailedWebhook(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist undelivered webhook payload")
	}
	return fmt.Errorf("webhook delivery to %s failed: %w", webhookURL, lastErr)
}

// post performs one delivery attempt. The bool reports whether the failure
// is retryable (5xx or transport error); 4xx responses are not.
func (s *Sender) post(ctx context.Context, webhookURL string, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return false, nil
}
