package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Notifier posts workflow outcomes to a Slack incoming webhook. A missing
// webhook URL disables it.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewNotifier creates a Slack notifier.
func NewNotifier(webhookURL string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

var _ ports.Notifier = (*Notifier)(nil)

// Notify posts one message. No-op when unconfigured.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
