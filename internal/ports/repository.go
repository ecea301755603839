package ports

import (
	"context"

	"oracleboxing-funnel-layer/internal/domain"
)

// EventStore persists analytics event rows. Append-only; inserts are best
// effort and must never surface to the user-facing flow.
type EventStore interface {
	InsertEvent(ctx context.Context, event *domain.Event) error
}

// WorkflowLogRepository persists automation run log entries.
type WorkflowLogRepository interface {
	LogEntry(ctx context.Context, entry *domain.WorkflowLogEntry) error
}

// StateStore holds short-lived per-visitor funnel state: the resumable
// checkout snapshot, the tracked-purchase dedup markers, failed webhook
// payloads and cached enrichment values.
type StateStore interface {
	SaveSnapshot(ctx context.Context, visitorID string, snap *domain.CheckoutSnapshot) error
	// GetSnapshot returns nil for missing, corrupt or expired snapshots;
	// corrupt and expired entries are cleared.
	GetSnapshot(ctx context.Context, visitorID string) (*domain.CheckoutSnapshot, error)
	ClearSnapshot(ctx context.Context, visitorID string) error

	IsPurchaseTracked(ctx context.Context, sessionID string) (bool, error)
	MarkPurchaseTracked(ctx context.Context, sessionID string) error

	PushFailedWebhook(ctx context.Context, payload []byte) error

	CachedCountry(ctx context.Context, visitorID string) (string, error)
	CacheCountry(ctx context.Context, visitorID, country string) error
}

// ConversionsClient is the port to the ad platform's server-side
// conversions API.
type ConversionsClient interface {
	SendPurchase(ctx context.Context, event *domain.PurchaseEvent) error
}

// GeoResolver resolves a client IP to a country code. Lookups are bounded
// by a short timeout and fail soft to "".
type GeoResolver interface {
	Country(ctx context.Context, ip string) string
}

// Notifier delivers operational notifications (Slack).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
