package domain

import "time"

// MaxFreeTextLen bounds free-text event fields before insert.
const MaxFreeTextLen = 100

// Event is one generic analytics row, written fire-and-forget to the
// analytics store. Append-only.
type Event struct {
	EventID     string         `json:"event_id"`
	Name        string         `json:"event_name"`
	Page        string         `json:"page"`
	ElementID   string         `json:"element_id,omitempty"`
	ElementText string         `json:"element_text,omitempty"`
	ElementType string         `json:"element_type,omitempty"`
	Value       float64        `json:"value,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SessionID   string         `json:"session_id"`
	UTMSource   string         `json:"utm_source,omitempty"`
	UTMMedium   string         `json:"utm_medium,omitempty"`
	UTMCampaign string         `json:"utm_campaign,omitempty"`
	Country     string         `json:"country,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TruncateText clips free-text fields to the store limit.
func TruncateText(s string) string {
	if len(s) <= MaxFreeTextLen {
		return s
	}
	return s[:MaxFreeTextLen]
}

// WorkflowStatus is the lifecycle state of one automation step.
type WorkflowStatus string

const (
	WorkflowStarted   WorkflowStatus = "started"
	WorkflowStep      WorkflowStatus = "step"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowSkipped   WorkflowStatus = "skipped"
)

// WorkflowLogEntry describes one step or outcome of a server-side
// automation run. Append-only, operational visibility only.
type WorkflowLogEntry struct {
	RunID        string         `json:"run_id"`
	WorkflowName string         `json:"workflow_name"`
	WorkflowType string         `json:"workflow_type"`
	Status       WorkflowStatus `json:"status"`
	Message      string         `json:"message"`
	DurationMS   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// PurchaseEvent is the canonical conversion payload shared by the pixel,
// the Conversions API relay and the analytics store. The same EventID is
// used across all sinks so the ad platform can deduplicate.
type PurchaseEvent struct {
	EventID       string   `json:"event_id"`
	Value         float64  `json:"value"`
	Currency      string   `json:"currency"`
	ContentIDs    []string `json:"content_ids"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	CustomerPhone string   `json:"customer_phone,omitempty"`
	FBCLID        string   `json:"fbclid,omitempty"`
	FBP           string   `json:"fbp,omitempty"`
	ClientIP      string   `json:"client_ip,omitempty"`
	UserAgent     string   `json:"user_agent,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
}
