package audit

import "time"

// Event is an immutable, append-only audit record of a settlement write.
//
// Invariants:
// - Events are never updated or deleted.
// - software is required for tenancy isolation.
// - Actor and ip capture are best-effort; never block settlement flows on
//   audit failures.
type Event struct {
	ID       string `json:"id" db:"id"`
	Software string `json:"software" db:"software"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUsername is the authenticated agent causing the event.
	ActorUsername string `json:"actor_username,omitempty" db:"actor_username"`

	// IPAddress stores the resolved client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// TargetAgent is the agent whose settlement state was written.
	TargetAgent string `json:"target_agent,omitempty" db:"target_agent"`
	// BillID is set for bill-completion events.
	BillID int64 `json:"bill_id,omitempty" db:"bill_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeRatesReplaced EventType = "rates_replaced"
	EventTypeCycleUpdated  EventType = "cycle_updated"
	EventTypeBillCompleted EventType = "bill_completed"
)
