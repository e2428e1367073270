package settlement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GlobalAgentKey holds tenant-wide defaults (rates and cycle configuration)
// that apply when neither the agent nor any ancestor has configured a value.
const GlobalAgentKey = "__GLOBAL__"

const maxIdentifierLen = 191

// Rate is one row of an agent's price list: the settlement price for a single
// card type. Unique per (software, agent, card type). Prices carry four
// fractional digits, rounded half away from zero.
type Rate struct {
	Software      string          `json:"software" db:"software"`
	AgentUsername string          `json:"agent_username" db:"agent_username"`
	CardType      string          `json:"card_type" db:"card_type"`
	Price         decimal.Decimal `json:"price" db:"price"`
}

// Profile is the per-(software, agent) cycle configuration. CycleDays == 0
// means "not configured": the effective cycle is inherited from the nearest
// configured ancestor or the global default.
type Profile struct {
	ID            int64  `json:"id" db:"id"`
	Software      string `json:"software" db:"software"`
	AgentUsername string `json:"agent_username" db:"agent_username"`

	CycleDays        int `json:"cycle_days" db:"cycle_days"`
	CycleTimeMinutes int `json:"cycle_time_minutes" db:"cycle_time_minutes"`

	LastSettledAt *time.Time `json:"last_settled_at,omitempty" db:"last_settled_at"`
	NextDueAt     *time.Time `json:"next_due_at,omitempty" db:"next_due_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Bill is one materialized billing period. Amount is the confirmed/settled
// figure; SuggestedAmount and Breakdowns are derived at read time from the
// sales ledger and are never persisted.
type Bill struct {
	ID            int64  `json:"id" db:"id"`
	Software      string `json:"software" db:"software"`
	AgentUsername string `json:"agent_username" db:"agent_username"`

	CycleStart time.Time `json:"cycle_start" db:"cycle_start"`
	CycleEnd   time.Time `json:"cycle_end" db:"cycle_end"`

	Amount  decimal.Decimal `json:"amount" db:"amount"`
	Settled bool            `json:"settled" db:"settled"`
	Note    string          `json:"note,omitempty" db:"note"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty" db:"settled_at"`

	// Derived fields, zero for settled bills loaded from storage.
	SuggestedAmount decimal.Decimal `json:"suggested_amount" db:"-"`
	Breakdowns      []BillBreakdown `json:"breakdowns,omitempty" db:"-"`
}

// BillBreakdown attributes part of a billing period to one descendant subtree.
type BillBreakdown struct {
	Agent       string          `json:"agent"`
	DisplayName string          `json:"display_name"`
	Count       int64           `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
}

// CycleInfo is the resolved view of an agent's cycle: its own stored values
// plus the effective values after inheritance.
type CycleInfo struct {
	AgentUsername string `json:"agent_username"`

	OwnDays       int `json:"own_days"`
	EffectiveDays int `json:"effective_days"`

	OwnTimeMinutes       int `json:"own_time_minutes"`
	EffectiveTimeMinutes int `json:"effective_time_minutes"`

	IsInherited bool `json:"is_inherited"`

	LastSettledAt *time.Time `json:"last_settled_at,omitempty"`
	NextDueAt     *time.Time `json:"next_due_at,omitempty"`

	IsDue bool `json:"is_due"`
}

// NormalizePrice rounds to the stored precision: 4 fractional digits, half
// away from zero.
func NormalizePrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(4)
}

// NormalizeSoftware trims and caps the tenant identifier.
func NormalizeSoftware(software string) string {
	trimmed := strings.TrimSpace(software)
	if len(trimmed) > maxIdentifierLen {
		trimmed = trimmed[:maxIdentifierLen]
	}
	return trimmed
}

// NormalizeAgent trims and caps the agent username; empty maps to the global
// key so tenant-wide defaults live in the same tables.
func NormalizeAgent(agentUsername string) string {
	trimmed := strings.TrimSpace(agentUsername)
	if trimmed == "" {
		return GlobalAgentKey
	}
	if len(trimmed) > maxIdentifierLen {
		trimmed = trimmed[:maxIdentifierLen]
	}
	return trimmed
}
