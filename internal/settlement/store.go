package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract for settlement data.
//
// Implementations must uphold two storage-level guards:
//   - at most one pending bill per (software, agent): InsertPendingBill
//     returns ErrPendingBillExists when the constraint rejects the insert;
//   - CompleteBill only transitions pending -> settled: a concurrent loser
//     receives ErrAlreadySettled.
type Store interface {
	// LoadProfile reads a stored profile without creating one.
	LoadProfile(ctx context.Context, software, agentUsername string) (Profile, bool, error)

	// GetOrCreateProfile reads the profile, inserting a zero-value row first
	// if the agent has never touched settlement.
	GetOrCreateProfile(ctx context.Context, software, agentUsername string) (Profile, error)

	// UpdateProfileConfig stores cycle configuration plus re-anchored
	// schedule bookkeeping in one write.
	UpdateProfileConfig(ctx context.Context, software, agentUsername string, cycleDays, cycleTimeMinutes int, lastSettledAt *time.Time, nextDueAt *time.Time) error

	// UpdateProfileTimes stores schedule bookkeeping only.
	UpdateProfileTimes(ctx context.Context, software, agentUsername string, lastSettledAt time.Time, nextDueAt *time.Time) error

	// LoadRates returns the agent's own rate rows, card types sorted
	// case-insensitively.
	LoadRates(ctx context.Context, software, agentUsername string) ([]Rate, error)

	// ReplaceRates transactionally deletes all rows for the agent and inserts
	// the supplied set. An empty set clears the price list.
	ReplaceRates(ctx context.Context, software, agentUsername string, rates []Rate) error

	// FindPendingBill returns the agent's single pending bill, if any.
	FindPendingBill(ctx context.Context, software, agentUsername string) (Bill, bool, error)

	// InsertPendingBill materializes a new pending bill.
	InsertPendingBill(ctx context.Context, bill Bill) (Bill, error)

	// ListBills returns recent bills: pending first, then newest cycle end
	// first, capped at limit.
	ListBills(ctx context.Context, software, agentUsername string, limit int) ([]Bill, error)

	// GetBill loads a bill scoped to (software, agent).
	GetBill(ctx context.Context, software, agentUsername string, billID int64) (Bill, error)

	// CompleteBill settles a pending bill and advances the owning profile's
	// schedule (lastSettledAt = bill.CycleEnd, nextDueAt as given) in one
	// transaction.
	CompleteBill(ctx context.Context, software, agentUsername string, billID int64, amount decimal.Decimal, note string, settledAt time.Time, nextDueAt *time.Time) (Bill, error)
}
