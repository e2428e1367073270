package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only:
// no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records who changed settlement state. Callers treat audit logging
// as best-effort: a failed append is logged and swallowed, never surfaced to
// the client.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Software == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogRatesReplaced records a full price-list overwrite.
func (s *Service) LogRatesReplaced(ctx context.Context, software, actor, ip, targetAgent string, rateCount int) error {
	return s.Append(ctx, Event{
		Software:      software,
		Type:          EventTypeRatesReplaced,
		ActorUsername: actor,
		IPAddress:     ip,
		TargetAgent:   targetAgent,
		Message:       fmt.Sprintf("price list replaced with %d rows", rateCount),
	})
}

// LogCycleUpdated records a cycle-configuration change.
func (s *Service) LogCycleUpdated(ctx context.Context, software, actor, ip, targetAgent string, days, timeMinutes int) error {
	return s.Append(ctx, Event{
		Software:      software,
		Type:          EventTypeCycleUpdated,
		ActorUsername: actor,
		IPAddress:     ip,
		TargetAgent:   targetAgent,
		Message:       fmt.Sprintf("cycle set to %d days at minute %d", days, timeMinutes),
	})
}

// LogBillCompleted records a bill settlement.
func (s *Service) LogBillCompleted(ctx context.Context, software, actor, ip, targetAgent string, billID int64, amount string) error {
	return s.Append(ctx, Event{
		Software:      software,
		Type:          EventTypeBillCompleted,
		ActorUsername: actor,
		IPAddress:     ip,
		TargetAgent:   targetAgent,
		BillID:        billID,
		Message:       "bill settled for " + amount,
	})
}
