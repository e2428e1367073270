package settlement

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store useful for tests and early development.
// It enforces the same pending-bill and settled-transition guards as the
// Postgres implementation.
type MemoryStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	profiles map[string]*Profile
	rates    map[string][]Rate
	bills    []*Bill
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:    time.Now,
		profiles: make(map[string]*Profile),
		rates:    make(map[string][]Rate),
		nextID:   1,
	}
}

func storeKey(software, agent string) string {
	return software + "\x00" + strings.ToLower(agent)
}

func (s *MemoryStore) LoadProfile(_ context.Context, software, agentUsername string) (Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[storeKey(software, agentUsername)]
	if !ok {
		return Profile{}, false, nil
	}
	return *p, true, nil
}

func (s *MemoryStore) GetOrCreateProfile(_ context.Context, software, agentUsername string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(software, agentUsername), nil
}

func (s *MemoryStore) getOrCreateLocked(software, agentUsername string) *Profile {
	k := storeKey(software, agentUsername)
	if p, ok := s.profiles[k]; ok {
		return p
	}
	now := s.clock().UTC()
	p := &Profile{
		ID:            s.nextID,
		Software:      software,
		AgentUsername: agentUsername,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.nextID++
	s.profiles[k] = p
	return p
}

func (s *MemoryStore) UpdateProfileConfig(_ context.Context, software, agentUsername string, cycleDays, cycleTimeMinutes int, lastSettledAt, nextDueAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(software, agentUsername)
	p.CycleDays = cycleDays
	p.CycleTimeMinutes = NormalizeCycleTime(cycleTimeMinutes)
	p.LastSettledAt = cloneTime(lastSettledAt)
	p.NextDueAt = cloneTime(nextDueAt)
	p.UpdatedAt = s.clock().UTC()
	return nil
}

func (s *MemoryStore) UpdateProfileTimes(_ context.Context, software, agentUsername string, lastSettledAt time.Time, nextDueAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(software, agentUsername)
	last := lastSettledAt.UTC()
	p.LastSettledAt = &last
	p.NextDueAt = cloneTime(nextDueAt)
	p.UpdatedAt = s.clock().UTC()
	return nil
}

func (s *MemoryStore) LoadRates(_ context.Context, software, agentUsername string) ([]Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.rates[storeKey(software, agentUsername)]
	out := make([]Rate, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].CardType) < strings.ToLower(out[j].CardType)
	})
	return out, nil
}

func (s *MemoryStore) ReplaceRates(_ context.Context, software, agentUsername string, rates []Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]Rate, len(rates))
	copy(stored, rates)
	s.rates[storeKey(software, agentUsername)] = stored
	return nil
}

func (s *MemoryStore) FindPendingBill(_ context.Context, software, agentUsername string) (Bill, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.findPendingLocked(software, agentUsername); b != nil {
		return *b, true, nil
	}
	return Bill{}, false, nil
}

func (s *MemoryStore) findPendingLocked(software, agentUsername string) *Bill {
	for _, b := range s.bills {
		if b.Software == software && strings.EqualFold(b.AgentUsername, agentUsername) && !b.Settled {
			return b
		}
	}
	return nil
}

func (s *MemoryStore) InsertPendingBill(_ context.Context, bill Bill) (Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findPendingLocked(bill.Software, bill.AgentUsername) != nil {
		return Bill{}, ErrPendingBillExists
	}
	b := bill
	b.ID = s.nextID
	s.nextID++
	b.Settled = false
	b.SettledAt = nil
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.clock().UTC()
	}
	s.bills = append(s.bills, &b)
	return b, nil
}

func (s *MemoryStore) ListBills(_ context.Context, software, agentUsername string, limit int) ([]Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Bill
	for _, b := range s.bills {
		if b.Software == software && strings.EqualFold(b.AgentUsername, agentUsername) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Settled != out[j].Settled {
			return !out[i].Settled
		}
		return out[i].CycleEnd.After(out[j].CycleEnd)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetBill(_ context.Context, software, agentUsername string, billID int64) (Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getBillLocked(software, agentUsername, billID)
	if b == nil {
		return Bill{}, ErrBillNotFound
	}
	return *b, nil
}

func (s *MemoryStore) getBillLocked(software, agentUsername string, billID int64) *Bill {
	for _, b := range s.bills {
		if b.ID == billID && b.Software == software && strings.EqualFold(b.AgentUsername, agentUsername) {
			return b
		}
	}
	return nil
}

func (s *MemoryStore) CompleteBill(_ context.Context, software, agentUsername string, billID int64, amount decimal.Decimal, note string, settledAt time.Time, nextDueAt *time.Time) (Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getBillLocked(software, agentUsername, billID)
	if b == nil {
		return Bill{}, ErrBillNotFound
	}
	if b.Settled {
		return *b, ErrAlreadySettled
	}

	at := settledAt.UTC()
	b.Amount = amount
	b.Note = note
	b.Settled = true
	b.SettledAt = &at

	p := s.getOrCreateLocked(software, agentUsername)
	last := b.CycleEnd
	p.LastSettledAt = &last
	p.NextDueAt = cloneTime(nextDueAt)
	p.UpdatedAt = s.clock().UTC()

	return *b, nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
