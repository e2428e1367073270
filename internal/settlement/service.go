package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agent-settlement-platform/internal/hierarchy"
	"agent-settlement-platform/internal/sales"
	"agent-settlement-platform/pkg/logger"

	"github.com/shopspring/decimal"
)

const maxNoteLen = 255

// Details is the full settlement snapshot for one agent: merged rates,
// resolved cycle, recent bills (pending decorated with suggested amounts and
// breakdowns) and the reminder flag.
type Details struct {
	Software      string    `json:"software"`
	AgentUsername string    `json:"agent_username"`
	Rates         []Rate    `json:"rates"`
	Cycle         CycleInfo `json:"cycle"`
	Bills         []Bill    `json:"bills"`

	HasPendingReminder bool `json:"has_pending_reminder"`
}

// LifecycleService drives the settlement lifecycle: cycle resolution with
// inheritance, lazy bill materialization, completion, and the reminder sweep.
// Materializing a bill never advances the schedule; completion is the only
// path that does.
type LifecycleService struct {
	store Store
	rates *RateService
	dir   hierarchy.Directory
	sales sales.Source
	cache ReminderCache

	billHistoryLimit int
	now              func() time.Time
}

func NewLifecycleService(store Store, rates *RateService, dir hierarchy.Directory, salesSrc sales.Source, cache ReminderCache, billHistoryLimit int) *LifecycleService {
	if cache == nil {
		cache = NopReminderCache()
	}
	if billHistoryLimit <= 0 {
		billHistoryLimit = 50
	}
	return &LifecycleService{
		store:            store,
		rates:            rates,
		dir:              dir,
		sales:            salesSrc,
		cache:            cache,
		billHistoryLimit: billHistoryLimit,
		now:              time.Now,
	}
}

// ResolveCycle returns the agent's effective cycle after inheritance and
// seeds the schedule bookkeeping on first touch.
func (s *LifecycleService) ResolveCycle(ctx context.Context, software, agentUsername string) (CycleInfo, error) {
	software = NormalizeSoftware(software)
	agentUsername = NormalizeAgent(agentUsername)
	now := s.now().UTC()

	prof, err := s.store.GetOrCreateProfile(ctx, software, agentUsername)
	if err != nil {
		return CycleInfo{}, err
	}

	effDays, effMinutes, inherited, err := s.effectiveCycle(ctx, software, agentUsername, prof)
	if err != nil {
		return CycleInfo{}, err
	}

	info := CycleInfo{
		AgentUsername:        agentUsername,
		OwnDays:              prof.CycleDays,
		EffectiveDays:        effDays,
		OwnTimeMinutes:       prof.CycleTimeMinutes,
		EffectiveTimeMinutes: effMinutes,
		IsInherited:          inherited,
		LastSettledAt:        prof.LastSettledAt,
		NextDueAt:            prof.NextDueAt,
	}

	if effDays > 0 {
		last := prof.LastSettledAt
		if last == nil {
			// First touch under an active cycle: anchor at the previous
			// cycle-time boundary so the first bill covers a full period.
			seeded := AlignToPreviousBoundary(now, effMinutes)
			last = &seeded
		}
		next := ComputeNextDue(*last, effDays, effMinutes)
		if prof.LastSettledAt == nil || !timesEqual(prof.NextDueAt, next) {
			if err := s.store.UpdateProfileTimes(ctx, software, agentUsername, *last, next); err != nil {
				return CycleInfo{}, err
			}
		}
		info.LastSettledAt = last
		info.NextDueAt = next
	}

	info.IsDue = IsDue(info.NextDueAt, effDays, now)
	return info, nil
}

// effectiveCycle resolves the cycle configuration: the agent's own values when
// set, else the nearest configured ancestor, else the tenant-wide global
// profile. Days and time always come from the same source.
func (s *LifecycleService) effectiveCycle(ctx context.Context, software, agentUsername string, prof Profile) (days, minutes int, inherited bool, err error) {
	if prof.CycleDays > 0 {
		return prof.CycleDays, prof.CycleTimeMinutes, false, nil
	}
	if agentUsername != GlobalAgentKey {
		chain, err := s.dir.ParentChain(ctx, software, agentUsername)
		if err != nil && !errors.Is(err, hierarchy.ErrAgentNotFound) {
			return 0, 0, false, err
		}
		for _, ancestor := range chain {
			p, ok, err := s.store.LoadProfile(ctx, software, ancestor)
			if err != nil {
				return 0, 0, false, err
			}
			if ok && p.CycleDays > 0 {
				return p.CycleDays, p.CycleTimeMinutes, true, nil
			}
		}
		global, ok, err := s.store.LoadProfile(ctx, software, GlobalAgentKey)
		if err != nil {
			return 0, 0, false, err
		}
		if ok && global.CycleDays > 0 {
			return global.CycleDays, global.CycleTimeMinutes, true, nil
		}
	}
	return 0, prof.CycleTimeMinutes, false, nil
}

// GetDetails returns the settlement snapshot, materializing the pending bill
// first when the agent is due. fallbackAgent feeds the rate merge (the caller
// managing the target).
func (s *LifecycleService) GetDetails(ctx context.Context, software, agentUsername, fallbackAgent string) (Details, error) {
	software = NormalizeSoftware(software)
	agentUsername = NormalizeAgent(agentUsername)

	cycle, err := s.ResolveCycle(ctx, software, agentUsername)
	if err != nil {
		return Details{}, err
	}

	if err := s.materializeIfDue(ctx, software, agentUsername, cycle); err != nil {
		return Details{}, err
	}

	rates, err := s.rates.GetRates(ctx, software, agentUsername, fallbackAgent)
	if err != nil {
		return Details{}, err
	}

	bills, err := s.store.ListBills(ctx, software, agentUsername, s.billHistoryLimit)
	if err != nil {
		return Details{}, err
	}

	hasPending := false
	for i := range bills {
		if bills[i].Settled {
			continue
		}
		hasPending = true
		if err := s.decorateBill(ctx, software, agentUsername, fallbackAgent, &bills[i]); err != nil {
			return Details{}, err
		}
	}

	reminder := hasPending || cycle.IsDue
	if err := s.cache.Set(ctx, software, agentUsername, reminder); err != nil {
		logger.From(ctx).Warn("reminder cache set failed", "error", err)
	}

	return Details{
		Software:           software,
		AgentUsername:      agentUsername,
		Rates:              rates,
		Cycle:              cycle,
		Bills:              bills,
		HasPendingReminder: reminder,
	}, nil
}

// materializeIfDue creates the pending bill for the current period when the
// agent is due and no pending bill exists. Losing the insert race to a
// concurrent reader is fine: the winner's bill is picked up by the list read.
func (s *LifecycleService) materializeIfDue(ctx context.Context, software, agentUsername string, cycle CycleInfo) error {
	if !cycle.IsDue || cycle.NextDueAt == nil {
		return nil
	}
	_, exists, err := s.store.FindPendingBill(ctx, software, agentUsername)
	if err != nil || exists {
		return err
	}

	cycleEnd := cycle.NextDueAt.UTC()
	var cycleStart time.Time
	if cycle.LastSettledAt != nil {
		cycleStart = cycle.LastSettledAt.UTC()
	} else {
		cycleStart = cycleEnd.AddDate(0, 0, -cycle.EffectiveDays)
	}

	_, err = s.store.InsertPendingBill(ctx, Bill{
		Software:      software,
		AgentUsername: agentUsername,
		CycleStart:    cycleStart,
		CycleEnd:      cycleEnd,
		Amount:        decimal.Zero,
	})
	if errors.Is(err, ErrPendingBillExists) {
		return nil
	}
	return err
}

// decorateBill fills SuggestedAmount and Breakdowns from the sales ledger over
// [CycleStart, CycleEnd): one row for the agent's own sales plus one per
// direct-child subtree.
func (s *LifecycleService) decorateBill(ctx context.Context, software, agentUsername, fallbackAgent string, bill *Bill) error {
	rateMap, err := s.rates.GetRateMap(ctx, software, agentUsername, fallbackAgent)
	if err != nil {
		return err
	}

	descendants, err := s.dir.GetAccessibleAgents(ctx, software, agentUsername, true)
	if err != nil && !errors.Is(err, hierarchy.ErrAgentNotFound) {
		return err
	}

	all := make([]string, 0, len(descendants)+1)
	all = append(all, agentUsername)
	for _, a := range descendants {
		all = append(all, a.Username)
	}

	counts, err := s.sales.CountByCardType(ctx, software, all, bill.CycleStart, bill.CycleEnd)
	if err != nil {
		return err
	}

	amountFor := func(agents []string) (int64, decimal.Decimal) {
		var n int64
		total := decimal.Zero
		for _, agent := range agents {
			for cardType, count := range counts[agent] {
				n += count
				if price, ok := rateMap[strings.ToLower(cardType)]; ok {
					total = total.Add(price.Mul(decimal.NewFromInt(count)))
				}
			}
		}
		return n, NormalizePrice(total)
	}

	var rows []BillBreakdown
	total := decimal.Zero

	if n, amt := amountFor([]string{agentUsername}); n > 0 {
		rows = append(rows, BillBreakdown{Agent: agentUsername, DisplayName: agentUsername, Count: n, Amount: amt})
		total = total.Add(amt)
	}

	for _, child := range directChildren(descendants, agentUsername) {
		subtree := subtreeUsernames(descendants, child.Username)
		n, amt := amountFor(subtree)
		if n == 0 {
			continue
		}
		rows = append(rows, BillBreakdown{
			Agent:       child.Username,
			DisplayName: displayName(child),
			Count:       n,
			Amount:      amt,
		})
		total = total.Add(amt)
	}

	bill.SuggestedAmount = NormalizePrice(total)
	bill.Breakdowns = rows
	return nil
}

func directChildren(agents []hierarchy.Agent, parent string) []hierarchy.Agent {
	var out []hierarchy.Agent
	for _, a := range agents {
		if strings.EqualFold(a.Parent, parent) {
			out = append(out, a)
		}
	}
	return out
}

// subtreeUsernames returns root plus every agent reachable from it through
// the parent links present in the listed set.
func subtreeUsernames(agents []hierarchy.Agent, root string) []string {
	members := map[string]bool{strings.ToLower(root): true}
	out := []string{root}
	for changed := true; changed; {
		changed = false
		for _, a := range agents {
			key := strings.ToLower(a.Username)
			if members[key] {
				continue
			}
			if members[strings.ToLower(a.Parent)] {
				members[key] = true
				out = append(out, a.Username)
				changed = true
			}
		}
	}
	return out
}

func displayName(a hierarchy.Agent) string {
	if a.Remark != "" {
		return a.Remark
	}
	return a.Username
}

// UpdateCycle applies a partial cycle-configuration update and re-anchors the
// schedule under the new values.
func (s *LifecycleService) UpdateCycle(ctx context.Context, software, agentUsername string, cycleDays, cycleTimeMinutes *int) (CycleInfo, error) {
	software = NormalizeSoftware(software)
	agentUsername = NormalizeAgent(agentUsername)
	now := s.now().UTC()

	prof, err := s.store.GetOrCreateProfile(ctx, software, agentUsername)
	if err != nil {
		return CycleInfo{}, err
	}

	newDays := prof.CycleDays
	if cycleDays != nil {
		newDays = *cycleDays
	}
	newMinutes := prof.CycleTimeMinutes
	if cycleTimeMinutes != nil {
		newMinutes = *cycleTimeMinutes
	}
	if newDays < 0 {
		return CycleInfo{}, fmt.Errorf("%w: cycle days must be >= 0", ErrValidation)
	}
	if newMinutes < 0 || newMinutes >= 1440 {
		return CycleInfo{}, fmt.Errorf("%w: cycle time must be in [0, 1440)", ErrValidation)
	}

	// An active cycle re-anchors at the previous boundary of today: a stale
	// anchor left over from a disabled period would back-date the next bill.
	last := prof.LastSettledAt
	var next *time.Time
	if newDays > 0 {
		anchored := AlignToPreviousBoundary(now, newMinutes)
		last = &anchored
		next = ComputeNextDue(anchored, newDays, newMinutes)
	}

	if err := s.store.UpdateProfileConfig(ctx, software, agentUsername, newDays, newMinutes, last, next); err != nil {
		return CycleInfo{}, err
	}
	if err := s.cache.Invalidate(ctx, software, agentUsername); err != nil {
		logger.From(ctx).Warn("reminder cache invalidate failed", "error", err)
	}

	return s.ResolveCycle(ctx, software, agentUsername)
}

// CompleteBill settles a pending bill with the confirmed amount and advances
// the schedule past the bill's period. Completing an already-settled bill is
// a no-op success returning the stored bill.
func (s *LifecycleService) CompleteBill(ctx context.Context, software, agentUsername string, billID int64, amount decimal.Decimal, note string) (Bill, error) {
	software = NormalizeSoftware(software)
	agentUsername = NormalizeAgent(agentUsername)

	bill, err := s.store.GetBill(ctx, software, agentUsername, billID)
	if err != nil {
		return Bill{}, err
	}
	if bill.Settled {
		return bill, nil
	}

	if amount.Sign() < 0 {
		amount = decimal.Zero
	}
	amount = NormalizePrice(amount)

	note = strings.TrimSpace(note)
	if len(note) > maxNoteLen {
		note = note[:maxNoteLen]
	}

	prof, err := s.store.GetOrCreateProfile(ctx, software, agentUsername)
	if err != nil {
		return Bill{}, err
	}
	effDays, effMinutes, _, err := s.effectiveCycle(ctx, software, agentUsername, prof)
	if err != nil {
		return Bill{}, err
	}
	next := ComputeNextDue(bill.CycleEnd, effDays, effMinutes)

	settled, err := s.store.CompleteBill(ctx, software, agentUsername, billID, amount, note, s.now().UTC(), next)
	if err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			return settled, nil
		}
		return Bill{}, err
	}

	if err := s.cache.Invalidate(ctx, software, agentUsername); err != nil {
		logger.From(ctx).Warn("reminder cache invalidate failed", "error", err)
	}
	return settled, nil
}

// ReminderMap computes, for the caller and every accessible agent, whether a
// settlement reminder should show. Per-agent failures degrade to false.
func (s *LifecycleService) ReminderMap(ctx context.Context, software, caller string, includeAllDescendants bool) (map[string]bool, error) {
	software = NormalizeSoftware(software)
	caller = NormalizeAgent(caller)

	agents, err := s.dir.GetAccessibleAgents(ctx, software, caller, includeAllDescendants)
	if err != nil {
		return nil, err
	}

	names := []string{caller}
	for _, a := range agents {
		names = append(names, a.Username)
	}

	out := make(map[string]bool, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out[name] = s.reminderFor(ctx, software, name)
	}
	return out, nil
}

func (s *LifecycleService) reminderFor(ctx context.Context, software, agentUsername string) bool {
	if flag, ok, err := s.cache.Get(ctx, software, agentUsername); err == nil && ok {
		return flag
	}

	pending := false
	if _, exists, err := s.store.FindPendingBill(ctx, software, agentUsername); err != nil {
		logger.From(ctx).Warn("reminder lookup failed", "agent", agentUsername, "error", err)
		return false
	} else if exists {
		pending = true
	}
	if !pending {
		cycle, err := s.ResolveCycle(ctx, software, agentUsername)
		if err != nil {
			logger.From(ctx).Warn("reminder cycle resolve failed", "agent", agentUsername, "error", err)
			return false
		}
		pending = cycle.IsDue
	}

	if err := s.cache.Set(ctx, software, agentUsername, pending); err != nil {
		logger.From(ctx).Warn("reminder cache set failed", "error", err)
	}
	return pending
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
