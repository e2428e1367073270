package settlement

import "context"

// ReminderCache short-circuits the reminder sweep: it remembers, per agent,
// whether a bill is currently pending or overdue. Entries are best effort and
// expire quickly; a miss just means the flag is recomputed.
type ReminderCache interface {
	// Get returns the cached flag and whether an entry was present.
	Get(ctx context.Context, software, agentUsername string) (pending bool, ok bool, err error)

	// Set stores the flag until the cache's TTL expires.
	Set(ctx context.Context, software, agentUsername string, pending bool) error

	// Invalidate drops the entry. Called after writes that change whether an
	// agent is due.
	Invalidate(ctx context.Context, software, agentUsername string) error
}

// nopReminderCache is used when no Redis is configured.
type nopReminderCache struct{}

func (nopReminderCache) Get(context.Context, string, string) (bool, bool, error) { return false, false, nil }
func (nopReminderCache) Set(context.Context, string, string, bool) error        { return nil }
func (nopReminderCache) Invalidate(context.Context, string, string) error       { return nil }

// NopReminderCache returns a cache that never hits.
func NopReminderCache() ReminderCache { return nopReminderCache{} }
