package hierarchy

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryDirectory is an in-memory Directory useful for tests and early
// development. Not intended for production.
type MemoryDirectory struct {
	mu     sync.RWMutex
	agents map[string]Agent // key: software + "\x00" + folded username
}

func NewMemoryDirectory(agents ...Agent) *MemoryDirectory {
	d := &MemoryDirectory{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		d.agents[key(a.Software, a.Username)] = a
	}
	return d
}

func key(software, username string) string {
	return software + "\x00" + strings.ToLower(strings.TrimSpace(username))
}

func (d *MemoryDirectory) Add(a Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[key(a.Software, a.Username)] = a
}

func (d *MemoryDirectory) FindAgent(_ context.Context, software, username string) (Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[key(software, username)]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return a, nil
}

func (d *MemoryDirectory) GetAccessibleAgents(ctx context.Context, software, caller string, includeAllDescendants bool) ([]Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Agent
	for _, a := range d.agents {
		if a.Software != software || strings.EqualFold(a.Username, caller) {
			continue
		}
		if strings.EqualFold(a.Parent, caller) {
			out = append(out, a)
			continue
		}
		if includeAllDescendants && d.isDescendantLocked(software, a.Username, caller) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

func (d *MemoryDirectory) ParentChain(_ context.Context, software, username string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var chain []string
	seen := map[string]bool{}
	current, ok := d.agents[key(software, username)]
	if !ok {
		return nil, ErrAgentNotFound
	}
	for current.Parent != "" {
		folded := strings.ToLower(current.Parent)
		if seen[folded] {
			break // malformed cyclic chain
		}
		seen[folded] = true
		chain = append(chain, current.Parent)
		next, ok := d.agents[key(software, current.Parent)]
		if !ok {
			break
		}
		current = next
	}
	return chain, nil
}

func (d *MemoryDirectory) isDescendantLocked(software, username, ancestor string) bool {
	seen := map[string]bool{}
	current, ok := d.agents[key(software, username)]
	if !ok {
		return false
	}
	for current.Parent != "" {
		if strings.EqualFold(current.Parent, ancestor) {
			return true
		}
		folded := strings.ToLower(current.Parent)
		if seen[folded] {
			return false
		}
		seen[folded] = true
		next, ok := d.agents[key(software, current.Parent)]
		if !ok {
			return false
		}
		current = next
	}
	return false
}
