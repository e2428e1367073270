package sales

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Record is one card activation as seen by the MemorySource.
type Record struct {
	Software    string
	Agent       string
	CardType    string
	ActivatedAt time.Time
	Count       int64
}

// MemorySource is an in-memory Source useful for tests and early development.
type MemorySource struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemorySource(records ...Record) *MemorySource {
	return &MemorySource{records: records}
}

func (s *MemorySource) Add(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func (s *MemorySource) CountByCardType(_ context.Context, software string, agents []string, start, end time.Time) (map[string]map[string]int64, error) {
	wanted := make(map[string]string, len(agents)) // folded -> canonical
	for _, a := range agents {
		wanted[strings.ToLower(a)] = a
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]int64)
	for _, r := range s.records {
		if r.Software != software {
			continue
		}
		canonical, ok := wanted[strings.ToLower(r.Agent)]
		if !ok {
			continue
		}
		if r.ActivatedAt.Before(start) || !r.ActivatedAt.Before(end) {
			continue
		}
		byType := out[canonical]
		if byType == nil {
			byType = make(map[string]int64)
			out[canonical] = byType
		}
		n := r.Count
		if n <= 0 {
			n = 1
		}
		byType[r.CardType] += n
	}
	return out, nil
}
