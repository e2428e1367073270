package sales

import (
	"context"
	"time"
)

// Source abstracts the external card-sales ledger. The settlement engine uses
// it read-only to size a billing period; it never writes sales data.
type Source interface {
	// CountByCardType returns activated-card counts per agent and card type
	// over [start, end). Agents with no activity may be absent from the map.
	CountByCardType(ctx context.Context, software string, agents []string, start, end time.Time) (map[string]map[string]int64, error)
}
