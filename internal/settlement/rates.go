package settlement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RateService resolves and maintains per-agent card-type price lists.
//
// Resolution merges up to three price lists per card type: the agent's own
// rows win when the price is positive, then the fallback agent's rows
// (typically the caller managing the target), then the tenant-wide global
// rows under GlobalAgentKey.
type RateService struct {
	store Store
}

func NewRateService(store Store) *RateService {
	return &RateService{store: store}
}

// GetRates returns the merged price list for an agent, sorted by card type
// case-insensitively. Agents with no rows anywhere get an empty slice.
func (s *RateService) GetRates(ctx context.Context, software, agentUsername, fallbackAgent string) ([]Rate, error) {
	software = NormalizeSoftware(software)
	agentUsername = NormalizeAgent(agentUsername)

	merged := map[string]Rate{}

	layers := []string{GlobalAgentKey}
	if fb := NormalizeAgent(fallbackAgent); fb != GlobalAgentKey && !strings.EqualFold(fb, agentUsername) {
		layers = append(layers, fb)
	}
	if agentUsername != GlobalAgentKey {
		layers = append(layers, agentUsername)
	}

	// Later layers overwrite earlier ones; a zero price never shadows an
	// inherited positive price.
	for _, layer := range layers {
		rows, err := s.store.LoadRates(ctx, software, layer)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			key := strings.ToLower(strings.TrimSpace(r.CardType))
			if key == "" {
				continue
			}
			if r.Price.Sign() <= 0 {
				if _, seen := merged[key]; seen {
					continue
				}
			}
			r.AgentUsername = agentUsername
			r.Price = NormalizePrice(r.Price)
			merged[key] = r
		}
	}

	out := make([]Rate, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].CardType) < strings.ToLower(out[j].CardType)
	})
	return out, nil
}

// GetRateMap returns the merged price list keyed by case-folded card type.
func (s *RateService) GetRateMap(ctx context.Context, software, agentUsername, fallbackAgent string) (map[string]decimal.Decimal, error) {
	rates, err := s.GetRates(ctx, software, agentUsername, fallbackAgent)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rates))
	for _, r := range rates {
		out[strings.ToLower(r.CardType)] = r.Price
	}
	return out, nil
}

// ReplaceRates overwrites the agent's own price list with the supplied rows.
// The whole set is validated before any write; an empty set clears the list.
func (s *RateService) ReplaceRates(ctx context.Context, software, agentUsername string, rates []Rate) error {
	software = NormalizeSoftware(software)
	agentUsername = NormalizeAgent(agentUsername)
	if software == "" {
		return fmt.Errorf("%w: software is required", ErrValidation)
	}

	seen := map[string]struct{}{}
	clean := make([]Rate, 0, len(rates))
	for _, r := range rates {
		cardType := strings.TrimSpace(r.CardType)
		if cardType == "" {
			return fmt.Errorf("%w: card type is required", ErrValidation)
		}
		if len(cardType) > maxIdentifierLen {
			return fmt.Errorf("%w: card type %q too long", ErrValidation, cardType[:32])
		}
		if r.Price.Sign() < 0 {
			return fmt.Errorf("%w: price for %q must be >= 0", ErrValidation, cardType)
		}
		key := strings.ToLower(cardType)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate card type %q", ErrValidation, cardType)
		}
		seen[key] = struct{}{}
		clean = append(clean, Rate{
			Software:      software,
			AgentUsername: agentUsername,
			CardType:      cardType,
			Price:         NormalizePrice(r.Price),
		})
	}

	return s.store.ReplaceRates(ctx, software, agentUsername, clean)
}
