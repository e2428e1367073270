package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReplaceRatesOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewRateService(store)

	first := []Rate{
		{CardType: "month", Price: dec("10")},
		{CardType: "week", Price: dec("3")},
	}
	if err := svc.ReplaceRates(ctx, "app", "alice", first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	second := []Rate{
		{CardType: "month", Price: dec("12")},
		{CardType: "day", Price: dec("0.5")},
	}
	if err := svc.ReplaceRates(ctx, "app", "alice", second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := svc.GetRates(ctx, "app", "alice", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rates after overwrite, got %d", len(got))
	}
	if got[0].CardType != "day" || got[1].CardType != "month" {
		t.Fatalf("unexpected order: %q, %q", got[0].CardType, got[1].CardType)
	}
	if !got[1].Price.Equal(dec("12")) {
		t.Fatalf("month price = %s, want 12", got[1].Price)
	}
}

func TestReplaceRatesEmptyClears(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewRateService(store)

	if err := svc.ReplaceRates(ctx, "app", "alice", []Rate{{CardType: "month", Price: dec("10")}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := svc.ReplaceRates(ctx, "app", "alice", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}

	got, err := svc.GetRates(ctx, "app", "alice", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty price list, got %d rows", len(got))
	}
}

func TestReplaceRatesValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewRateService(store)

	if err := svc.ReplaceRates(ctx, "app", "alice", []Rate{{CardType: "month", Price: dec("10")}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bad := []Rate{
		{CardType: "month", Price: dec("5")},
		{CardType: "week", Price: dec("-1")},
	}
	err := svc.ReplaceRates(ctx, "app", "alice", bad)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// The failed replacement must not touch stored rows.
	got, err := svc.GetRates(ctx, "app", "alice", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || !got[0].Price.Equal(dec("10")) {
		t.Fatalf("price list changed after failed replace: %+v", got)
	}

	dup := []Rate{
		{CardType: "Month", Price: dec("5")},
		{CardType: "month", Price: dec("6")},
	}
	if err := svc.ReplaceRates(ctx, "app", "alice", dup); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate card type, got %v", err)
	}

	blank := []Rate{{CardType: "   ", Price: dec("5")}}
	if err := svc.ReplaceRates(ctx, "app", "alice", blank); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank card type, got %v", err)
	}
}

func TestGetRatesMergesLayers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewRateService(store)

	global := []Rate{
		{CardType: "month", Price: dec("8")},
		{CardType: "year", Price: dec("80")},
	}
	if err := svc.ReplaceRates(ctx, "app", "", global); err != nil {
		t.Fatalf("seed global: %v", err)
	}
	caller := []Rate{
		{CardType: "month", Price: dec("9")},
		{CardType: "week", Price: dec("2.5")},
	}
	if err := svc.ReplaceRates(ctx, "app", "boss", caller); err != nil {
		t.Fatalf("seed caller: %v", err)
	}
	own := []Rate{
		{CardType: "month", Price: dec("10")},
		{CardType: "week", Price: dec("0")},
	}
	if err := svc.ReplaceRates(ctx, "app", "alice", own); err != nil {
		t.Fatalf("seed own: %v", err)
	}

	rm, err := svc.GetRateMap(ctx, "app", "alice", "boss")
	if err != nil {
		t.Fatalf("rate map: %v", err)
	}
	if !rm["month"].Equal(dec("10")) {
		t.Fatalf("month = %s, want own 10", rm["month"])
	}
	// A zero own price does not shadow the fallback's positive price.
	if !rm["week"].Equal(dec("2.5")) {
		t.Fatalf("week = %s, want fallback 2.5", rm["week"])
	}
	if !rm["year"].Equal(dec("80")) {
		t.Fatalf("year = %s, want global 80", rm["year"])
	}
}

func TestGetRatesRoundsPrices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewRateService(store)

	if err := svc.ReplaceRates(ctx, "app", "alice", []Rate{{CardType: "month", Price: dec("1.23456")}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := svc.GetRates(ctx, "app", "alice", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got[0].Price.Equal(dec("1.2346")) {
		t.Fatalf("price = %s, want 1.2346", got[0].Price)
	}
}
