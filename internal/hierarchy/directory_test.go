package hierarchy

import (
	"context"
	"errors"
	"testing"
)

func testDirectory() *MemoryDirectory {
	return NewMemoryDirectory(
		Agent{Software: "sw1", Username: "root"},
		Agent{Software: "sw1", Username: "mid", Parent: "root"},
		Agent{Software: "sw1", Username: "leaf", Parent: "mid"},
		Agent{Software: "sw1", Username: "other"},
	)
}

func TestParentChain_NearestFirst(t *testing.T) {
	d := testDirectory()
	chain, err := d.ParentChain(context.Background(), "sw1", "leaf")
	if err != nil {
		t.Fatalf("parent chain: %v", err)
	}
	if len(chain) != 2 || chain[0] != "mid" || chain[1] != "root" {
		t.Fatalf("unexpected chain: %v", chain)
	}
}

func TestResolveTargetAgent_SelfWhenEmpty(t *testing.T) {
	got, err := ResolveTargetAgent(context.Background(), testDirectory(), "sw1", "mid", false, "")
	if err != nil || got != "mid" {
		t.Fatalf("expected self, got %q err %v", got, err)
	}
}

func TestResolveTargetAgent_DirectChildWithoutViewAll(t *testing.T) {
	d := testDirectory()
	got, err := ResolveTargetAgent(context.Background(), d, "sw1", "mid", false, "leaf")
	if err != nil || got != "leaf" {
		t.Fatalf("expected leaf, got %q err %v", got, err)
	}

	// grandchild requires the view-all permission
	if _, err := ResolveTargetAgent(context.Background(), d, "sw1", "root", false, "leaf"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestResolveTargetAgent_AnyDepthWithViewAll(t *testing.T) {
	got, err := ResolveTargetAgent(context.Background(), testDirectory(), "sw1", "root", true, "leaf")
	if err != nil || got != "leaf" {
		t.Fatalf("expected leaf, got %q err %v", got, err)
	}
}

func TestResolveTargetAgent_RejectsStrangers(t *testing.T) {
	if _, err := ResolveTargetAgent(context.Background(), testDirectory(), "sw1", "mid", true, "other"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := ResolveTargetAgent(context.Background(), testDirectory(), "sw1", "mid", true, "ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetAccessibleAgents(t *testing.T) {
	d := testDirectory()
	direct, err := d.GetAccessibleAgents(context.Background(), "sw1", "root", false)
	if err != nil {
		t.Fatalf("accessible: %v", err)
	}
	if len(direct) != 1 || direct[0].Username != "mid" {
		t.Fatalf("unexpected direct children: %v", direct)
	}

	all, err := d.GetAccessibleAgents(context.Background(), "sw1", "root", true)
	if err != nil {
		t.Fatalf("accessible all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 descendants, got %v", all)
	}
}
