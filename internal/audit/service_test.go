package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresSoftwareAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeCycleUpdated}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{Software: "app"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogBillCompleted(context.Background(), "app", "boss", "1.2.3.4", "alice", 7, "42.5"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeBillCompleted {
		t.Fatalf("expected bill_completed")
	}
	if evs[0].BillID != 7 || evs[0].TargetAgent != "alice" {
		t.Fatalf("expected target captured, got %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}
