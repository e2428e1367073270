package perm

import "testing"

func TestHas(t *testing.T) {
	if !Has(ViewAllDescendants|EditSettlement, ViewAllDescendants) {
		t.Fatalf("expected bit set")
	}
	if Has(EditSettlement, ViewAllDescendants) {
		t.Fatalf("expected bit unset")
	}
	if Has(0, EditSettlement) {
		t.Fatalf("expected empty mask to have no bits")
	}
}
