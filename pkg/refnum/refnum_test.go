package refnum

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateFormat(t *testing.T) {
	now := time.Date(2025, 3, 15, 9, 30, 45, 123456000, time.UTC)
	number := Generate(PrefixInvoice, now)

	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		t.Fatalf("expected three segments, got %q", number)
	}
	if parts[0] != "INV" {
		t.Fatalf("expected INV prefix, got %q", parts[0])
	}
	if parts[1] != "20250315093045123456" {
		t.Fatalf("unexpected timestamp segment %q", parts[1])
	}
	if len(parts[2]) != suffixLen {
		t.Fatalf("expected %d-char suffix, got %q", suffixLen, parts[2])
	}
}

func TestGenerateUniqueWithinSameInstant(t *testing.T) {
	now := time.Date(2025, 3, 15, 9, 30, 45, 0, time.UTC)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		number := Generate(PrefixBill, now)
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate number generated: %s", number)
		}
		seen[number] = struct{}{}
	}
}

func TestGenerateUsesUTC(t *testing.T) {
	loc := time.FixedZone("BST", 6*60*60)
	local := time.Date(2025, 3, 15, 12, 0, 0, 0, loc)
	number := Generate(PrefixJournal, local)
	if !strings.Contains(number, "20250315060000") {
		t.Fatalf("expected UTC timestamp in %q", number)
	}
}
