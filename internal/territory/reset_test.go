package territory

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNextResetAfter(t *testing.T) {
	// 3-hour blocks shifted by one hour: boundaries land at 02:00,
	// 05:00, 08:00, ... UTC.
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{
			time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2026, 3, 15, 13, 59, 59, 0, time.UTC),
			time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC),
		},
		{
			// Exactly on a boundary: the next one is scheduled.
			time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 15, 17, 0, 0, 0, time.UTC),
		},
		{
			// Near midnight the shift crosses the day boundary.
			time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 16, 2, 0, 0, 0, time.UTC),
		},
	}
	for _, c := range cases {
		got := nextResetAfter(c.now, 3, time.Hour)
		if !got.Equal(c.want) {
			t.Fatalf("nextResetAfter(%v) = %v, want %v", c.now, got, c.want)
		}
	}
}

func TestNextResetAfterNoOffset(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	if got := nextResetAfter(now, 3, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCheckResetClearsStateAndUnblocks(t *testing.T) {
	e, gw, _, advance := testEngine(t, testClaimsConfig())
	ctx := context.Background()

	e.RecordSnapshot(playersNearAlpha())
	if _, err := e.Claim("p1", "P1", "Alpha Base"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Before the boundary nothing happens.
	e.CheckReset(ctx)
	if _, ok := e.claims["Alpha Base"]; !ok {
		t.Fatalf("reset fired early")
	}

	advance(4 * time.Hour)
	e.CheckReset(ctx)

	if len(e.claims) != 0 {
		t.Fatalf("claims not cleared")
	}
	if len(e.history) != 0 {
		t.Fatalf("history not cleared")
	}
	found := false
	for _, m := range gw.sent() {
		if strings.Contains(m, "All POI claims have been reset") {
			found = true
		}
	}
	if !found {
		t.Fatalf("reset broadcast missing: %v", gw.sent())
	}

	// The cycle lockout is gone: the same player can claim again.
	if _, err := e.Claim("p1", "P1", "Alpha Base"); err != nil {
		t.Fatalf("claim after reset: %v", err)
	}

	if !e.NextReset().After(e.now()) {
		t.Fatalf("next reset %v not in the future of %v", e.NextReset(), e.now())
	}
}

func TestCheckResetFiresOnce(t *testing.T) {
	e, gw, _, advance := testEngine(t, testClaimsConfig())
	ctx := context.Background()

	advance(4 * time.Hour)
	e.CheckReset(ctx)
	e.CheckReset(ctx)

	n := 0
	for _, m := range gw.sent() {
		if strings.Contains(m, "All POI claims have been reset") {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("reset broadcast %d times, want 1", n)
	}
}
