package timer

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-attempts/internal/model"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newAttempt(duration time.Duration) *model.Attempt {
	return &model.Attempt{
		Status:    model.AttemptStatusActive,
		StartedAt: t0,
		ExpiresAt: t0.Add(duration),
	}
}

func TestRemainingAt(t *testing.T) {
	at := newAttempt(1800 * time.Second)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"at start", t0, 1800 * time.Second},
		{"before deadline", t0.Add(1700 * time.Second), 100 * time.Second},
		{"at deadline", t0.Add(1800 * time.Second), 0},
		{"after deadline", t0.Add(2000 * time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingAt(at, tt.now); got != tt.want {
				t.Errorf("RemainingAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemainingIsMonotonicAndNonNegative(t *testing.T) {
	at := newAttempt(90 * time.Second)

	prev := RemainingAt(at, t0.Add(-time.Minute))
	for step := 0; step < 300; step++ {
		now := t0.Add(time.Duration(step) * 700 * time.Millisecond)
		got := RemainingAt(at, now)
		if got < 0 {
			t.Fatalf("negative remaining %v at step %d", got, step)
		}
		if got > prev {
			t.Fatalf("remaining increased from %v to %v at step %d", prev, got, step)
		}
		prev = got
	}
}

func TestAuthorityUsesServerClock(t *testing.T) {
	now := t0.Add(1700 * time.Second)
	auth := NewAuthority(func() time.Time { return now })
	at := newAttempt(1800 * time.Second)

	if got := auth.RemainingSeconds(at); got != 100 {
		t.Errorf("RemainingSeconds = %d, want 100", got)
	}
	if auth.IsExpired(at) {
		t.Error("attempt should not be expired yet")
	}

	now = t0.Add(1800 * time.Second)
	if !auth.IsExpired(at) {
		t.Error("attempt should be expired at the deadline")
	}
	if got := auth.Status(at); got != model.AttemptStatusExpired {
		t.Errorf("Status = %s, want %s", got, model.AttemptStatusExpired)
	}
}

func TestStatusKeepsFinalized(t *testing.T) {
	auth := NewAuthority(func() time.Time { return t0.Add(time.Hour) })
	at := newAttempt(time.Minute)
	at.Status = model.AttemptStatusFinalized

	if got := auth.Status(at); got != model.AttemptStatusFinalized {
		t.Errorf("Status = %s, want %s", got, model.AttemptStatusFinalized)
	}
}
