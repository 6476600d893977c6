// Package timer is the single authority on how much time an attempt has
// left. It only ever reads the server clock; client timestamps never reach it.
package timer

import (
	"time"

	"github.com/stemsi/exstem-attempts/internal/model"
)

// Authority resolves remaining time against the server clock.
type Authority struct {
	now func() time.Time
}

// NewAuthority creates an Authority. A nil clock means time.Now.
func NewAuthority(now func() time.Time) *Authority {
	if now == nil {
		now = time.Now
	}
	return &Authority{now: now}
}

// Now returns the server clock reading, truncated to microseconds to match
// PostgreSQL timestamptz precision.
func (a *Authority) Now() time.Time {
	return a.now().UTC().Truncate(time.Microsecond)
}

// Remaining returns the time left on the attempt right now.
func (a *Authority) Remaining(at *model.Attempt) time.Duration {
	return RemainingAt(at, a.Now())
}

// RemainingSeconds returns Remaining rounded down to whole seconds.
func (a *Authority) RemainingSeconds(at *model.Attempt) int64 {
	return int64(a.Remaining(at) / time.Second)
}

// IsExpired reports whether the attempt's window has closed.
func (a *Authority) IsExpired(at *model.Attempt) bool {
	return ExpiredAt(at, a.Now())
}

// Status returns the stored status, or EXPIRED for an active attempt whose
// window has closed.
func (a *Authority) Status(at *model.Attempt) model.AttemptStatus {
	if at.Status == model.AttemptStatusActive && a.IsExpired(at) {
		return model.AttemptStatusExpired
	}
	return at.Status
}

// Snapshot builds the client view of an attempt.
func (a *Authority) Snapshot(at *model.Attempt) model.AttemptSnapshot {
	return model.AttemptSnapshot{
		ID:               at.ID,
		ExamID:           at.ExamID,
		Status:           a.Status(at),
		StartedAt:        at.StartedAt,
		ExpiresAt:        at.ExpiresAt,
		RemainingSeconds: a.RemainingSeconds(at),
		OfflineMode:      at.OfflineMode,
		DeviceID:         at.DeviceID,
		TimeZone:         at.TimeZone,
		FinalizedAt:      at.FinalizedAt,
	}
}

// RemainingAt computes max(0, expiresAt - now).
func RemainingAt(at *model.Attempt, now time.Time) time.Duration {
	remaining := at.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpiredAt reports whether nothing remains at now.
func ExpiredAt(at *model.Attempt, now time.Time) bool {
	return RemainingAt(at, now) == 0
}
