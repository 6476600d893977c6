// Package reconcile decides how answer submissions, online or flushed from
// an offline queue, land in the attempt store.
//
// The rules are pure functions so every store implementation can evaluate
// them while holding its per-attempt lock.
package reconcile

import (
	"fmt"
	"time"

	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/timer"
)

// EffectiveTime returns the timestamp that orders a submission against
// other writes to the same answer slot. Offline timestamps are clamped to
// [startedAt, now]: a device cannot answer before the attempt began or
// after the server received the answer.
func EffectiveTime(at *model.Attempt, clientSubmittedAt *time.Time, now time.Time) time.Time {
	if clientSubmittedAt == nil {
		return now
	}
	ts := clientSubmittedAt.UTC().Truncate(time.Microsecond)
	if ts.Before(at.StartedAt) {
		ts = at.StartedAt
	}
	if ts.After(now) {
		ts = now
	}
	return ts
}

// Admit checks whether the attempt still accepts the answer. Online answers
// need time remaining at receipt. Offline answers are accepted after the
// deadline when they originated at or before it.
func Admit(at *model.Attempt, ans *model.Answer) error {
	if at.IsFinalized() {
		return fmt.Errorf("%w: attempt %s is finalized", model.ErrInvalidState, at.ID)
	}

	if ans.IsOffline() {
		if ans.EffectiveAt.After(at.ExpiresAt) {
			return fmt.Errorf("%w: offline answer for attempt %s originated after the deadline", model.ErrInvalidState, at.ID)
		}
		return nil
	}

	if timer.ExpiredAt(at, ans.ServerReceivedAt) {
		return fmt.Errorf("%w: attempt %s has expired", model.ErrInvalidState, at.ID)
	}
	return nil
}

// Supersedes reports whether incoming replaces current. Equal effective
// timestamps go to the most recent write.
func Supersedes(incoming, current *model.Answer) bool {
	if current == nil {
		return true
	}
	return !incoming.EffectiveAt.Before(current.EffectiveAt)
}
