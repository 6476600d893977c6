package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/timer"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func attempt(duration time.Duration) *model.Attempt {
	return &model.Attempt{
		ID:        uuid.New(),
		Status:    model.AttemptStatusActive,
		StartedAt: t0,
		ExpiresAt: t0.Add(duration),
	}
}

func tp(t time.Time) *time.Time { return &t }

func TestEffectiveTime(t *testing.T) {
	at := attempt(time.Hour)
	now := t0.Add(30 * time.Minute)

	tests := []struct {
		name   string
		client *time.Time
		want   time.Time
	}{
		{"online uses now", nil, now},
		{"offline inside window", tp(t0.Add(10 * time.Minute)), t0.Add(10 * time.Minute)},
		{"before start clamps up", tp(t0.Add(-time.Hour)), t0},
		{"future clamps down", tp(now.Add(time.Hour)), now},
		{"non UTC input", tp(t0.Add(5 * time.Minute).In(time.FixedZone("WIB", 7*3600))), t0.Add(5 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveTime(at, tt.client, now)
			if !got.Equal(tt.want) {
				t.Errorf("EffectiveTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdmit(t *testing.T) {
	at := attempt(time.Hour)
	finalized := attempt(time.Hour)
	finalized.Status = model.AttemptStatusFinalized
	finalized.FinalizedAt = tp(t0.Add(time.Minute))

	tests := []struct {
		name    string
		at      *model.Attempt
		ans     model.Answer
		wantErr bool
	}{
		{"online before deadline", at, model.Answer{ServerReceivedAt: t0.Add(59 * time.Minute)}, false},
		{"online at deadline", at, model.Answer{ServerReceivedAt: t0.Add(time.Hour)}, true},
		{"online after deadline", at, model.Answer{ServerReceivedAt: t0.Add(2 * time.Hour)}, true},
		{
			"offline originated before deadline, received after",
			at,
			model.Answer{ClientSubmittedAt: tp(t0.Add(50 * time.Minute)), EffectiveAt: t0.Add(50 * time.Minute), ServerReceivedAt: t0.Add(3 * time.Hour)},
			false,
		},
		{
			"offline originated exactly at deadline",
			at,
			model.Answer{ClientSubmittedAt: tp(t0.Add(time.Hour)), EffectiveAt: t0.Add(time.Hour), ServerReceivedAt: t0.Add(3 * time.Hour)},
			false,
		},
		{
			"offline originated after deadline",
			at,
			model.Answer{ClientSubmittedAt: tp(t0.Add(61 * time.Minute)), EffectiveAt: t0.Add(61 * time.Minute), ServerReceivedAt: t0.Add(3 * time.Hour)},
			true,
		},
		{"finalized refuses online", finalized, model.Answer{ServerReceivedAt: t0.Add(2 * time.Minute)}, true},
		{
			"finalized refuses offline",
			finalized,
			model.Answer{ClientSubmittedAt: tp(t0), EffectiveAt: t0, ServerReceivedAt: t0.Add(2 * time.Minute)},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Admit(tt.at, &tt.ans)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Admit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, model.ErrInvalidState) {
				t.Errorf("Admit() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestSupersedes(t *testing.T) {
	older := &model.Answer{EffectiveAt: t0}
	newer := &model.Answer{EffectiveAt: t0.Add(time.Second)}
	same := &model.Answer{EffectiveAt: t0}

	if !Supersedes(older, nil) {
		t.Error("first write must win")
	}
	if !Supersedes(newer, older) {
		t.Error("newer must replace older")
	}
	if Supersedes(older, newer) {
		t.Error("older must not replace newer")
	}
	if !Supersedes(same, older) {
		t.Error("equal timestamps go to the later write")
	}
}

// mapStore is a minimal Store applying the same rules without locking.
type mapStore struct {
	at      *model.Attempt
	answers map[int64]*model.Answer
}

func (m *mapStore) UpsertAnswer(_ context.Context, ans *model.Answer) (*model.Answer, bool, error) {
	if err := Admit(m.at, ans); err != nil {
		return nil, false, err
	}
	if cur := m.answers[ans.QuestionID]; !Supersedes(ans, cur) {
		return cur, false, nil
	}
	m.answers[ans.QuestionID] = ans
	return ans, true, nil
}

// Two offline devices write the same slot; whichever arrives first, the
// answer captured later on the device is kept.
func TestApplyOfflineConflictConverges(t *testing.T) {
	at := attempt(2 * time.Hour)
	now := t0.Add(time.Hour)
	clock := timer.NewAuthority(func() time.Time { return now })

	a := Submission{AttemptID: at.ID, QuestionID: 5, Payload: "A", ClientSubmittedAt: tp(t0.Add(50 * time.Minute))}
	b := Submission{AttemptID: at.ID, QuestionID: 5, Payload: "B", ClientSubmittedAt: tp(t0.Add(55 * time.Minute))}

	orders := [][]Submission{{a, b}, {b, a}}
	for _, order := range orders {
		store := &mapStore{at: at, answers: map[int64]*model.Answer{}}
		r := NewReconciler(store, clock)

		for _, sub := range order {
			if _, err := r.Apply(context.Background(), at, sub); err != nil {
				t.Fatalf("Apply(%s): %v", sub.Payload, err)
			}
		}
		if got := store.answers[5].Payload; got != "B" {
			t.Errorf("order %s,%s stored %q, want B", order[0].Payload, order[1].Payload, got)
		}
	}
}

func TestApplyReportsSuperseded(t *testing.T) {
	at := attempt(time.Hour)
	now := t0.Add(40 * time.Minute)
	clock := timer.NewAuthority(func() time.Time { return now })
	store := &mapStore{at: at, answers: map[int64]*model.Answer{}}
	r := NewReconciler(store, clock)

	first, err := r.Apply(context.Background(), at, Submission{AttemptID: at.ID, QuestionID: 1, Payload: "online"})
	if err != nil || first.Outcome() != model.AnswerOutcomeApplied {
		t.Fatalf("online apply = %+v, %v", first, err)
	}

	stale, err := r.Apply(context.Background(), at, Submission{
		AttemptID: at.ID, QuestionID: 1, Payload: "stale", ClientSubmittedAt: tp(t0.Add(10 * time.Minute)),
	})
	if err != nil {
		t.Fatalf("stale apply: %v", err)
	}
	if stale.Applied || stale.Outcome() != model.AnswerOutcomeSuperseded {
		t.Errorf("stale outcome = %s, want SUPERSEDED", stale.Outcome())
	}
	if stale.Current.Payload != "online" {
		t.Errorf("current = %q, want online", stale.Current.Payload)
	}
}

func TestApplyRejectsBeforeStore(t *testing.T) {
	at := attempt(time.Hour)
	now := t0.Add(2 * time.Hour)
	clock := timer.NewAuthority(func() time.Time { return now })
	store := &mapStore{at: at, answers: map[int64]*model.Answer{}}

	_, err := NewReconciler(store, clock).Apply(context.Background(), at, Submission{AttemptID: at.ID, QuestionID: 1, Payload: "late"})
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if len(store.answers) != 0 {
		t.Error("rejected answer reached the store")
	}
}
