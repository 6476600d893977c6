package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/timer"
)

// Store is the part of the attempt store the reconciler writes through.
// UpsertAnswer must re-run Admit and Supersedes under its per-attempt lock.
type Store interface {
	UpsertAnswer(ctx context.Context, ans *model.Answer) (*model.Answer, bool, error)
}

// Submission is one incoming answer.
type Submission struct {
	AttemptID         uuid.UUID
	QuestionID        int64
	Payload           string
	TimeSpent         int
	Flagged           bool
	ClientSubmittedAt *time.Time
}

// Result describes a reconciled submission.
type Result struct {
	// Incoming is the submission as it was evaluated.
	Incoming *model.Answer
	// Current is the answer stored for the slot after the call.
	Current *model.Answer
	// Applied is false when an answer with a newer effective time was
	// already stored.
	Applied bool
}

// Outcome maps the result to the revision outcome.
func (r *Result) Outcome() model.AnswerOutcome {
	if r.Applied {
		return model.AnswerOutcomeApplied
	}
	return model.AnswerOutcomeSuperseded
}

// Reconciler applies submissions to the store.
type Reconciler struct {
	store Store
	clock *timer.Authority
}

// NewReconciler creates a Reconciler.
func NewReconciler(store Store, clock *timer.Authority) *Reconciler {
	return &Reconciler{store: store, clock: clock}
}

// Apply reconciles sub against at, the attempt as last read by the caller.
// The admission check here only rejects early; the store repeats it on the
// locked row.
func (r *Reconciler) Apply(ctx context.Context, at *model.Attempt, sub Submission) (*Result, error) {
	now := r.clock.Now()

	incoming := &model.Answer{
		AttemptID:         sub.AttemptID,
		QuestionID:        sub.QuestionID,
		Payload:           sub.Payload,
		TimeSpent:         model.BoundTimeSpent(sub.TimeSpent),
		Flagged:           sub.Flagged,
		ClientSubmittedAt: sub.ClientSubmittedAt,
		ServerReceivedAt:  now,
		EffectiveAt:       EffectiveTime(at, sub.ClientSubmittedAt, now),
	}

	if err := Admit(at, incoming); err != nil {
		return nil, err
	}

	current, applied, err := r.store.UpsertAnswer(ctx, incoming)
	if err != nil {
		return nil, err
	}

	return &Result{Incoming: incoming, Current: current, Applied: applied}, nil
}
