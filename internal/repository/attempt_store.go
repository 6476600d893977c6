package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// AttemptStore is the durable home of attempts and their answers.
//
// Implementations serialize writes per attempt id: UpsertAnswer and
// FinalizeAttempt read, check and write under one lock, so concurrent
// submissions for the same attempt cannot interleave their LWW comparison.
type AttemptStore interface {
	// CreateAttempt fails with model.ErrConflict while the user has an active,
	// unexpired attempt for the exam.
	CreateAttempt(ctx context.Context, in model.NewAttempt, now time.Time) (*model.Attempt, error)
	GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	// FindActive returns the user's unfinalized, unexpired attempt for the exam.
	FindActive(ctx context.Context, userID, examID int64, now time.Time) (*model.Attempt, error)
	// UpsertAnswer stores ans when it wins last-writer-wins against the
	// current answer and returns the answer stored afterwards.
	UpsertAnswer(ctx context.Context, ans *model.Answer) (*model.Answer, bool, error)
	// FinalizeAttempt is idempotent.
	FinalizeAttempt(ctx context.Context, id uuid.UUID, now time.Time) (*model.Attempt, error)
	// ListAnswers returns current answers ordered by question id.
	ListAnswers(ctx context.Context, id uuid.UUID) ([]model.Answer, error)
}

// ExamCatalog resolves the exams and questions attempts refer to.
type ExamCatalog interface {
	GetExam(ctx context.Context, examID int64) (*model.Exam, error)
	QuestionExists(ctx context.Context, examID, questionID int64) (bool, error)
}
