package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the current response to one question within one attempt.
type Answer struct {
	AttemptID         uuid.UUID  `json:"attempt_id"`
	QuestionID        int64      `json:"question_id"`
	Payload           string     `json:"answer"`
	TimeSpent         int        `json:"time_spent"`
	Flagged           bool       `json:"flagged"`
	ClientSubmittedAt *time.Time `json:"client_submitted_at,omitempty"`
	ServerReceivedAt  time.Time  `json:"server_received_at"`
	// EffectiveAt orders competing writes to the same slot.
	EffectiveAt time.Time `json:"effective_at"`
}

// IsOffline reports whether the answer was recorded on a disconnected device.
func (a *Answer) IsOffline() bool {
	return a.ClientSubmittedAt != nil
}

// SubmitAnswerRequest is the payload for recording one answer.
// MaxTimeSpentSeconds caps the per-question time a client may report.
const MaxTimeSpentSeconds = 86400

// BoundTimeSpent clamps a reported time spent into [0, MaxTimeSpentSeconds].
func BoundTimeSpent(seconds int) int {
	switch {
	case seconds < 0:
		return 0
	case seconds > MaxTimeSpentSeconds:
		return MaxTimeSpentSeconds
	default:
		return seconds
	}
}

type SubmitAnswerRequest struct {
	QuestionID       int64      `json:"question_id" binding:"required,gt=0"`
	Answer           string     `json:"answer" binding:"required,max=10000"`
	TimeSpent        int        `json:"time_spent" binding:"min=0,max=86400"`
	Flagged          bool       `json:"flagged"`
	OfflineTimestamp *time.Time `json:"offline_timestamp"`
}

// SubmitBatchRequest carries an offline queue flushed after reconnecting.
type SubmitBatchRequest struct {
	Answers []SubmitAnswerRequest `json:"answers" binding:"required,min=1,dive"`
}

// AnswerOutcome describes what happened to a submission.
type AnswerOutcome string

const (
	AnswerOutcomeApplied    AnswerOutcome = "APPLIED"
	AnswerOutcomeSuperseded AnswerOutcome = "SUPERSEDED"
	AnswerOutcomeRejected   AnswerOutcome = "REJECTED"
)

// Reasons reported for rejected items of a batch.
const (
	RejectQuestionNotFound = "QUESTION_NOT_FOUND"
	RejectAttemptClosed    = "ATTEMPT_CLOSED"
)

// AnswerAck acknowledges one submission.
type AnswerAck struct {
	QuestionID       int64         `json:"question_id"`
	Accepted         bool          `json:"accepted"`
	Outcome          AnswerOutcome `json:"outcome"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	Error            string        `json:"error,omitempty"`
}

// AnswerRevision is an audit record of one submission, kept even when the
// submission lost to a newer answer.
type AnswerRevision struct {
	AttemptID         uuid.UUID     `json:"attempt_id"`
	QuestionID        int64         `json:"question_id"`
	Payload           string        `json:"answer"`
	TimeSpent         int           `json:"time_spent"`
	Flagged           bool          `json:"flagged"`
	ClientSubmittedAt *time.Time    `json:"client_submitted_at,omitempty"`
	ServerReceivedAt  time.Time     `json:"server_received_at"`
	EffectiveAt       time.Time     `json:"effective_at"`
	Outcome           AnswerOutcome `json:"outcome"`
}

// NewAnswerRevision builds the audit record for a reconciled submission.
func NewAnswerRevision(a *Answer, outcome AnswerOutcome) AnswerRevision {
	return AnswerRevision{
		AttemptID:         a.AttemptID,
		QuestionID:        a.QuestionID,
		Payload:           a.Payload,
		TimeSpent:         a.TimeSpent,
		Flagged:           a.Flagged,
		ClientSubmittedAt: a.ClientSubmittedAt,
		ServerReceivedAt:  a.ServerReceivedAt,
		EffectiveAt:       a.EffectiveAt,
		Outcome:           outcome,
	}
}

// FinalAnswer is one entry of the finalization snapshot.
type FinalAnswer struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
	TimeSpent  int    `json:"time_spent"`
	Flagged    bool   `json:"flagged"`
}

// FinalizationSnapshot is handed to the scoring collaborator once an attempt
// is finalized. Answers are ordered by question id ascending.
type FinalizationSnapshot struct {
	AttemptID   uuid.UUID     `json:"attempt_id"`
	UserID      int64         `json:"user_id"`
	ExamID      int64         `json:"exam_id"`
	FinalizedAt time.Time     `json:"finalized_at"`
	Answers     []FinalAnswer `json:"answers"`
}
