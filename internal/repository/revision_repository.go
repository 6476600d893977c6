package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// RevisionRepository appends to the answer_revisions audit table.
type RevisionRepository struct {
	pool *pgxpool.Pool
}

// NewRevisionRepository creates a new RevisionRepository.
func NewRevisionRepository(pool *pgxpool.Pool) *RevisionRepository {
	return &RevisionRepository{pool: pool}
}

// InsertBatch writes all revisions in one statement using UNNEST.
func (r *RevisionRepository) InsertBatch(ctx context.Context, revs []model.AnswerRevision) error {
	n := len(revs)
	if n == 0 {
		return nil
	}

	attemptIDs := make([]uuid.UUID, n)
	questionIDs := make([]int64, n)
	answers := make([]string, n)
	timeSpent := make([]int32, n)
	flagged := make([]bool, n)
	clientAts := make([]*time.Time, n)
	receivedAts := make([]time.Time, n)
	effectiveAts := make([]time.Time, n)
	outcomes := make([]string, n)

	for i, rev := range revs {
		attemptIDs[i] = rev.AttemptID
		questionIDs[i] = rev.QuestionID
		answers[i] = rev.Payload
		timeSpent[i] = int32(model.BoundTimeSpent(rev.TimeSpent))
		flagged[i] = rev.Flagged
		clientAts[i] = rev.ClientSubmittedAt
		receivedAts[i] = rev.ServerReceivedAt
		effectiveAts[i] = rev.EffectiveAt
		outcomes[i] = string(rev.Outcome)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO answer_revisions
			(attempt_id, question_id, answer, time_spent, flagged,
			 client_submitted_at, server_received_at, effective_at, outcome)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::bigint[],
			$3::text[],
			$4::int[],
			$5::bool[],
			$6::timestamptz[],
			$7::timestamptz[],
			$8::timestamptz[],
			$9::text[]
		)`,
		attemptIDs, questionIDs, answers, timeSpent, flagged,
		clientAts, receivedAts, effectiveAts, outcomes,
	)
	return err
}

// Insert writes a single revision.
func (r *RevisionRepository) Insert(ctx context.Context, rev model.AnswerRevision) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO answer_revisions
			(attempt_id, question_id, answer, time_spent, flagged,
			 client_submitted_at, server_received_at, effective_at, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rev.AttemptID, rev.QuestionID, rev.Payload, model.BoundTimeSpent(rev.TimeSpent), rev.Flagged,
		rev.ClientSubmittedAt, rev.ServerReceivedAt, rev.EffectiveAt, string(rev.Outcome),
	)
	return err
}
