package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/reconcile"
)

const attemptColumns = `id, user_id, exam_id, status, started_at, expires_at, device_id, offline_mode, time_zone, finalized_at`

const answerColumns = `attempt_id, question_id, answer, time_spent, flagged, client_submitted_at, server_received_at, effective_at`

// AttemptRepository is the PostgreSQL AttemptStore. Each write runs in its
// own transaction holding a row lock on the attempt.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.UserID, &a.ExamID, &a.Status, &a.StartedAt, &a.ExpiresAt,
		&a.DeviceID, &a.OfflineMode, &a.TimeZone, &a.FinalizedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAnswer(row pgx.Row) (*model.Answer, error) {
	a := &model.Answer{}
	err := row.Scan(&a.AttemptID, &a.QuestionID, &a.Payload, &a.TimeSpent, &a.Flagged,
		&a.ClientSubmittedAt, &a.ServerReceivedAt, &a.EffectiveAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAttempt inserts a new attempt. The advisory lock on (user, exam)
// serializes concurrent starts so only one of them sees no active attempt.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, in model.NewAttempt, now time.Time) (*model.Attempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("attempt:%d:%d", in.UserID, in.ExamID)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, fmt.Errorf("lock start: %w", err)
	}

	var active bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM attempts
			WHERE user_id = $1 AND exam_id = $2 AND status = $3 AND expires_at > $4
		)`, in.UserID, in.ExamID, model.AttemptStatusActive, now,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("check active attempt: %w", err)
	}
	if active {
		return nil, fmt.Errorf("%w: user %d already has an active attempt for exam %d", model.ErrConflict, in.UserID, in.ExamID)
	}

	a, err := scanAttempt(tx.QueryRow(ctx,
		`INSERT INTO attempts (id, user_id, exam_id, status, started_at, expires_at, device_id, offline_mode, time_zone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+attemptColumns,
		uuid.New(), in.UserID, in.ExamID, model.AttemptStatusActive, now, now.Add(in.Duration),
		in.DeviceID, in.OfflineMode, in.TimeZone,
	))
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

// GetAttempt retrieves an attempt by id.
func (r *AttemptRepository) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrAttemptNotFound, id)
	}
	return a, err
}

// FindActive retrieves the latest active, unexpired attempt for a user and exam.
func (r *AttemptRepository) FindActive(ctx context.Context, userID, examID int64, now time.Time) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE user_id = $1 AND exam_id = $2 AND status = $3 AND expires_at > $4
		 ORDER BY started_at DESC
		 LIMIT 1`, userID, examID, model.AttemptStatusActive, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active attempt for user %d exam %d", model.ErrAttemptNotFound, userID, examID)
	}
	return a, err
}

// UpsertAnswer locks the attempt row, re-checks admission and
// last-writer-wins, and writes the answer when it wins.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, ans *model.Answer) (*model.Answer, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	at, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR UPDATE`, ans.AttemptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: %s", model.ErrAttemptNotFound, ans.AttemptID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("lock attempt: %w", err)
	}

	if err := reconcile.Admit(at, ans); err != nil {
		return nil, false, err
	}

	current, err := scanAnswer(tx.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE attempt_id = $1 AND question_id = $2`,
		ans.AttemptID, ans.QuestionID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		current = nil
	case err != nil:
		return nil, false, fmt.Errorf("get answer: %w", err)
	}

	if !reconcile.Supersedes(ans, current) {
		return current, false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO answers (`+answerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer,
		     time_spent = EXCLUDED.time_spent,
		     flagged = EXCLUDED.flagged,
		     client_submitted_at = EXCLUDED.client_submitted_at,
		     server_received_at = EXCLUDED.server_received_at,
		     effective_at = EXCLUDED.effective_at`,
		ans.AttemptID, ans.QuestionID, ans.Payload, ans.TimeSpent, ans.Flagged,
		ans.ClientSubmittedAt, ans.ServerReceivedAt, ans.EffectiveAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert answer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	stored := *ans
	return &stored, true, nil
}

// FinalizeAttempt sets the attempt to FINALIZED. An already finalized
// attempt is returned as stored.
func (r *AttemptRepository) FinalizeAttempt(ctx context.Context, id uuid.UUID, now time.Time) (*model.Attempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	at, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrAttemptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock attempt: %w", err)
	}
	if at.IsFinalized() {
		return at, nil
	}

	at, err = scanAttempt(tx.QueryRow(ctx,
		`UPDATE attempts SET status = $2, finalized_at = $3
		 WHERE id = $1
		 RETURNING `+attemptColumns,
		id, model.AttemptStatusFinalized, now))
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return at, nil
}

// ListAnswers retrieves the current answers of an attempt.
func (r *AttemptRepository) ListAnswers(ctx context.Context, id uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE attempt_id = $1 ORDER BY question_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}
