package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// ExamRepository handles exam and question catalog access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetExam retrieves an exam by id.
func (r *ExamRepository) GetExam(ctx context.Context, examID int64) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_seconds FROM exams WHERE id = $1`, examID,
	).Scan(&e.ID, &e.Title, &e.DurationSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", model.ErrExamNotFound, examID)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// QuestionExists reports whether the question belongs to the exam.
func (r *ExamRepository) QuestionExists(ctx context.Context, examID, questionID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE exam_id = $1 AND id = $2)`,
		examID, questionID,
	).Scan(&exists)
	return exists, err
}

// ListQuestionIDs retrieves the ids of all questions of an exam.
func (r *ExamRepository) ListQuestionIDs(ctx context.Context, examID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM questions WHERE exam_id = $1 ORDER BY order_num, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateExam inserts a new exam.
func (r *ExamRepository) CreateExam(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, duration_seconds) VALUES ($1, $2) RETURNING id`,
		e.Title, e.DurationSeconds,
	).Scan(&e.ID)
}

// AddQuestions inserts questions in one batch and fills in their ids.
func (r *ExamRepository) AddQuestions(ctx context.Context, questions []model.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO questions (exam_id, question_text, order_num) VALUES ($1, $2, $3) RETURNING id`,
			q.ExamID, q.Text, q.OrderNum,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range questions {
		if err := br.QueryRow().Scan(&questions[i].ID); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return nil
}
