package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// These tests need a migrated database:
//
//	EXSTEM_INTEGRATION=1 DATABASE_URL=postgres://... go test ./internal/repository/
func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("EXSTEM_INTEGRATION") != "1" {
		t.Skip("set EXSTEM_INTEGRATION=1 to run against PostgreSQL")
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Fatal("DATABASE_URL is required for integration tests")
	}

	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedExam(t *testing.T, exams *ExamRepository) (*model.Exam, []model.Question) {
	t.Helper()
	ctx := context.Background()

	exam := &model.Exam{Title: "integration", DurationSeconds: 3600}
	if err := exams.CreateExam(ctx, exam); err != nil {
		t.Fatalf("create exam: %v", err)
	}
	qs := []model.Question{
		{ExamID: exam.ID, Text: "q1", OrderNum: 1},
		{ExamID: exam.ID, Text: "q2", OrderNum: 2},
	}
	if err := exams.AddQuestions(ctx, qs); err != nil {
		t.Fatalf("add questions: %v", err)
	}
	return exam, qs
}

func TestAttemptRepositoryLifecycle(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	repo := NewAttemptRepository(pool)
	exam, qs := seedExam(t, NewExamRepository(pool))

	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := now.UnixNano() % 1_000_000_000

	at, err := repo.CreateAttempt(ctx, model.NewAttempt{UserID: userID, ExamID: exam.ID, Duration: exam.Duration()}, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateAttempt(ctx, model.NewAttempt{UserID: userID, ExamID: exam.ID, Duration: exam.Duration()}, now); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second create err = %v, want ErrConflict", err)
	}

	newer := &model.Answer{AttemptID: at.ID, QuestionID: qs[0].ID, Payload: "B", ServerReceivedAt: now, EffectiveAt: now.Add(2 * time.Second)}
	older := &model.Answer{AttemptID: at.ID, QuestionID: qs[0].ID, Payload: "A", ServerReceivedAt: now, EffectiveAt: now.Add(time.Second)}
	ts := older.EffectiveAt
	older.ClientSubmittedAt = &ts

	if _, applied, err := repo.UpsertAnswer(ctx, newer); err != nil || !applied {
		t.Fatalf("upsert newer applied=%v err=%v", applied, err)
	}
	cur, applied, err := repo.UpsertAnswer(ctx, older)
	if err != nil || applied || cur.Payload != "B" {
		t.Fatalf("upsert older = %+v applied=%v err=%v", cur, applied, err)
	}

	fin, err := repo.FinalizeAttempt(ctx, at.ID, now.Add(time.Minute))
	if err != nil || fin.Status != model.AttemptStatusFinalized {
		t.Fatalf("finalize = %+v, %v", fin, err)
	}
	again, err := repo.FinalizeAttempt(ctx, at.ID, now.Add(2*time.Minute))
	if err != nil || !again.FinalizedAt.Equal(*fin.FinalizedAt) {
		t.Fatalf("second finalize moved finalized_at: %v -> %v (%v)", fin.FinalizedAt, again.FinalizedAt, err)
	}

	if _, _, err := repo.UpsertAnswer(ctx, &model.Answer{AttemptID: at.ID, QuestionID: qs[1].ID, Payload: "C", ServerReceivedAt: now, EffectiveAt: now}); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("upsert after finalize err = %v, want ErrInvalidState", err)
	}

	answers, err := repo.ListAnswers(ctx, at.ID)
	if err != nil || len(answers) != 1 || answers[0].Payload != "B" {
		t.Fatalf("answers = %+v, %v", answers, err)
	}
}

func TestAttemptRepositoryConcurrentStart(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	repo := NewAttemptRepository(pool)
	exam, _ := seedExam(t, NewExamRepository(pool))

	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := now.UnixNano()%1_000_000_000 + 1

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateAttempt(ctx, model.NewAttempt{UserID: userID, ExamID: exam.ID, Duration: time.Hour}, now)
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, model.ErrConflict) {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
}
