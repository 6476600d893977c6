package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/metrics"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/reconcile"
	"github.com/stemsi/exstem-attempts/internal/repository"
	"github.com/stemsi/exstem-attempts/internal/timer"
)

// EventSink receives engine events after the authoritative write committed.
type EventSink interface {
	RecordRevision(ctx context.Context, rev model.AnswerRevision) error
	HandOffForScoring(ctx context.Context, snap *model.FinalizationSnapshot) error
}

// AttemptService drives the attempt lifecycle: start, answer, finish.
type AttemptService struct {
	store      repository.AttemptStore
	catalog    repository.ExamCatalog
	reconciler *reconcile.Reconciler
	clock      *timer.Authority
	sink       EventSink
	maxBatch   int
	log        zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	store repository.AttemptStore,
	catalog repository.ExamCatalog,
	clock *timer.Authority,
	sink EventSink,
	maxBatch int,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		store:      store,
		catalog:    catalog,
		reconciler: reconcile.NewReconciler(store, clock),
		clock:      clock,
		sink:       sink,
		maxBatch:   maxBatch,
		log:        log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates a new attempt for the user. The deadline is derived from
// the exam duration and the server clock.
func (s *AttemptService) Start(ctx context.Context, userID, examID int64, req model.StartAttemptRequest) (*model.AttemptSnapshot, error) {
	exam, err := s.catalog.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	at, err := s.store.CreateAttempt(ctx, model.NewAttempt{
		UserID:      userID,
		ExamID:      examID,
		Duration:    exam.Duration(),
		DeviceID:    req.DeviceID,
		OfflineMode: req.OfflineMode,
		TimeZone:    req.TimeZone,
	}, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	metrics.AttemptsStarted.Inc()
	s.log.Info().
		Str("attempt_id", at.ID.String()).
		Int64("user_id", userID).
		Int64("exam_id", examID).
		Bool("offline_mode", at.OfflineMode).
		Time("expires_at", at.ExpiresAt).
		Msg("Attempt started")

	snap := s.clock.Snapshot(at)
	return &snap, nil
}

// Active returns the user's running attempt for an exam.
func (s *AttemptService) Active(ctx context.Context, userID, examID int64) (*model.AttemptSnapshot, error) {
	at, err := s.store.FindActive(ctx, userID, examID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	snap := s.clock.Snapshot(at)
	return &snap, nil
}

// Snapshot returns the attempt snapshot for its owner.
func (s *AttemptService) Snapshot(ctx context.Context, userID int64, attemptID uuid.UUID) (*model.AttemptSnapshot, error) {
	at, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	snap := s.clock.Snapshot(at)
	return &snap, nil
}

// State returns the attempt snapshot and its stored answers.
func (s *AttemptService) State(ctx context.Context, userID int64, attemptID uuid.UUID) (*model.AttemptState, error) {
	at, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	return &model.AttemptState{
		Attempt: s.clock.Snapshot(at),
		Answers: answers,
	}, nil
}

// SubmitAnswer records one answer. A submission that loses last-writer-wins
// is acknowledged with Accepted=false rather than an error.
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID int64, attemptID uuid.UUID, req model.SubmitAnswerRequest) (*model.AnswerAck, error) {
	at, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, at, req)
}

// SubmitBatch flushes an offline queue. Items are reconciled one by one in
// request order; an item the attempt refuses is reported in its ack and
// does not stop the rest.
func (s *AttemptService) SubmitBatch(ctx context.Context, userID int64, attemptID uuid.UUID, items []model.SubmitAnswerRequest) ([]model.AnswerAck, error) {
	if s.maxBatch > 0 && len(items) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d items, limit %d", model.ErrBatchTooLarge, len(items), s.maxBatch)
	}

	at, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	acks := make([]model.AnswerAck, 0, len(items))
	for _, item := range items {
		ack, err := s.submit(ctx, at, item)
		if err != nil {
			reason, ok := rejectReason(err)
			if !ok {
				return nil, err
			}
			ack = &model.AnswerAck{
				QuestionID:       item.QuestionID,
				Outcome:          model.AnswerOutcomeRejected,
				RemainingSeconds: s.clock.RemainingSeconds(at),
				Error:            reason,
			}
		}
		acks = append(acks, *ack)
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("items", len(items)).
		Msg("Answer batch reconciled")

	return acks, nil
}

// Finish finalizes the attempt and hands the final answers to scoring.
// Calling it again returns the same snapshot and offers it to the sink again,
// so a client can retry after a hand-off failure. The sink queues each
// attempt at most once.
func (s *AttemptService) Finish(ctx context.Context, userID int64, attemptID uuid.UUID) (*model.FinalizationSnapshot, error) {
	if _, err := s.ownedAttempt(ctx, userID, attemptID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	at, err := s.store.FinalizeAttempt(ctx, attemptID, now)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	snap := finalizationSnapshot(at, answers)

	if at.FinalizedAt != nil && at.FinalizedAt.Equal(now) {
		metrics.AttemptsFinalized.Inc()
		s.log.Info().
			Str("attempt_id", attemptID.String()).
			Int("answers", len(snap.Answers)).
			Msg("Attempt finalized")
	}

	if err := s.sink.HandOffForScoring(ctx, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrHandOffFailed, err)
	}

	return snap, nil
}

func (s *AttemptService) ownedAttempt(ctx context.Context, userID int64, attemptID uuid.UUID) (*model.Attempt, error) {
	at, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if at.UserID != userID {
		return nil, fmt.Errorf("%w: attempt %s", model.ErrNotOwner, attemptID)
	}
	return at, nil
}

func (s *AttemptService) submit(ctx context.Context, at *model.Attempt, req model.SubmitAnswerRequest) (*model.AnswerAck, error) {
	origin := metrics.Origin(req.OfflineTimestamp != nil)

	exists, err := s.catalog.QuestionExists(ctx, at.ExamID, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("check question: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d in exam %d", model.ErrQuestionNotFound, req.QuestionID, at.ExamID)
	}

	res, err := s.reconciler.Apply(ctx, at, reconcile.Submission{
		AttemptID:         at.ID,
		QuestionID:        req.QuestionID,
		Payload:           req.Answer,
		TimeSpent:         req.TimeSpent,
		Flagged:           req.Flagged,
		ClientSubmittedAt: req.OfflineTimestamp,
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			metrics.AnswerSubmissions.WithLabelValues(string(model.AnswerOutcomeRejected), origin).Inc()
		}
		return nil, err
	}

	outcome := res.Outcome()
	metrics.AnswerSubmissions.WithLabelValues(string(outcome), origin).Inc()

	if err := s.sink.RecordRevision(ctx, model.NewAnswerRevision(res.Incoming, outcome)); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", at.ID.String()).
			Int64("question_id", req.QuestionID).
			Msg("Failed to queue answer revision")
	}

	return &model.AnswerAck{
		QuestionID:       req.QuestionID,
		Accepted:         res.Applied,
		Outcome:          outcome,
		RemainingSeconds: s.clock.RemainingSeconds(at),
	}, nil
}

func rejectReason(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrQuestionNotFound):
		return model.RejectQuestionNotFound, true
	case errors.Is(err, model.ErrInvalidState):
		return model.RejectAttemptClosed, true
	default:
		return "", false
	}
}

func finalizationSnapshot(at *model.Attempt, answers []model.Answer) *model.FinalizationSnapshot {
	snap := &model.FinalizationSnapshot{
		AttemptID: at.ID,
		UserID:    at.UserID,
		ExamID:    at.ExamID,
		Answers:   make([]model.FinalAnswer, 0, len(answers)),
	}
	if at.FinalizedAt != nil {
		snap.FinalizedAt = *at.FinalizedAt
	}
	for _, a := range answers {
		snap.Answers = append(snap.Answers, model.FinalAnswer{
			QuestionID: a.QuestionID,
			Answer:     a.Payload,
			TimeSpent:  a.TimeSpent,
			Flagged:    a.Flagged,
		})
	}
	return snap
}
