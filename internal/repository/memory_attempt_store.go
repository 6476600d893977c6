package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/reconcile"
)

// MemoryAttemptStore keeps attempts in process memory. Writes to one attempt
// are serialized by that attempt's mutex. Nothing survives a restart, so it
// serves tests and local tooling only.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*memAttempt
	byExam   map[userExam][]uuid.UUID
}

type userExam struct {
	userID int64
	examID int64
}

type memAttempt struct {
	mu      sync.Mutex
	attempt model.Attempt
	answers map[int64]model.Answer
}

// NewMemoryAttemptStore creates an empty MemoryAttemptStore.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[uuid.UUID]*memAttempt),
		byExam:   make(map[userExam][]uuid.UUID),
	}
}

// CreateAttempt holds the store lock for the whole check-then-insert, which
// serializes starts for the same user and exam.
func (s *MemoryAttemptStore) CreateAttempt(_ context.Context, in model.NewAttempt, now time.Time) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userExam{userID: in.UserID, examID: in.ExamID}
	for _, id := range s.byExam[key] {
		entry := s.attempts[id]
		entry.mu.Lock()
		active := !entry.attempt.IsFinalized() && entry.attempt.ExpiresAt.After(now)
		entry.mu.Unlock()
		if active {
			return nil, fmt.Errorf("%w: user %d already has an active attempt for exam %d", model.ErrConflict, in.UserID, in.ExamID)
		}
	}

	at := model.Attempt{
		ID:          uuid.New(),
		UserID:      in.UserID,
		ExamID:      in.ExamID,
		Status:      model.AttemptStatusActive,
		StartedAt:   now,
		ExpiresAt:   now.Add(in.Duration),
		DeviceID:    in.DeviceID,
		OfflineMode: in.OfflineMode,
		TimeZone:    in.TimeZone,
	}
	s.attempts[at.ID] = &memAttempt{attempt: at, answers: make(map[int64]model.Answer)}
	s.byExam[key] = append(s.byExam[key], at.ID)

	out := at
	return &out, nil
}

func (s *MemoryAttemptStore) entry(id uuid.UUID) (*memAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAttemptNotFound, id)
	}
	return entry, nil
}

// GetAttempt returns a copy of the stored attempt.
func (s *MemoryAttemptStore) GetAttempt(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	out := entry.attempt
	entry.mu.Unlock()
	return &out, nil
}

// FindActive returns the most recently started active attempt.
func (s *MemoryAttemptStore) FindActive(_ context.Context, userID, examID int64, now time.Time) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *model.Attempt
	for _, id := range s.byExam[userExam{userID: userID, examID: examID}] {
		entry := s.attempts[id]
		entry.mu.Lock()
		at := entry.attempt
		entry.mu.Unlock()

		if at.IsFinalized() || !at.ExpiresAt.After(now) {
			continue
		}
		if found == nil || at.StartedAt.After(found.StartedAt) {
			found = &at
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no active attempt for user %d exam %d", model.ErrAttemptNotFound, userID, examID)
	}
	return found, nil
}

// UpsertAnswer applies the reconciliation rules under the attempt mutex.
func (s *MemoryAttemptStore) UpsertAnswer(_ context.Context, ans *model.Answer) (*model.Answer, bool, error) {
	entry, err := s.entry(ans.AttemptID)
	if err != nil {
		return nil, false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := reconcile.Admit(&entry.attempt, ans); err != nil {
		return nil, false, err
	}

	if current, ok := entry.answers[ans.QuestionID]; ok && !reconcile.Supersedes(ans, &current) {
		return &current, false, nil
	}

	entry.answers[ans.QuestionID] = *ans
	out := *ans
	return &out, true, nil
}

// FinalizeAttempt marks the attempt finalized once; later calls return the
// stored record unchanged.
func (s *MemoryAttemptStore) FinalizeAttempt(_ context.Context, id uuid.UUID, now time.Time) (*model.Attempt, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.attempt.IsFinalized() {
		finalizedAt := now
		entry.attempt.Status = model.AttemptStatusFinalized
		entry.attempt.FinalizedAt = &finalizedAt
	}

	out := entry.attempt
	return &out, nil
}

// ListAnswers returns the current answers ordered by question id.
func (s *MemoryAttemptStore) ListAnswers(_ context.Context, id uuid.UUID) ([]model.Answer, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	answers := make([]model.Answer, 0, len(entry.answers))
	for _, a := range entry.answers {
		answers = append(answers, a)
	}
	entry.mu.Unlock()

	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}
