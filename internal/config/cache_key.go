package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptKey returns the cache key for an attempt record
func (r *CacheKeyStruct) AttemptKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s", attemptID)
}

// ExamKey returns the cache key for an exam's catalog entry
func (r *CacheKeyStruct) ExamKey(examID int64) string {
	return fmt.Sprintf("exam:%d", examID)
}

// ExamQuestionsKey returns the cache key for the set of an exam's question ids
func (r *CacheKeyStruct) ExamQuestionsKey(examID int64) string {
	return fmt.Sprintf("exam:%d:questions", examID)
}

// ScoringHandOffKey marks an attempt whose snapshot reached the scoring queue
func (r *CacheKeyStruct) ScoringHandOffKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:scoring_handoff", attemptID)
}

var CacheKey = NewCacheKeyStruct()

type WorkerKeyStruct struct {
	PersistRevisionsQueue string
	ScoringRequestsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistRevisionsQueue: "persist_answer_revisions_queue",
	ScoringRequestsQueue:  "scoring_requests_queue",
}
