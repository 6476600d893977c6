package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the stored attempt states. EXPIRED is never
// stored; it is derived from the clock when building snapshots.
type AttemptStatus string

const (
	AttemptStatusActive    AttemptStatus = "ACTIVE"
	AttemptStatusExpired   AttemptStatus = "EXPIRED"
	AttemptStatusFinalized AttemptStatus = "FINALIZED"
)

// Attempt is one user's timed run of one exam.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	UserID      int64         `json:"user_id"`
	ExamID      int64         `json:"exam_id"`
	Status      AttemptStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	DeviceID    *string       `json:"device_id,omitempty"`
	OfflineMode bool          `json:"offline_mode"`
	TimeZone    *string       `json:"time_zone,omitempty"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty"`
}

// IsFinalized reports whether the attempt reached its terminal state.
func (a *Attempt) IsFinalized() bool {
	return a.Status == AttemptStatusFinalized
}

// NewAttempt carries the values needed to create an attempt. Duration comes
// from the exam catalog, never from the client.
type NewAttempt struct {
	UserID      int64
	ExamID      int64
	Duration    time.Duration
	DeviceID    *string
	OfflineMode bool
	TimeZone    *string
}

// StartAttemptRequest is the payload for starting an exam attempt.
type StartAttemptRequest struct {
	DeviceID    *string `json:"device_id" binding:"omitempty,max=255"`
	OfflineMode bool    `json:"offline_mode"`
	TimeZone    *string `json:"time_zone" binding:"omitempty,max=50,timezone"`
}

// AttemptSnapshot is the attempt view returned to clients.
type AttemptSnapshot struct {
	ID               uuid.UUID     `json:"id"`
	ExamID           int64         `json:"exam_id"`
	Status           AttemptStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	OfflineMode      bool          `json:"offline_mode"`
	DeviceID         *string       `json:"device_id,omitempty"`
	TimeZone         *string       `json:"time_zone,omitempty"`
	FinalizedAt      *time.Time    `json:"finalized_at,omitempty"`
}

// AttemptState is the snapshot plus the answers stored so far. Clients use
// it to restore an exam page after a reload.
type AttemptState struct {
	Attempt AttemptSnapshot `json:"attempt"`
	Answers []Answer        `json:"answers"`
}
