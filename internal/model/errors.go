package model

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. Callers match with errors.Is; the HTTP layer maps
// each one to a status code and response.ErrCode.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrNotOwner     = errors.New("attempt belongs to another user")

	ErrAttemptNotFound  = fmt.Errorf("attempt: %w", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("question: %w", ErrNotFound)
	ErrExamNotFound     = fmt.Errorf("exam: %w", ErrNotFound)
)

// ErrBatchTooLarge is returned when an offline flush exceeds the configured
// batch size.
var ErrBatchTooLarge = errors.New("answer batch too large")

// ErrHandOffFailed is returned when a finalized attempt could not be passed
// to scoring. The attempt stays finalized; finishing again retries.
var ErrHandOffFailed = errors.New("scoring hand-off failed")
