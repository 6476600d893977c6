package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/model"
	"golang.org/x/sync/singleflight"
)

// CachedAttemptStore puts a Redis read-through cache in front of another
// AttemptStore. Only attempt records are cached; answers and every write go
// to the inner store, which stays the source of truth.
type CachedAttemptStore struct {
	inner AttemptStore
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

// NewCachedAttemptStore wraps inner with a Redis cache.
func NewCachedAttemptStore(inner AttemptStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedAttemptStore {
	return &CachedAttemptStore{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "attempt_cache").Logger(),
	}
}

// CreateAttempt creates through the inner store and primes the cache.
func (s *CachedAttemptStore) CreateAttempt(ctx context.Context, in model.NewAttempt, now time.Time) (*model.Attempt, error) {
	a, err := s.inner.CreateAttempt(ctx, in, now)
	if err != nil {
		return nil, err
	}
	s.put(ctx, a)
	return a, nil
}

// GetAttempt serves from Redis and falls back to the inner store on a miss
// or a Redis failure. Concurrent misses for one attempt share a single load.
func (s *CachedAttemptStore) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	key := config.CacheKey.AttemptKey(id)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a model.Attempt
		if jsonErr := json.Unmarshal(raw, &a); jsonErr == nil {
			return &a, nil
		}
		s.log.Warn().Str("attempt_id", id.String()).Msg("Discarding corrupt cache entry")
	case !errors.Is(err, redis.Nil):
		s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Redis error, falling back to store")
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		a, err := s.inner.GetAttempt(ctx, id)
		if err != nil {
			return nil, err
		}
		// Self-heal: the next read is served from Redis.
		s.put(ctx, a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}

	a := *v.(*model.Attempt)
	return &a, nil
}

// FindActive always asks the inner store; the answer depends on the clock.
func (s *CachedAttemptStore) FindActive(ctx context.Context, userID, examID int64, now time.Time) (*model.Attempt, error) {
	return s.inner.FindActive(ctx, userID, examID, now)
}

// UpsertAnswer goes straight to the inner store, which checks the attempt
// under its own lock.
func (s *CachedAttemptStore) UpsertAnswer(ctx context.Context, ans *model.Answer) (*model.Answer, bool, error) {
	return s.inner.UpsertAnswer(ctx, ans)
}

// FinalizeAttempt finalizes through the inner store and refreshes the cache.
func (s *CachedAttemptStore) FinalizeAttempt(ctx context.Context, id uuid.UUID, now time.Time) (*model.Attempt, error) {
	a, err := s.inner.FinalizeAttempt(ctx, id, now)
	if err != nil {
		return nil, err
	}
	s.put(ctx, a)
	return a, nil
}

// ListAnswers reads from the inner store.
func (s *CachedAttemptStore) ListAnswers(ctx context.Context, id uuid.UUID) ([]model.Answer, error) {
	return s.inner.ListAnswers(ctx, id)
}

func (s *CachedAttemptStore) put(ctx context.Context, a *model.Attempt) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.AttemptKey(a.ID), raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to cache attempt")
	}
}
