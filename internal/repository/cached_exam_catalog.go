package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/model"
	"golang.org/x/sync/singleflight"
)

// emptyQuestionSetTTL bounds how long an exam without questions is cached.
const emptyQuestionSetTTL = 30 * time.Second

// emptyQuestionMember marks a cached set for an exam with no questions.
// Question ids are positive, so it never matches a real lookup.
const emptyQuestionMember = 0

// CachedExamCatalog serves exam entries and question id sets from Redis,
// loading them from PostgreSQL on a miss.
type CachedExamCatalog struct {
	exams *ExamRepository
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

// NewCachedExamCatalog creates a new CachedExamCatalog.
func NewCachedExamCatalog(exams *ExamRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedExamCatalog {
	return &CachedExamCatalog{
		exams: exams,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "exam_catalog").Logger(),
	}
}

// GetExam returns the exam catalog entry.
func (c *CachedExamCatalog) GetExam(ctx context.Context, examID int64) (*model.Exam, error) {
	key := config.CacheKey.ExamKey(examID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var e model.Exam
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil {
			return &e, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Error().Err(err).Int64("exam_id", examID).Msg("Redis error, falling back to database")
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		e, err := c.exams.GetExam(ctx, examID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(e); err == nil {
			_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	e := *v.(*model.Exam)
	return &e, nil
}

// QuestionExists checks membership in the cached question id set. The set
// is loaded whole the first time an exam is asked about.
func (c *CachedExamCatalog) QuestionExists(ctx context.Context, examID, questionID int64) (bool, error) {
	if questionID <= emptyQuestionMember {
		return false, nil
	}
	key := config.CacheKey.ExamQuestionsKey(examID)

	pipe := c.rdb.Pipeline()
	existsCmd := pipe.Exists(ctx, key)
	memberCmd := pipe.SIsMember(ctx, key, questionID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.log.Error().Err(err).Int64("exam_id", examID).Msg("Redis error, falling back to database")
		return c.exams.QuestionExists(ctx, examID, questionID)
	}
	if existsCmd.Val() == 1 {
		return memberCmd.Val(), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		ids, err := c.exams.ListQuestionIDs(ctx, examID)
		if err != nil {
			return nil, err
		}
		members := []interface{}{emptyQuestionMember}
		ttl := emptyQuestionSetTTL
		if len(ids) > 0 {
			members = make([]interface{}, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			ttl = c.ttl
		}
		pipe := c.rdb.TxPipeline()
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.Warn().Err(err).Int64("exam_id", examID).Msg("Failed to cache question ids")
		}
		set := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		return set, nil
	})
	if err != nil {
		return false, err
	}

	_, ok := v.(map[int64]struct{})[questionID]
	return ok, nil
}

// Invalidate drops the cached entries of an exam.
func (c *CachedExamCatalog) Invalidate(ctx context.Context, examID int64) error {
	return c.rdb.Del(ctx,
		config.CacheKey.ExamKey(examID),
		config.CacheKey.ExamQuestionsKey(examID),
	).Err()
}

