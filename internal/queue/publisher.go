// Package queue hands engine events to Redis lists consumed by the revision
// worker and the external scoring service.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// HandOffMarkerTTL is how long an attempt stays marked as handed off.
// Finish calls inside this window do not enqueue the snapshot again.
const HandOffMarkerTTL = 7 * 24 * time.Hour

// pushOnce sets the marker and pushes the payload in one step, so a snapshot
// is queued at most once and a failed push leaves no marker behind.
var pushOnce = redis.NewScript(`
if redis.call("SET", KEYS[1], "1", "NX", "EX", ARGV[2]) then
	redis.call("RPUSH", KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// Publisher pushes JSON payloads onto the worker queues.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// RecordRevision queues an answer revision for the audit table.
func (p *Publisher) RecordRevision(ctx context.Context, rev model.AnswerRevision) error {
	return p.push(ctx, config.WorkerKey.PersistRevisionsQueue, rev)
}

// HandOffForScoring queues a finalization snapshot for the scoring service.
// Repeated calls for the same attempt are no-ops once one push succeeded;
// consumers can still treat attempt_id as the idempotency key.
func (p *Publisher) HandOffForScoring(ctx context.Context, snap *model.FinalizationSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal scoring payload: %w", err)
	}

	keys := []string{
		config.CacheKey.ScoringHandOffKey(snap.AttemptID),
		config.WorkerKey.ScoringRequestsQueue,
	}
	if err := pushOnce.Run(ctx, p.rdb, keys, raw, int64(HandOffMarkerTTL/time.Second)).Err(); err != nil {
		return fmt.Errorf("push %s: %w", config.WorkerKey.ScoringRequestsQueue, err)
	}
	return nil
}

func (p *Publisher) push(ctx context.Context, queue string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", queue, err)
	}
	if err := p.rdb.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("push %s: %w", queue, err)
	}
	return nil
}
