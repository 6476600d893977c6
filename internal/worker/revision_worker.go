package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/metrics"
	"github.com/stemsi/exstem-attempts/internal/model"
)

const (
	RevisionBatchSize    = 50
	RevisionBatchTimeout = 2 * time.Second
	RevisionPollTimeout  = 1 * time.Second
)

// RevisionWriter persists answer revisions.
type RevisionWriter interface {
	InsertBatch(ctx context.Context, revs []model.AnswerRevision) error
	Insert(ctx context.Context, rev model.AnswerRevision) error
}

// RevisionWorker drains the revision queue into the audit table.
type RevisionWorker struct {
	writer  RevisionWriter
	rdb     *redis.Client
	queue   string
	requeue func(ctx context.Context, raw []byte) error
	log     zerolog.Logger
}

// NewRevisionWorker creates a new RevisionWorker.
func NewRevisionWorker(writer RevisionWriter, rdb *redis.Client, log zerolog.Logger) *RevisionWorker {
	w := &RevisionWorker{
		writer: writer,
		rdb:    rdb,
		queue:  config.WorkerKey.PersistRevisionsQueue,
		log:    log.With().Str("component", "revision_worker").Logger(),
	}
	w.requeue = func(ctx context.Context, raw []byte) error {
		return w.rdb.RPush(ctx, w.queue, raw).Err()
	}
	return w
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes the pending batch and
// drains the queue. Call in a goroutine.
func (w *RevisionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("RevisionWorker started")

	batch := make([]model.AnswerRevision, 0, RevisionBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= RevisionBatchSize || time.Since(lastFlush) >= RevisionBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("RevisionWorker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, RevisionPollTimeout, w.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			rev, ok := w.decode([]byte(item[1]))
			if !ok {
				continue
			}
			batch = append(batch, rev)
		}
	}
}

func (w *RevisionWorker) decode(raw []byte) (model.AnswerRevision, bool) {
	var rev model.AnswerRevision
	if err := json.Unmarshal(raw, &rev); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return rev, false
	}
	return rev, true
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *RevisionWorker) flushSafe(ctx context.Context, batch []model.AnswerRevision) {
	if len(batch) == 0 {
		return
	}

	err := w.writer.InsertBatch(ctx, batch)
	if err == nil {
		metrics.RevisionsPersisted.Add(float64(len(batch)))
		return
	}
	w.log.Warn().Err(err).Int("size", len(batch)).Msg("Bulk revision insert failed, using fallback")

	for _, rev := range batch {
		if err := w.writer.Insert(ctx, rev); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", rev.AttemptID.String()).
				Int64("question_id", rev.QuestionID).
				Msg("Insert failed, requeueing")
			raw, _ := json.Marshal(rev)
			if err := w.requeue(ctx, raw); err != nil {
				w.log.Error().Err(err).Msg("Requeue failed, revision dropped")
			}
			continue
		}
		metrics.RevisionsPersisted.Inc()
	}
}

// drain persists whatever is still queued before shutdown.
func (w *RevisionWorker) drain(ctx context.Context) {
	drained := 0
	batch := make([]model.AnswerRevision, 0, RevisionBatchSize)

	for {
		raws, err := w.rdb.LPopCount(ctx, w.queue, RevisionBatchSize).Result()
		if err != nil || len(raws) == 0 {
			break
		}

		batch = batch[:0]
		for _, raw := range raws {
			if rev, ok := w.decode([]byte(raw)); ok {
				batch = append(batch, rev)
			}
		}

		if err := w.writer.InsertBatch(ctx, batch); err != nil {
			w.log.Error().Err(err).Msg("Drain insert failed, leaving items queued")
			for _, raw := range raws {
				w.requeue(ctx, []byte(raw))
			}
			break
		}
		metrics.RevisionsPersisted.Add(float64(len(batch)))
		drained += len(batch)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
