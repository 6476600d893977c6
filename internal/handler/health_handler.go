package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/metrics"
	"github.com/stemsi/exstem-attempts/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports dependency reachability and queue backlog.
type HealthHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthStatus struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	Postgres   string `json:"postgres"`
	Redis      string `json:"redis"`

	QueueRevisions int64 `json:"queue_revisions"`
	QueueScoring   int64 `json:"queue_scoring"`
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	st := healthStatus{
		Status:     "ok",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Goroutines: runtime.NumGoroutine(),
		Postgres:   "ok",
		Redis:      "ok",
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres ping failed")
		st.Postgres = "down"
		st.Status = "degraded"
	}

	// ── Worker Queues (pipelined LLEN) ──
	pipe := h.rdb.Pipeline()
	revCmd := pipe.LLen(ctx, config.WorkerKey.PersistRevisionsQueue)
	scoreCmd := pipe.LLen(ctx, config.WorkerKey.ScoringRequestsQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		st.Redis = "down"
		st.Status = "degraded"
	} else {
		st.QueueRevisions, _ = revCmd.Result()
		st.QueueScoring, _ = scoreCmd.Result()
		metrics.QueueDepth.WithLabelValues(config.WorkerKey.PersistRevisionsQueue).Set(float64(st.QueueRevisions))
		metrics.QueueDepth.WithLabelValues(config.WorkerKey.ScoringRequestsQueue).Set(float64(st.QueueScoring))
	}

	status := http.StatusOK
	if st.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, st)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
