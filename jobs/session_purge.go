package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sangbadpatra/sangbadpatra/internal/jobs"
)

// SessionPurger removes up to limit expired session records, returning
// the count.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, limit int) (int64, error)
}

// SessionPurgeJob expires stale session rows on a schedule. The Redis
// registry entries age out on their own TTL; this keeps the PostgreSQL
// audit table from growing without bound.
type SessionPurgeJob struct {
	purger  SessionPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionPurgeJob constructs the purge job.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionPurgeJob{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("session_purge")
	var payload SessionPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	removed, err := j.purger.PurgeExpiredSessions(ctx, payload.BatchLimit)
	if err != nil {
		j.logger.Error("session purge", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("session purge complete", slog.Int64("removed", removed))
	return tracker.End(nil)
}
