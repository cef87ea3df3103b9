package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hibiken/asynq"

	"github.com/sangbadpatra/sangbadpatra/internal/fetch"
	jobmetrics "github.com/sangbadpatra/sangbadpatra/internal/jobs"
)

// FrontPageWarmupJob pre-populates the public listing cache by walking
// the portal's own front page endpoints, so the first reader after an
// invalidation never pays the database round trip.
type FrontPageWarmupJob struct {
	client  *fetch.Client
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewFrontPageWarmupJob constructs the warmup job.
func NewFrontPageWarmupJob(client *fetch.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *FrontPageWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrontPageWarmupJob{client: client, logger: logger, metrics: metrics}
}

// Handle processes TaskFrontPageWarmup tasks.
func (j *FrontPageWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("frontpage_warmup")
	var payload FrontPageWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.Pages <= 0 {
		payload.Pages = 1
	}
	categories := append([]string{""}, payload.Categories...)

	var warmed, failed int
	for _, category := range categories {
		for page := 1; page <= payload.Pages; page++ {
			path := fmt.Sprintf("/news?page=%d", page)
			if category != "" {
				path += "&category=" + url.QueryEscape(category)
			}
			var discard json.RawMessage
			if err := j.client.GetJSON(ctx, path, &discard); err != nil {
				j.logger.Warn("warm front page", slog.String("path", path), slog.Any("error", err))
				failed++
				continue
			}
			warmed++
		}
	}
	j.logger.Info("front page warmup complete", slog.Int("warmed", warmed), slog.Int("failed", failed))
	if warmed == 0 && failed > 0 {
		return tracker.End(fmt.Errorf("warmup: all %d requests failed", failed))
	}
	return tracker.End(nil)
}
