package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge removes expired session rows from PostgreSQL.
	TaskSessionPurge = "session:purge"
	// TaskFrontPageWarmup repopulates the public listing cache.
	TaskFrontPageWarmup = "cache:frontpage_warmup"
)

// SessionPurgePayload bounds a purge run.
type SessionPurgePayload struct {
	BatchLimit int `json:"batch_limit"`
}

// NewSessionPurgeTask constructs a session purge task.
func NewSessionPurgeTask(batchLimit int) (*asynq.Task, error) {
	data, err := json.Marshal(SessionPurgePayload{BatchLimit: batchLimit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}

// FrontPageWarmupPayload names the category pages to pre-warm. An empty
// list warms only the uncategorised front page.
type FrontPageWarmupPayload struct {
	Categories []string `json:"categories"`
	Pages      int      `json:"pages"`
}

// NewFrontPageWarmupTask constructs a cache warmup task.
func NewFrontPageWarmupTask(categories []string, pages int) (*asynq.Task, error) {
	if pages <= 0 {
		pages = 1
	}
	data, err := json.Marshal(FrontPageWarmupPayload{Categories: categories, Pages: pages})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFrontPageWarmup, data), nil
}
