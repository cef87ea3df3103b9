package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/sangbadpatra/sangbadpatra/jobs"
	_ "github.com/sangbadpatra/sangbadpatra/testing"
)

type stubPurger struct {
	removed   int64
	err       error
	calls     int
	lastLimit int
}

func (s *stubPurger) PurgeExpiredSessions(_ context.Context, limit int) (int64, error) {
	s.calls++
	s.lastLimit = limit
	return s.removed, s.err
}

func TestSessionPurgeHandle(t *testing.T) {
	purger := &stubPurger{removed: 4}
	job := jobs.NewSessionPurgeJob(purger, nil, nil)

	task, err := jobs.NewSessionPurgeTask(100)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, purger.calls)
	require.Equal(t, 100, purger.lastLimit)
}

func TestSessionPurgePropagatesErrors(t *testing.T) {
	purger := &stubPurger{err: errors.New("db down")}
	job := jobs.NewSessionPurgeJob(purger, nil, nil)

	task, err := jobs.NewSessionPurgeTask(100)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestSessionPurgeSkipsMalformedPayload(t *testing.T) {
	purger := &stubPurger{}
	job := jobs.NewSessionPurgeJob(purger, nil, nil)

	task := asynq.NewTask(jobs.TaskSessionPurge, []byte("{not json"))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	require.Zero(t, purger.calls)
}
