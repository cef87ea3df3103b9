package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/sangbadpatra/sangbadpatra/jobs"
	_ "github.com/sangbadpatra/sangbadpatra/testing"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

func newJobsRouter(enqueuer jobs.Enqueuer) http.Handler {
	h := jobs.NewHandler(nil, enqueuer, nil)
	r := chi.NewRouter()
	r.Route("/api/jobs", h.MountRoutes)
	return r
}

func TestWarmupEnqueuesTask(t *testing.T) {
	enq := &stubEnqueuer{}
	router := newJobsRouter(enq)

	body := `{"categories":["rajniti"],"pages":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/warmup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, jobs.TaskFrontPageWarmup, enq.tasks[0].Type())

	var payload jobs.FrontPageWarmupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, []string{"rajniti"}, payload.Categories)
	require.Equal(t, 2, payload.Pages)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "task-1", resp["task_id"])
}

func TestWarmupEmptyBodyWarmsFrontPage(t *testing.T) {
	enq := &stubEnqueuer{}
	router := newJobsRouter(enq)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/warmup", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.tasks, 1)

	var payload jobs.FrontPageWarmupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Empty(t, payload.Categories)
	require.Equal(t, 1, payload.Pages)
}

func TestWarmupRejectsMalformedBody(t *testing.T) {
	enq := &stubEnqueuer{}
	router := newJobsRouter(enq)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/warmup", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, enq.tasks)
}

func TestWarmupQueueFailure(t *testing.T) {
	enq := &stubEnqueuer{err: errors.New("redis down")}
	router := newJobsRouter(enq)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/warmup", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
