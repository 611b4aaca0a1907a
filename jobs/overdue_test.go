package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/invoicer/internal/jobs"
)

type markerStub struct {
	asOf   time.Time
	marked int
	err    error
	calls  int
}

func (m *markerStub) MarkOverdue(_ context.Context, asOf time.Time) (int, error) {
	m.calls++
	m.asOf = asOf
	return m.marked, m.err
}

func newSweep(marker OverdueMarker) *OverdueSweepJob {
	job := NewOverdueSweepJob(marker, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC) }
	return job
}

func TestNewOverdueSweepTaskPayload(t *testing.T) {
	task, err := NewOverdueSweepTask(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, TaskInvoiceOverdueSweep, task.Type())
	assert.JSONEq(t, `{}`, string(task.Payload()))

	task, err = NewOverdueSweepTask(time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var payload OverdueSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "2024-03-15", payload.AsOf)
}

func TestOverdueSweepUsesClockByDefault(t *testing.T) {
	marker := &markerStub{marked: 2}
	task, err := NewOverdueSweepTask(time.Time{})
	require.NoError(t, err)

	require.NoError(t, newSweep(marker).Handle(context.Background(), task))
	assert.Equal(t, 1, marker.calls)
	assert.Equal(t, "2024-04-02", marker.asOf.Format(time.DateOnly))
}

func TestOverdueSweepHonoursPayloadDate(t *testing.T) {
	marker := &markerStub{}
	task, err := NewOverdueSweepTask(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, newSweep(marker).Handle(context.Background(), task))
	assert.Equal(t, "2024-01-10", marker.asOf.Format(time.DateOnly))
}

func TestOverdueSweepBadPayloadSkipsRetry(t *testing.T) {
	marker := &markerStub{}
	job := newSweep(marker)
	var logs bytes.Buffer
	job.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	err := job.Handle(context.Background(), asynq.NewTask(TaskInvoiceOverdueSweep, []byte(`{`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "overdue sweep payload rejected")

	err = job.Handle(context.Background(), asynq.NewTask(TaskInvoiceOverdueSweep, []byte(`{"asOf":"15/03/2024"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, logs.String(), "overdue sweep date rejected")
	assert.Contains(t, logs.String(), "as_of=15/03/2024")
	assert.Zero(t, marker.calls)
}

func TestOverdueSweepPropagatesFailure(t *testing.T) {
	boom := errors.New("store down")
	task, err := NewOverdueSweepTask(time.Time{})
	require.NoError(t, err)

	err = newSweep(&markerStub{err: boom}).Handle(context.Background(), task)
	assert.ErrorIs(t, err, boom)
}

func TestOverdueSweepNotConfigured(t *testing.T) {
	var job *OverdueSweepJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskInvoiceOverdueSweep, nil)))
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}

func TestNewWorkerRegistersCron(t *testing.T) {
	task, err := NewOverdueSweepTask(time.Time{})
	require.NoError(t, err)

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: TaskInvoiceOverdueSweep, Handler: newSweep(&markerStub{}).Handle}},
		Cron:      []CronRegistration{{Spec: "0 * * * *", Task: task}},
	})
	require.NoError(t, err)
	assert.NotNil(t, w.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	assert.Error(t, err)
}
