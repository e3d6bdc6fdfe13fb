package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/freightdesk/internal/reporting"
)

func TestReportWarmupTaskPayload(t *testing.T) {
	task, err := NewReportWarmupTask(3, "weekly")
	require.NoError(t, err)
	assert.Equal(t, TaskReportWarmup, task.Type())

	var payload ReportWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 3, payload.MonthsBack)
	assert.Equal(t, "weekly", payload.Frequency)
}

func TestReportWarmupRejectsBadPayload(t *testing.T) {
	job := &ReportWarmupJob{Service: &reporting.Service{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReportWarmupRequiresService(t *testing.T) {
	job := &ReportWarmupJob{}
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, nil))
	assert.Error(t, err)
}

func TestReportInvalidateBumpsCacheVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := reporting.NewCache(client, time.Minute)
	before, err := cache.Version(context.Background())
	require.NoError(t, err)

	job := &ReportInvalidateJob{Cache: cache}
	task, err := NewReportInvalidateTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	after, err := cache.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestReportInvalidateRequiresCache(t *testing.T) {
	job := &ReportInvalidateJob{}
	task, err := NewReportInvalidateTask()
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestWorkerSkipsIncompleteRegistrations(t *testing.T) {
	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:6379"},
		Handlers: []TaskHandler{
			{Type: "", Handler: func(context.Context, *asynq.Task) error { return nil }},
			{Type: TaskReportInvalidate, Handler: nil},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, worker)
	assert.Nil(t, worker.scheduler)

	var nilWorker *Worker
	assert.Error(t, nilWorker.Run(context.Background()))
}
