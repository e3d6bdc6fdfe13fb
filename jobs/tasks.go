package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup re-computes and re-caches the standing report set.
	TaskReportWarmup = "report:warmup"
	// TaskReportInvalidate bumps the report cache version after data changes.
	TaskReportInvalidate = "report:invalidate"
)

// ReportWarmupPayload scopes a warmup run.
type ReportWarmupPayload struct {
	// MonthsBack sets the warmed range ending at the current month.
	MonthsBack int `json:"months_back"`
	// Frequency selects the warmed series granularity.
	Frequency string `json:"frequency"`
}

// NewReportWarmupTask constructs the warmup task.
func NewReportWarmupTask(monthsBack int, frequency string) (*asynq.Task, error) {
	data, err := json.Marshal(ReportWarmupPayload{MonthsBack: monthsBack, Frequency: frequency})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// NewReportInvalidateTask constructs the cache invalidation task.
func NewReportInvalidateTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskReportInvalidate, nil), nil
}
