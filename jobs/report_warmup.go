package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freightdesk/freightdesk/internal/reporting"
)

// ReportWarmupJob pre-populates the report cache for every active company
// scope so the first console request after the nightly load stays fast.
type ReportWarmupJob struct {
	Service *reporting.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(service *reporting.Service, pool *pgxpool.Pool, logger *slog.Logger) *ReportWarmupJob {
	return &ReportWarmupJob{
		Service: service,
		Pool:    pool,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MonthsBack <= 0 {
		payload.MonthsBack = 6
	}
	freq := reporting.Frequency(payload.Frequency)
	if payload.Frequency == "" {
		freq = reporting.FreqMonthly
	}

	logger := j.logger().With(slog.Int("months_back", payload.MonthsBack))
	logger.Info("starting report warmup")

	scopes, err := j.fetchScopes(ctx)
	if err != nil {
		logger.Error("load warmup scopes", slog.Any("error", err))
		return err
	}
	if len(scopes) == 0 {
		logger.Info("no scopes discovered for warmup")
		return nil
	}

	now := j.now().In(j.Service.Location())
	start := now.AddDate(0, -payload.MonthsBack, 0)
	warmed := 0
	for _, scope := range scopes {
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Service.Report(scopeCtx, reporting.ReportFilter{
			Start:      start,
			End:        now,
			Frequency:  freq,
			CompanyIDs: []int64{scope.CompanyID},
			DateBasis:  reporting.BasisCreated,
			Currency:   scope.Currency,
		})
		cancel()
		if err != nil {
			logger.Error("warm scope",
				slog.Int64("company_id", scope.CompanyID),
				slog.String("currency", scope.Currency),
				slog.Any("error", err))
			return err
		}
		warmed++
	}

	logger.Info("completed report warmup", slog.Int("scopes", warmed))
	return nil
}

type warmupScope struct {
	CompanyID int64
	Currency  string
}

// fetchScopes discovers the company/currency pairs worth warming. Companies
// trading in multiple currencies are warmed once per currency since reports
// cannot mix units.
func (j *ReportWarmupJob) fetchScopes(ctx context.Context) ([]warmupScope, error) {
	if j.Pool == nil {
		return nil, errors.New("report warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT company_id, currency FROM bookings ORDER BY company_id, currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scopes := make([]warmupScope, 0)
	for rows.Next() {
		var scope warmupScope
		if err := rows.Scan(&scope.CompanyID, &scope.Currency); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scopes, nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// ReportInvalidateJob bumps the cache version so stale reports are recomputed.
type ReportInvalidateJob struct {
	Cache  *reporting.Cache
	Logger *slog.Logger
}

// Handle processes cache invalidation tasks.
func (j *ReportInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("report invalidate: handler not configured")
	}
	if err := j.Cache.Bump(ctx); err != nil {
		if j.Logger != nil {
			j.Logger.Error("bump report cache", slog.Any("error", err))
		}
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("report cache invalidated")
	}
	return nil
}
