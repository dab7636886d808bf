package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/internal/analytics"
	jobmetrics "github.com/prajwal-br31/bks-backend/internal/jobs"
)

const warmupScopeTimeout = 20 * time.Second

// ReportSource is the slice of the reporting service the warmup job drives.
type ReportSource interface {
	ProfitAndLoss(ctx context.Context, companyID uuid.UUID, from, to time.Time, granularity string) (reports.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, companyID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error)
	CashFlow(ctx context.Context, companyID uuid.UUID, from, to time.Time) (reports.CashFlow, error)
	Companies(ctx context.Context) ([]uuid.UUID, error)
}

// ReportWarmupJob builds the reports the dashboard asks for, with the same
// ranges, so the first request of the day hits the cache.
type ReportWarmupJob struct {
	Reports ReportSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(source ReportSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reports: source,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskReportWarmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("report warmup: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskReportWarmup)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := j.logger()
	companies := []uuid.UUID{}
	if payload.CompanyID != nil {
		companies = append(companies, *payload.CompanyID)
	} else {
		all, err := j.Reports.Companies(ctx)
		if err != nil {
			logger.Error("load warmup companies", slog.Any("error", err))
			return err
		}
		companies = all
	}

	now := j.now()
	for _, id := range companies {
		if err := j.warm(ctx, id, now); err != nil {
			logger.Error("warm company", slog.String("company_id", id.String()), slog.Any("error", err))
			return err
		}
	}
	logger.Info("completed report warmup", slog.Int("companies", len(companies)), slog.Duration("duration", time.Since(now)))
	return nil
}

func (j *ReportWarmupJob) warm(ctx context.Context, companyID uuid.UUID, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, warmupScopeTimeout)
	defer cancel()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart, trendFrom := analytics.ReportWindows(today)

	for _, from := range []time.Time{monthStart, trendFrom} {
		if _, err := j.Reports.ProfitAndLoss(ctx, companyID, from, today, string(reports.Monthly)); err != nil {
			return err
		}
	}
	if _, err := j.Reports.BalanceSheet(ctx, companyID, today); err != nil {
		return err
	}
	_, err := j.Reports.CashFlow(ctx, companyID, monthStart, today)
	return err
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
