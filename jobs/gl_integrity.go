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
	jobmetrics "github.com/prajwal-br31/bks-backend/internal/jobs"
)

// IntegritySource is the slice of the reporting service the integrity job reads.
type IntegritySource interface {
	Integrity(ctx context.Context, companyID uuid.UUID, asOf time.Time) (reports.IntegrityReport, error)
	Companies(ctx context.Context) ([]uuid.UUID, error)
}

// GLIntegrityJob verifies that every posted entry balances and that total
// debits equal total credits.
type GLIntegrityJob struct {
	Reports IntegritySource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(source IntegritySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Reports: source,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskGLIntegrity tasks. Violations are logged and counted;
// only read failures return an error so the task is retried.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("gl integrity: %v: %w", err, asynq.SkipRetry)
	}
	asOf, err := payload.asOf(j.now())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err = j.Run(ctx, payload.CompanyID, asOf)
	return err
}

// Run checks one company, or all of them when companyID is nil, and returns
// the reports that failed.
func (j *GLIntegrityJob) Run(ctx context.Context, companyID *uuid.UUID, asOf time.Time) (failed []reports.IntegrityReport, resultErr error) {
	tracker := j.Metrics.Track(TaskGLIntegrity)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := j.logger()
	companies := []uuid.UUID{}
	if companyID != nil {
		companies = append(companies, *companyID)
	} else {
		all, err := j.Reports.Companies(ctx)
		if err != nil {
			logger.Error("load companies", slog.Any("error", err))
			return nil, err
		}
		companies = all
	}

	for _, id := range companies {
		report, err := j.Reports.Integrity(ctx, id, asOf)
		if err != nil {
			logger.Error("integrity scan", slog.String("company_id", id.String()), slog.Any("error", err))
			return failed, err
		}
		if report.OK() {
			continue
		}
		failed = append(failed, report)
		j.record(logger, report)
	}
	logger.Info("GL integrity check executed",
		slog.Int("companies", len(companies)),
		slog.Int("failed", len(failed)),
		slog.String("as_of", asOf.Format(time.DateOnly)))
	return failed, nil
}

func (j *GLIntegrityJob) record(logger *slog.Logger, report reports.IntegrityReport) {
	company := report.CompanyID.String()
	if !report.TotalDebit.Equal(report.TotalCredit) {
		j.Metrics.AddViolations("trial_balance", company, 1)
		logger.Error("trial balance out of balance",
			slog.String("company_id", company),
			slog.String("total_debit", report.TotalDebit.StringFixed(2)),
			slog.String("total_credit", report.TotalCredit.StringFixed(2)))
	}
	j.Metrics.AddViolations("unbalanced_entry", company, len(report.Unbalanced))
	for _, e := range report.Unbalanced {
		logger.Error("unbalanced journal entry",
			slog.String("company_id", company),
			slog.String("journal_entry_id", e.EntryID.String()),
			slog.Int64("number", e.Number),
			slog.String("debit", e.Debit.StringFixed(2)),
			slog.String("credit", e.Credit.StringFixed(2)))
	}
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
