package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

const (
	dateLayout         = "2006-01-02"
	sharedBuildTimeout = 30 * time.Second
)

// Cache is the versioned report cache.
type Cache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// Service builds financial statements from posted journals.
type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService wires the report service. cache may be nil.
func NewService(repo Repository, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ProfitAndLoss computes revenue and expenses per bucket over [from, to].
func (s *Service) ProfitAndLoss(ctx context.Context, companyID uuid.UUID, from, to time.Time, granularity string) (ProfitAndLoss, error) {
	g, ok := ParseGranularity(granularity)
	if !ok {
		return ProfitAndLoss{}, shared.Invalid("granularity", "must be one of monthly, quarterly, yearly")
	}
	if err := checkRange(companyID, from, to); err != nil {
		return ProfitAndLoss{}, err
	}
	from, to = day(from), day(to)
	return cached(ctx, s, []string{"pl", companyID.String(), from.Format(dateLayout), to.Format(dateLayout), string(g)},
		func(ctx context.Context) (ProfitAndLoss, error) {
			var rows []PeriodActivity
			err := s.repo.Snapshot(ctx, func(ctx context.Context, r Reader) error {
				var err error
				rows, err = r.PeriodActivity(ctx, companyID, from, to)
				return err
			})
			if err != nil {
				return ProfitAndLoss{}, err
			}
			out := BuildProfitAndLoss(rows, g)
			out.CompanyID, out.From, out.To = companyID, from, to
			return out, nil
		})
}

// BalanceSheet computes balances of every account as of asOf inclusive.
func (s *Service) BalanceSheet(ctx context.Context, companyID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
	if err := checkDate(companyID, asOf); err != nil {
		return BalanceSheet{}, err
	}
	asOf = day(asOf)
	return cached(ctx, s, []string{"bs", companyID.String(), asOf.Format(dateLayout)},
		func(ctx context.Context) (BalanceSheet, error) {
			balances, err := s.balances(ctx, companyID, asOf)
			if err != nil {
				return BalanceSheet{}, err
			}
			out := BuildBalanceSheet(balances)
			out.CompanyID, out.AsOf = companyID, asOf
			return out, nil
		})
}

// CashFlow reports cash movements over [from, to] by category.
func (s *Service) CashFlow(ctx context.Context, companyID uuid.UUID, from, to time.Time) (CashFlow, error) {
	if err := checkRange(companyID, from, to); err != nil {
		return CashFlow{}, err
	}
	from, to = day(from), day(to)
	return cached(ctx, s, []string{"cf", companyID.String(), from.Format(dateLayout), to.Format(dateLayout)},
		func(ctx context.Context) (CashFlow, error) {
			var (
				opening decimal.Decimal
				lines   []CashLine
			)
			err := s.repo.Snapshot(ctx, func(ctx context.Context, r Reader) error {
				var err error
				if opening, err = r.CashBalance(ctx, companyID, from); err != nil {
					return err
				}
				lines, err = r.CashLines(ctx, companyID, from, to)
				return err
			})
			if err != nil {
				return CashFlow{}, err
			}
			out := BuildCashFlow(opening, lines)
			out.CompanyID = companyID
			out.Period = CashFlowPeriod{From: from, To: to}
			return out, nil
		})
}

// TrialBalance lists account activity as of asOf inclusive.
func (s *Service) TrialBalance(ctx context.Context, companyID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	if err := checkDate(companyID, asOf); err != nil {
		return TrialBalance{}, err
	}
	asOf = day(asOf)
	return cached(ctx, s, []string{"tb", companyID.String(), asOf.Format(dateLayout)},
		func(ctx context.Context) (TrialBalance, error) {
			balances, err := s.balances(ctx, companyID, asOf)
			if err != nil {
				return TrialBalance{}, err
			}
			return BuildTrialBalance(balances), nil
		})
}

// CashBalance sums cash accounts over entries dated on or before asOf. It is
// not cached.
func (s *Service) CashBalance(ctx context.Context, companyID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	if err := checkDate(companyID, asOf); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := s.repo.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		balance, err = r.CashBalance(ctx, companyID, day(asOf).AddDate(0, 0, 1))
		return err
	})
	return balance, err
}

// Integrity scans the ledger of companyID for unbalanced entries and checks
// that total debits equal total credits. It always reads fresh data.
func (s *Service) Integrity(ctx context.Context, companyID uuid.UUID, asOf time.Time) (IntegrityReport, error) {
	if err := checkDate(companyID, asOf); err != nil {
		return IntegrityReport{}, err
	}
	asOf = day(asOf)
	var (
		balances   []AccountBalance
		unbalanced []EntryImbalance
	)
	err := s.repo.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		if balances, err = r.Balances(ctx, companyID, asOf); err != nil {
			return err
		}
		unbalanced, err = r.UnbalancedEntries(ctx, companyID, asOf)
		return err
	})
	if err != nil {
		return IntegrityReport{}, err
	}
	tb := BuildTrialBalance(balances)
	return IntegrityReport{
		CompanyID:   companyID,
		AsOf:        asOf,
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Unbalanced:  unbalanced,
	}, nil
}

// Companies lists the companies that have posted activity.
func (s *Service) Companies(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.Companies(ctx)
}

func (s *Service) balances(ctx context.Context, companyID uuid.UUID, asOf time.Time) ([]AccountBalance, error) {
	var balances []AccountBalance
	err := s.repo.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		balances, err = r.Balances(ctx, companyID, asOf)
		return err
	})
	return balances, err
}

// cached serves build through the versioned cache. Identical concurrent calls
// share one build. A cache outage falls back to building directly.
func cached[T any](ctx context.Context, s *Service, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.cache == nil {
		return build(ctx)
	}
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", parts[0]), slog.Any("error", err))
		return build(ctx)
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// The build is shared, so one caller going away must not cancel it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedBuildTimeout)
		defer cancel()
		var (
			out       T
			fresh     T
			loaded    bool
			loaderErr error
		)
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			loaded = true
			fresh, loaderErr = build(ctx)
			return fresh, loaderErr
		})
		switch {
		case loaderErr != nil:
			return zero, loaderErr
		case err == nil:
			return out, nil
		case loaded:
			s.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
			return fresh, nil
		default:
			s.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
			return build(ctx)
		}
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func checkRange(companyID uuid.UUID, from, to time.Time) error {
	if companyID == uuid.Nil {
		return shared.Invalid("company_id", "is required")
	}
	if from.IsZero() || to.IsZero() {
		return shared.Invalid("from", "from and to are required")
	}
	if day(from).After(day(to)) {
		return shared.Invalid("from", "must not be after to")
	}
	return nil
}

func checkDate(companyID uuid.UUID, asOf time.Time) error {
	if companyID == uuid.Nil {
		return shared.Invalid("company_id", "is required")
	}
	if asOf.IsZero() {
		return shared.Invalid("as_of", "is required")
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
