// Package analytics assembles the finance dashboard from the ledger reports
// and the AR/AP subledgers.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/internal/ap"
	"github.com/prajwal-br31/bks-backend/internal/ar"
)

const (
	recentLimit  = 5
	trendMonths  = 6
	sectionKPIs  = "pnl"
	sectionCash  = "cash"
	sectionAR    = "ar"
	sectionAP    = "ap"
	sectionTrend = "trend"
	sectionInv   = "recent_invoices"
	sectionBills = "recent_bills"
)

// Reports is the slice of the reporting service the dashboard reads.
type Reports interface {
	ProfitAndLoss(ctx context.Context, companyID uuid.UUID, from, to time.Time, granularity string) (reports.ProfitAndLoss, error)
	CashBalance(ctx context.Context, companyID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
}

// Receivables is the slice of the AR service the dashboard reads.
type Receivables interface {
	OpenSummary(ctx context.Context, companyID uuid.UUID, asOf time.Time) (ar.OpenSummary, error)
	ListInvoices(ctx context.Context, companyID uuid.UUID, filter ar.ListFilter) ([]ar.Invoice, error)
}

// Payables is the slice of the AP service the dashboard reads.
type Payables interface {
	OpenSummary(ctx context.Context, companyID uuid.UUID, asOf time.Time) (ap.OpenSummary, error)
	ListBills(ctx context.Context, companyID uuid.UUID, filter ap.ListFilter) ([]ap.Bill, error)
}

// OpenBalances summarises one subledger's unpaid documents.
type OpenBalances struct {
	OpenTotal    decimal.Decimal `json:"open_total"`
	OverdueTotal decimal.Decimal `json:"overdue_total"`
	OpenCount    int             `json:"open_count"`
}

// KPIs are the headline figures. Revenue, Expenses and NetProfit cover the
// month to date.
type KPIs struct {
	Revenue     decimal.Decimal `json:"revenue"`
	Expenses    decimal.Decimal `json:"expenses"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	AR          OpenBalances    `json:"ar"`
	AP          OpenBalances    `json:"ap"`
}

// TrendPoint is one month of profit and loss.
type TrendPoint struct {
	Period    string          `json:"period"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetProfit decimal.Decimal `json:"net_profit"`
}

// Recent lists the latest documents by document date.
type Recent struct {
	Invoices []ar.Invoice `json:"invoices"`
	Bills    []ap.Bill    `json:"bills"`
}

// Summary is the dashboard payload. Degraded names the sections that could
// not be loaded and were zero-filled.
type Summary struct {
	CompanyID uuid.UUID    `json:"company_id"`
	AsOf      string       `json:"as_of"`
	KPIs      KPIs         `json:"kpis"`
	Trend     []TrendPoint `json:"trend"`
	Recent    Recent       `json:"recent"`
	Degraded  []string     `json:"degraded"`
}

// Service coordinates dashboard section loading.
type Service struct {
	reports     Reports
	receivables Receivables
	payables    Payables
	logger      *slog.Logger
}

// NewService wires the dashboard sources.
func NewService(reports Reports, receivables Receivables, payables Payables, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reports: reports, receivables: receivables, payables: payables, logger: logger}
}

// Summary loads every section concurrently. A failing section is logged,
// zero-filled and reported in Degraded; only cancellation of ctx fails the call.
func (s *Service) Summary(ctx context.Context, companyID uuid.UUID, asOf time.Time) (Summary, error) {
	asOf = dateOnly(asOf)
	out := Summary{
		CompanyID: companyID,
		AsOf:      asOf.Format(time.DateOnly),
		KPIs: KPIs{
			Revenue:     decimal.Zero,
			Expenses:    decimal.Zero,
			NetProfit:   decimal.Zero,
			CashBalance: decimal.Zero,
			AR:          zeroBalances(),
			AP:          zeroBalances(),
		},
		Trend:    []TrendPoint{},
		Recent:   Recent{Invoices: []ar.Invoice{}, Bills: []ap.Bill{}},
		Degraded: []string{},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	section := func(name string, load func(context.Context) error) {
		g.Go(func() error {
			err := load(gctx)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("dashboard section degraded",
				slog.String("section", name),
				slog.String("company_id", companyID.String()),
				slog.Any("error", err))
			mu.Lock()
			out.Degraded = append(out.Degraded, name)
			mu.Unlock()
			return nil
		})
	}

	monthStart, trendFrom := ReportWindows(asOf)
	section(sectionKPIs, func(ctx context.Context) error {
		pl, err := s.reports.ProfitAndLoss(ctx, companyID, monthStart, asOf, string(reports.Monthly))
		if err != nil {
			return err
		}
		mu.Lock()
		out.KPIs.Revenue, out.KPIs.Expenses, out.KPIs.NetProfit = pl.Totals.Revenue, pl.Totals.Expenses, pl.Totals.NetProfit
		mu.Unlock()
		return nil
	})
	section(sectionCash, func(ctx context.Context) error {
		cash, err := s.reports.CashBalance(ctx, companyID, asOf)
		if err != nil {
			return err
		}
		mu.Lock()
		out.KPIs.CashBalance = cash
		mu.Unlock()
		return nil
	})
	section(sectionAR, func(ctx context.Context) error {
		sum, err := s.receivables.OpenSummary(ctx, companyID, asOf)
		if err != nil {
			return err
		}
		mu.Lock()
		out.KPIs.AR = OpenBalances(sum)
		mu.Unlock()
		return nil
	})
	section(sectionAP, func(ctx context.Context) error {
		sum, err := s.payables.OpenSummary(ctx, companyID, asOf)
		if err != nil {
			return err
		}
		mu.Lock()
		out.KPIs.AP = OpenBalances(sum)
		mu.Unlock()
		return nil
	})
	section(sectionTrend, func(ctx context.Context) error {
		pl, err := s.reports.ProfitAndLoss(ctx, companyID, trendFrom, asOf, string(reports.Monthly))
		if err != nil {
			return err
		}
		trend := buildTrend(pl)
		mu.Lock()
		out.Trend = trend
		mu.Unlock()
		return nil
	})
	section(sectionInv, func(ctx context.Context) error {
		invoices, err := s.receivables.ListInvoices(ctx, companyID, ar.ListFilter{Limit: recentLimit})
		if err != nil {
			return err
		}
		mu.Lock()
		if invoices != nil {
			out.Recent.Invoices = invoices
		}
		mu.Unlock()
		return nil
	})
	section(sectionBills, func(ctx context.Context) error {
		bills, err := s.payables.ListBills(ctx, companyID, ap.ListFilter{Limit: recentLimit})
		if err != nil {
			return err
		}
		mu.Lock()
		if bills != nil {
			out.Recent.Bills = bills
		}
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	sort.Strings(out.Degraded)
	return out, nil
}

// ReportWindows returns the starts of the two monthly P&L ranges Summary
// requests for asOf: month to date and the trend window.
func ReportWindows(asOf time.Time) (monthStart, trendFrom time.Time) {
	asOf = dateOnly(asOf)
	monthStart = time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	return monthStart, monthStart.AddDate(0, -(trendMonths - 1), 0)
}

// buildTrend turns the per-account period amounts of a monthly P&L into one
// point per month.
func buildTrend(pl reports.ProfitAndLoss) []TrendPoint {
	points := make([]TrendPoint, len(pl.Periods))
	index := make(map[string]int, len(pl.Periods))
	for i, p := range pl.Periods {
		points[i] = TrendPoint{Period: p, Revenue: decimal.Zero, Expenses: decimal.Zero, NetProfit: decimal.Zero}
		index[p] = i
	}
	for _, acc := range pl.Accounts {
		for period, amount := range acc.PeriodAmounts {
			i, ok := index[period]
			if !ok {
				continue
			}
			switch {
			case acc.Type == accounts.AccountTypeRevenue:
				points[i].Revenue = points[i].Revenue.Add(amount)
			case acc.Type == accounts.AccountTypeExpense:
				points[i].Expenses = points[i].Expenses.Add(amount)
			}
		}
	}
	for i := range points {
		points[i].NetProfit = points[i].Revenue.Sub(points[i].Expenses)
	}
	return points
}

func zeroBalances() OpenBalances {
	return OpenBalances{OpenTotal: decimal.Zero, OverdueTotal: decimal.Zero}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
