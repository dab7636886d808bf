package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/internal/ap"
	"github.com/prajwal-br31/bks-backend/internal/ar"
	_ "github.com/prajwal-br31/bks-backend/testing"
)

type stubReports struct {
	mu      sync.Mutex
	plErr   error
	cashErr error
	calls   []string
}

func (s *stubReports) ProfitAndLoss(_ context.Context, _ uuid.UUID, from, to time.Time, granularity string) (reports.ProfitAndLoss, error) {
	s.mu.Lock()
	s.calls = append(s.calls, from.Format(time.DateOnly)+".."+to.Format(time.DateOnly))
	s.mu.Unlock()
	if s.plErr != nil {
		return reports.ProfitAndLoss{}, s.plErr
	}
	rows := []reports.PeriodActivity{
		{AccountRef: reports.AccountRef{AccountID: uuid.New(), Code: "4000", Type: accounts.AccountTypeRevenue}, Month: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Debit: decimal.Zero, Credit: decimal.RequireFromString("700")},
		{AccountRef: reports.AccountRef{AccountID: uuid.New(), Code: "5000", Type: accounts.AccountTypeExpense}, Month: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Debit: decimal.RequireFromString("250"), Credit: decimal.Zero},
	}
	g, _ := reports.ParseGranularity(granularity)
	var keep []reports.PeriodActivity
	for _, r := range rows {
		if !r.Month.Before(from) && !r.Month.After(to) {
			keep = append(keep, r)
		}
	}
	return reports.BuildProfitAndLoss(keep, g), nil
}

func (s *stubReports) CashBalance(context.Context, uuid.UUID, time.Time) (decimal.Decimal, error) {
	return decimal.RequireFromString("1234.56"), s.cashErr
}

type stubAR struct{ err error }

func (s stubAR) OpenSummary(context.Context, uuid.UUID, time.Time) (ar.OpenSummary, error) {
	return ar.OpenSummary{OpenTotal: decimal.NewFromInt(300), OverdueTotal: decimal.NewFromInt(100), OpenCount: 2}, s.err
}

func (s stubAR) ListInvoices(_ context.Context, _ uuid.UUID, filter ar.ListFilter) ([]ar.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return make([]ar.Invoice, filter.Limit), nil
}

type stubAP struct{ err error }

func (s stubAP) OpenSummary(context.Context, uuid.UUID, time.Time) (ap.OpenSummary, error) {
	return ap.OpenSummary{OpenTotal: decimal.NewFromInt(80), OverdueTotal: decimal.Zero, OpenCount: 1}, s.err
}

func (s stubAP) ListBills(context.Context, uuid.UUID, ap.ListFilter) ([]ap.Bill, error) {
	return nil, s.err
}

func TestSummaryAllSections(t *testing.T) {
	rep := &stubReports{}
	svc := NewService(rep, stubAR{}, stubAP{}, nil)

	out, err := svc.Summary(context.Background(), uuid.New(), time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2024-05-20", out.AsOf)
	assert.Empty(t, out.Degraded)
	assert.Equal(t, "0", out.KPIs.Revenue.String())
	assert.Equal(t, "250", out.KPIs.Expenses.String())
	assert.Equal(t, "-250", out.KPIs.NetProfit.String())
	assert.Equal(t, "1234.56", out.KPIs.CashBalance.String())
	assert.Equal(t, 2, out.KPIs.AR.OpenCount)
	assert.Equal(t, "80", out.KPIs.AP.OpenTotal.String())
	assert.Len(t, out.Recent.Invoices, recentLimit)
	assert.NotNil(t, out.Recent.Bills)
	assert.Contains(t, rep.calls, "2024-05-01..2024-05-20")
	assert.Contains(t, rep.calls, "2023-12-01..2024-05-20")

	require.Len(t, out.Trend, 2)
	assert.Equal(t, "2024-04", out.Trend[0].Period)
	assert.Equal(t, "700", out.Trend[0].Revenue.String())
	assert.Equal(t, "700", out.Trend[0].NetProfit.String())
	assert.Equal(t, "-250", out.Trend[1].NetProfit.String())
}

func TestSummaryDegradesFailingSections(t *testing.T) {
	boom := errors.New("redis down")
	svc := NewService(&stubReports{plErr: boom}, stubAR{err: boom}, stubAP{}, nil)

	out, err := svc.Summary(context.Background(), uuid.New(), time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{sectionAR, sectionKPIs, sectionInv, sectionTrend}, out.Degraded)
	assert.True(t, out.KPIs.Revenue.IsZero())
	assert.True(t, out.KPIs.AR.OpenTotal.IsZero())
	assert.Empty(t, out.Recent.Invoices)
	assert.Empty(t, out.Trend)
	assert.Equal(t, "1234.56", out.KPIs.CashBalance.String())
}

func TestSummaryFailsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(&stubReports{plErr: context.Canceled}, stubAR{}, stubAP{}, nil)

	_, err := svc.Summary(ctx, uuid.New(), time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummaryHandler(t *testing.T) {
	svc := NewService(&stubReports{}, stubAR{}, stubAP{}, nil)
	h := NewHandler(nil, svc)
	h.now = func() time.Time { return time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/companies/{companyID}/dashboard", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/"+uuid.NewString()+"/dashboard/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"as_of":"2024-05-20"`)
	assert.Contains(t, rec.Body.String(), `"cash_balance":"1234.56"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/"+uuid.NewString()+"/dashboard/summary?as_of=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportWindows(t *testing.T) {
	monthStart, trendFrom := ReportWindows(time.Date(2024, 8, 17, 22, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), monthStart)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), trendFrom)

	monthStart, trendFrom = ReportWindows(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), monthStart)
	assert.Equal(t, time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC), trendFrom)
}
