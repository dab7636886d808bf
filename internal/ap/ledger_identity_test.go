package ap

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
)

func TestRandomPayablesKeepReportIdentities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))
	manual := accounting.NewService(f.store.Journals(), nil)
	start := date(2024, 1, 1)
	cents := func(limit int64) decimal.Decimal { return decimal.New(rng.Int63n(limit)+1, -2) }

	journal := func(on time.Time, debitCode, creditCode string, amount decimal.Decimal) {
		_, err := manual.PostJournal(ctx, accounting.PostingInput{
			CompanyID:    f.company,
			Date:         on,
			Description:  debitCode + "/" + creditCode,
			SourceModule: accounting.SourceManual,
			Lines: []accounting.PostingLineInput{
				accounting.Debit(f.chart[debitCode].ID, amount),
				accounting.Credit(f.chart[creditCode].ID, amount),
			},
		})
		require.NoError(t, err)
	}

	journal(start, "1000", "3000", money("20000.00"))
	var open []uuid.UUID
	for i := 0; i < 60; i++ {
		on := start.AddDate(0, 0, 1+i*5)
		switch op := rng.Intn(5); {
		case op <= 1:
			b := f.billOn(t, cents(300000).String(), on, on.AddDate(0, 0, 30))
			_, err := f.svc.PostBill(ctx, f.company, b.ID)
			require.NoError(t, err)
			open = append(open, b.ID)
		case op == 2 && len(open) > 0:
			idx := rng.Intn(len(open))
			b, err := f.svc.GetBill(ctx, f.company, open[idx])
			require.NoError(t, err)
			amount := b.BalanceAmount
			if rng.Intn(2) == 0 {
				amount = decimal.Min(amount, cents(100000))
			}
			p, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
				CompanyID: f.company,
				VendorID:  f.vendor,
				BillID:    &b.ID,
				DocDate:   on,
				Amount:    amount,
			})
			require.NoError(t, err)
			_, err = f.svc.PostPayment(ctx, f.company, p.ID)
			require.NoError(t, err)
			if amount.Equal(b.BalanceAmount) {
				open = append(open[:idx], open[idx+1:]...)
			}
		case op == 3:
			journal(on, "1000", "4000", cents(250000))
		default:
			journal(on, "2500", "1000", cents(50000))
		}
	}

	svc := reports.NewService(f.store.Reports(), nil, nil)
	yearEnd := date(2024, 12, 31)

	bs, err := svc.BalanceSheet(ctx, f.company, yearEnd)
	require.NoError(t, err)
	assert.True(t, bs.Balanced, "assets %s, liabilities+equity %s", bs.Check.Assets, bs.Check.LiabilitiesPlusEquity)

	cf, err := svc.CashFlow(ctx, f.company, date(2024, 2, 1), yearEnd)
	require.NoError(t, err)
	opening, err := svc.CashBalance(ctx, f.company, date(2024, 1, 31))
	require.NoError(t, err)
	assert.True(t, cf.OpeningCash.Equal(opening), "opening %s, want %s", cf.OpeningCash, opening)
	assert.True(t, cf.ClosingCash.Equal(cf.OpeningCash.Add(cf.NetChangeInCash)))
	assert.True(t, cf.ClosingCash.Equal(f.balanceOf("1000")), "closing %s, ledger %s", cf.ClosingCash, f.balanceOf("1000"))
	assert.True(t, f.balanceOf("2000").Neg().Equal(sumOpen(t, f, open)))
}

// sumOpen totals the balances of the bills still carrying one.
func sumOpen(t *testing.T, f fixture, ids []uuid.UUID) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, id := range ids {
		b, err := f.svc.GetBill(context.Background(), f.company, id)
		require.NoError(t, err)
		total = total.Add(b.BalanceAmount)
	}
	return total
}
