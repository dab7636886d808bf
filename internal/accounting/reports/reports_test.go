package reports

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
	"github.com/prajwal-br31/bks-backend/internal/platform/cache"
	_ "github.com/prajwal-br31/bks-backend/testing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ref(code, name string, t accounts.AccountType, cash bool) AccountRef {
	return AccountRef{AccountID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(code)), Code: code, Name: name, Type: t, IsCash: cash}
}

func month(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

var (
	cashRef    = ref("1000", "Cash", accounts.AccountTypeAsset, true)
	arRef      = ref("1100", "Accounts Receivable", accounts.AccountTypeAsset, false)
	equipRef   = ref("1500", "Equipment", accounts.AccountTypeAsset, false)
	apRef      = ref("2000", "Accounts Payable", accounts.AccountTypeLiability, false)
	loanRef    = ref("2500", "Bank Loan", accounts.AccountTypeLiability, false)
	capitalRef = ref("3000", "Owner Capital", accounts.AccountTypeEquity, false)
	salesRef   = ref("4000", "Sales", accounts.AccountTypeRevenue, false)
	rentRef    = ref("5000", "Rent", accounts.AccountTypeExpense, false)
)

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		{AccountRef: cashRef, Debit: d("1200"), Credit: d("150")},
		{AccountRef: ref("1001", "Bank", accounts.AccountTypeAsset, true), Debit: d("100"), Credit: d("50")},
		{AccountRef: apRef, Debit: d("10"), Credit: d("1110")},
	}

	tb := BuildTrialBalance(balances)
	require.Len(t, tb.Groups, 2)
	assert.Equal(t, "10", tb.Groups[0].Key)
	assert.True(t, tb.TotalDebit.Equal(d("1310")))
	assert.True(t, tb.TotalCredit.Equal(d("1310")))
	assert.True(t, tb.TotalClosing.IsZero())
	assert.True(t, tb.Balanced())
}

func TestBuildProfitAndLossBuckets(t *testing.T) {
	rows := []PeriodActivity{
		{AccountRef: salesRef, Month: month(2024, time.January), Credit: d("1000"), Debit: decimal.Zero},
		{AccountRef: salesRef, Month: month(2024, time.February), Credit: d("500.50"), Debit: d("0.50")},
		{AccountRef: salesRef, Month: month(2024, time.April), Credit: d("250"), Debit: decimal.Zero},
		{AccountRef: rentRef, Month: month(2024, time.February), Debit: d("300"), Credit: decimal.Zero},
	}

	monthly := BuildProfitAndLoss(rows, Monthly)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-04"}, monthly.Periods)
	require.Len(t, monthly.Accounts, 2)
	assert.Equal(t, "4000", monthly.Accounts[0].Code)
	assert.True(t, monthly.Accounts[0].PeriodAmounts["2024-02"].Equal(d("500")))
	assert.True(t, monthly.Totals.Revenue.Equal(d("1750")))
	assert.True(t, monthly.Totals.Expenses.Equal(d("300")))
	assert.True(t, monthly.Totals.NetProfit.Equal(d("1450")))

	quarterly := BuildProfitAndLoss(rows, Quarterly)
	assert.Equal(t, []string{"2024-Q1", "2024-Q2"}, quarterly.Periods)
	assert.True(t, quarterly.Accounts[0].PeriodAmounts["2024-Q1"].Equal(d("1500")))

	yearly := BuildProfitAndLoss(rows, Yearly)
	assert.Equal(t, []string{"2024"}, yearly.Periods)

	for _, pl := range []ProfitAndLoss{monthly, quarterly, yearly} {
		for _, acc := range pl.Accounts {
			periods := decimal.Zero
			for _, v := range acc.PeriodAmounts {
				periods = periods.Add(v)
			}
			assert.True(t, periods.Equal(acc.Total), acc.Code)
		}
		assert.True(t, pl.Totals.NetProfit.Equal(pl.Totals.Revenue.Sub(pl.Totals.Expenses)))
	}
}

func TestBuildProfitAndLossEmpty(t *testing.T) {
	pl := BuildProfitAndLoss(nil, Monthly)
	assert.Empty(t, pl.Periods)
	assert.Empty(t, pl.Accounts)
	assert.True(t, pl.Totals.NetProfit.IsZero())
}

func TestBuildBalanceSheetFoldsEarnings(t *testing.T) {
	balances := []AccountBalance{
		{AccountRef: cashRef, Debit: d("15000"), Credit: d("2000")},
		{AccountRef: arRef, Debit: d("10000"), Credit: d("10000")},
		{AccountRef: apRef, Debit: decimal.Zero, Credit: d("3000")},
		{AccountRef: capitalRef, Debit: decimal.Zero, Credit: d("5000")},
		{AccountRef: salesRef, Debit: decimal.Zero, Credit: d("10000")},
		{AccountRef: rentRef, Debit: d("5000"), Credit: decimal.Zero},
	}

	bs := BuildBalanceSheet(balances)
	require.Len(t, bs.Sections, 3)
	assert.Equal(t, "Assets", bs.Sections[0].Name)
	require.Len(t, bs.Sections[0].Accounts, 1, "zero AR balance is omitted")
	assert.True(t, bs.Sections[0].Total.Equal(d("13000")))

	equity := bs.Sections[2]
	last := equity.Accounts[len(equity.Accounts)-1]
	assert.Equal(t, CurrentEarningsName, last.Name)
	assert.True(t, last.Balance.Equal(d("5000")))

	assert.True(t, bs.Check.Assets.Equal(d("13000")))
	assert.True(t, bs.Check.LiabilitiesPlusEquity.Equal(d("13000")))
	assert.True(t, bs.Balanced)
}

func TestBuildBalanceSheetOmitsEmptySections(t *testing.T) {
	bs := BuildBalanceSheet([]AccountBalance{
		{AccountRef: cashRef, Debit: d("100"), Credit: decimal.Zero},
		{AccountRef: capitalRef, Debit: decimal.Zero, Credit: d("100")},
	})
	require.Len(t, bs.Sections, 2)
	assert.Equal(t, "Equity", bs.Sections[1].Name)
	assert.True(t, bs.Balanced)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Operating, Classify(accounts.AccountTypeRevenue, false))
	assert.Equal(t, Operating, Classify(accounts.AccountTypeExpense, false))
	assert.Equal(t, Investing, Classify(accounts.AccountTypeAsset, false))
	assert.Equal(t, Operating, Classify(accounts.AccountTypeAsset, true))
	assert.Equal(t, Financing, Classify(accounts.AccountTypeLiability, false))
	assert.Equal(t, Financing, Classify(accounts.AccountTypeEquity, false))
}

func cashLines(entry uuid.UUID, date time.Time, legs ...AccountRef) func(amount string) []CashLine {
	return func(amount string) []CashLine {
		out := make([]CashLine, 0, 2)
		for i, leg := range legs {
			l := CashLine{EntryID: entry, EntryDate: date, LineNo: i + 1, AccountID: leg.AccountID, Type: leg.Type, IsCash: leg.IsCash, Debit: decimal.Zero, Credit: decimal.Zero}
			if i == 0 {
				l.Debit = d(amount)
			} else {
				l.Credit = d(amount)
			}
			out = append(out, l)
		}
		return out
	}
}

func TestBuildCashFlowCategories(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var lines []CashLine
	lines = append(lines, cashLines(uuid.New(), date, cashRef, arRef)("10000")...)
	lines = append(lines, cashLines(uuid.New(), date, cashRef, salesRef)("2500")...)
	lines = append(lines, cashLines(uuid.New(), date, equipRef, cashRef)("4000")...)
	lines = append(lines, cashLines(uuid.New(), date, cashRef, loanRef)("7000")...)
	lines = append(lines, cashLines(uuid.New(), date, apRef, cashRef)("1500")...)
	lines = append(lines, cashLines(uuid.New(), date, cashRef, ref("1001", "Bank", accounts.AccountTypeAsset, true))("300")...)

	cf := BuildCashFlow(d("1000"), lines)

	op := cf.Categories[Operating]
	inv := cf.Categories[Investing]
	fin := cf.Categories[Financing]
	assert.True(t, op.Inflows.Equal(d("2500")))
	assert.True(t, inv.Inflows.Equal(d("10000")), "receivable collections count as non-cash asset")
	assert.True(t, inv.Outflows.Equal(d("4000")))
	assert.True(t, fin.Inflows.Equal(d("7000")))
	assert.True(t, fin.Outflows.Equal(d("1500")))
	assert.True(t, cf.NetChangeInCash.Equal(d("14000")), "cash-to-cash transfer nets to zero and is skipped")
	assert.True(t, cf.ClosingCash.Equal(cf.OpeningCash.Add(cf.NetChangeInCash)))
	for _, c := range CashCategories() {
		f := cf.Categories[c]
		assert.True(t, f.Net.Equal(f.Inflows.Sub(f.Outflows)))
	}
}

func TestBuildCashFlowEmpty(t *testing.T) {
	cf := BuildCashFlow(d("42"), nil)
	assert.Len(t, cf.Categories, 3)
	assert.True(t, cf.ClosingCash.Equal(d("42")))
}

type stubReader struct {
	activity   []PeriodActivity
	balances   []AccountBalance
	cash       decimal.Decimal
	lines      []CashLine
	unbalanced []EntryImbalance
	cashBefore time.Time
}

func (s *stubReader) PeriodActivity(context.Context, uuid.UUID, time.Time, time.Time) ([]PeriodActivity, error) {
	return s.activity, nil
}
func (s *stubReader) Balances(context.Context, uuid.UUID, time.Time) ([]AccountBalance, error) {
	return s.balances, nil
}
func (s *stubReader) CashBalance(_ context.Context, _ uuid.UUID, before time.Time) (decimal.Decimal, error) {
	s.cashBefore = before
	return s.cash, nil
}
func (s *stubReader) CashLines(context.Context, uuid.UUID, time.Time, time.Time) ([]CashLine, error) {
	return s.lines, nil
}
func (s *stubReader) UnbalancedEntries(context.Context, uuid.UUID, time.Time) ([]EntryImbalance, error) {
	return s.unbalanced, nil
}

type stubRepo struct {
	reader    *stubReader
	snapshots atomic.Int32
	err       error
}

func (s *stubRepo) Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	s.snapshots.Add(1)
	if s.err != nil {
		return s.err
	}
	return fn(ctx, s.reader)
}

func (s *stubRepo) Companies(context.Context) ([]uuid.UUID, error) { return nil, nil }

func TestServiceValidatesParameters(t *testing.T) {
	svc := NewService(&stubRepo{reader: &stubReader{}}, nil, nil)
	company := uuid.New()
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.ProfitAndLoss(context.Background(), company, jan, jan, "weekly")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProfitAndLoss(context.Background(), company, jan.AddDate(0, 1, 0), jan, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CashFlow(context.Background(), uuid.Nil, jan, jan)
	require.ErrorIs(t, err, shared.ErrValidation)

	pl, err := svc.ProfitAndLoss(context.Background(), company, jan, jan, "")
	require.NoError(t, err)
	assert.Equal(t, Monthly, pl.Granularity)
}

func TestServiceCachesUntilBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	versioned := cache.NewVersioned(client, "reports", time.Minute)

	reader := &stubReader{balances: []AccountBalance{
		{AccountRef: cashRef, Debit: d("100"), Credit: decimal.Zero},
		{AccountRef: capitalRef, Debit: decimal.Zero, Credit: d("100")},
	}}
	repo := &stubRepo{reader: reader}
	svc := NewService(repo, versioned, nil)
	ctx := context.Background()
	company := uuid.New()
	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	first, err := svc.BalanceSheet(ctx, company, asOf)
	require.NoError(t, err)
	second, err := svc.BalanceSheet(ctx, company, asOf)
	require.NoError(t, err)
	assert.EqualValues(t, 1, repo.snapshots.Load())
	assert.True(t, second.Check.Assets.Equal(first.Check.Assets))
	assert.Equal(t, company, second.CompanyID)

	require.NoError(t, versioned.Bump(ctx))
	_, err = svc.BalanceSheet(ctx, company, asOf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, repo.snapshots.Load())
}

func TestServiceFallsBackWhenCacheDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	versioned := cache.NewVersioned(client, "reports", time.Minute)
	mr.Close()

	repo := &stubRepo{reader: &stubReader{}}
	svc := NewService(repo, versioned, nil)
	tb, err := svc.TrialBalance(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, tb.Balanced())
}

func TestServiceDoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	versioned := cache.NewVersioned(client, "reports", time.Minute)

	boom := errors.New("db down")
	repo := &stubRepo{reader: &stubReader{}, err: boom}
	svc := NewService(repo, versioned, nil)
	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	company := uuid.New()

	_, err := svc.BalanceSheet(context.Background(), company, asOf)
	require.ErrorIs(t, err, boom)

	repo.err = nil
	_, err = svc.BalanceSheet(context.Background(), company, asOf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, repo.snapshots.Load())
}

type blockingRepo struct {
	reader  *stubReader
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRepo) Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return fn(ctx, b.reader)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingRepo) Companies(context.Context) ([]uuid.UUID, error) { return nil, nil }

func TestServiceSharedBuildSurvivesCallerCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	versioned := cache.NewVersioned(client, "reports", time.Minute)

	repo := &blockingRepo{
		reader: &stubReader{balances: []AccountBalance{
			{AccountRef: cashRef, Debit: d("100"), Credit: decimal.Zero},
			{AccountRef: capitalRef, Debit: decimal.Zero, Credit: d("100")},
		}},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := NewService(repo, versioned, nil)
	company := uuid.New()
	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	first := make(chan error, 1)
	go func() {
		_, err := svc.BalanceSheet(firstCtx, company, asOf)
		first <- err
	}()
	<-repo.entered

	secondCtx, cancelSecond := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelSecond()
	type result struct {
		bs  BalanceSheet
		err error
	}
	second := make(chan result, 1)
	go func() {
		bs, err := svc.BalanceSheet(secondCtx, company, asOf)
		second <- result{bs, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-first, context.Canceled)

	close(repo.release)
	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.bs.Check.Assets.Equal(d("100")))
}

func TestServiceCashFlowAndCashBalance(t *testing.T) {
	reader := &stubReader{cash: d("500")}
	svc := NewService(&stubRepo{reader: reader}, nil, nil)
	company := uuid.New()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	reader.lines = cashLines(uuid.New(), from, cashRef, salesRef)("250")
	cf, err := svc.CashFlow(context.Background(), company, from, to)
	require.NoError(t, err)
	assert.Equal(t, from, reader.cashBefore)
	assert.True(t, cf.ClosingCash.Equal(d("750")))
	assert.Equal(t, from, cf.Period.From)

	balance, err := svc.CashBalance(context.Background(), company, to)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("500")))
	assert.Equal(t, to.AddDate(0, 0, 1), reader.cashBefore)
}

func TestServiceIntegrity(t *testing.T) {
	reader := &stubReader{balances: []AccountBalance{
		{AccountRef: cashRef, Debit: d("100"), Credit: decimal.Zero},
		{AccountRef: salesRef, Debit: decimal.Zero, Credit: d("90")},
	}, unbalanced: []EntryImbalance{{EntryID: uuid.New(), Number: 7, Debit: d("100"), Credit: d("90")}}}
	svc := NewService(&stubRepo{reader: reader}, nil, nil)

	report, err := svc.Integrity(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Len(t, report.Unbalanced, 1)

	reader.balances[1].Credit = d("100")
	reader.unbalanced = nil
	report, err = svc.Integrity(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, report.OK())
}
