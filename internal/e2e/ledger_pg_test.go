package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/mappings"
	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/internal/ap"
	"github.com/prajwal-br31/bks-backend/internal/app"
	"github.com/prajwal-br31/bks-backend/internal/ar"
	"github.com/prajwal-br31/bks-backend/internal/platform/db"
	"github.com/prajwal-br31/bks-backend/migrations"
	_ "github.com/prajwal-br31/bks-backend/testing"
)

const dsnEnv = "BKS_E2E_PG_DSN"

type harness struct {
	server  *httptest.Server
	base    string
	company uuid.UUID
	chart   map[string]accounts.Account
}

// newHarness runs the API against a real database. Every run uses a fresh
// company, so the database can be reused between runs.
func newHarness(t *testing.T) harness {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()

	m, err := db.NewMigrator(migrations.Files, dsn)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	cfg := &app.Config{AccountResolution: string(mappings.PolicyMapped)}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	services, err := app.NewServices(app.ServiceDeps{Config: cfg, Logger: logger, Stores: app.PostgresStores(pool)})
	require.NoError(t, err)

	f, err := os.Open("../../configs/chart.sample.yaml")
	require.NoError(t, err)
	chart, err := accounts.LoadChart(f)
	_ = f.Close()
	require.NoError(t, err)

	company := uuid.New()
	byCode, err := services.Accounts.Seed(ctx, company, chart)
	require.NoError(t, err)
	for name, code := range chart.Roles {
		role, err := mappings.ParseRole(name)
		require.NoError(t, err)
		_, err = services.Mappings.Assign(ctx, company, role, byCode[code].ID)
		require.NoError(t, err)
	}

	server := httptest.NewServer(app.NewRouter(services.RouterParams(cfg, logger, nil)))
	t.Cleanup(server.Close)
	return harness{
		server:  server,
		base:    fmt.Sprintf("%s/api/v1/companies/%s", server.URL, company),
		company: company,
		chart:   byCode,
	}
}

func (h harness) call(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.base+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode, "%s %s", method, path)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestLedgerScenariosAgainstPostgres(t *testing.T) {
	h := newHarness(t)
	customer, vendor := uuid.New(), uuid.New()

	// Scenario A: invoice posted as AR against revenue.
	var inv ar.Invoice
	h.call(t, http.MethodPost, "/ar/invoices/", map[string]any{
		"customer_id": customer, "doc_date": "2024-01-10", "due_date": "2024-02-09", "total_amount": "10000.00",
	}, http.StatusCreated, &inv)
	var invPost ar.PostResult
	h.call(t, http.MethodPost, "/ar/invoices/"+inv.ID.String()+"/post", nil, http.StatusOK, &invPost)
	require.NotNil(t, invPost.Invoice)
	assert.Equal(t, ar.StatusSent, invPost.Invoice.Status)

	var again ar.PostResult
	h.call(t, http.MethodPost, "/ar/invoices/"+inv.ID.String()+"/post", nil, http.StatusOK, &again)
	assert.True(t, again.AlreadyPosted)
	assert.Equal(t, invPost.JournalEntryID, again.JournalEntryID)

	// Scenario B: partial receipt.
	var rc ar.Receipt
	h.call(t, http.MethodPost, "/ar/receipts/", map[string]any{
		"customer_id": customer, "invoice_id": inv.ID, "doc_date": "2024-01-20", "amount": "6000.00", "method": "bank_transfer",
	}, http.StatusCreated, &rc)
	var rcPost ar.PostResult
	h.call(t, http.MethodPost, "/ar/receipts/"+rc.ID.String()+"/post", nil, http.StatusOK, &rcPost)
	require.NotNil(t, rcPost.InvoiceBalance)
	assert.Equal(t, "4000.00", rcPost.InvoiceBalance.StringFixed(2))
	assert.Equal(t, ar.StatusPartiallyPaid, rcPost.InvoiceStatus)

	// Scenario C: bill paid in full.
	var bill ap.Bill
	h.call(t, http.MethodPost, "/ap/bills/", map[string]any{
		"vendor_id": vendor, "doc_date": "2024-01-12", "due_date": "2024-02-11", "total_amount": "5000.00",
	}, http.StatusCreated, &bill)
	var billPost ap.PostResult
	h.call(t, http.MethodPost, "/ap/bills/"+bill.ID.String()+"/post", nil, http.StatusOK, &billPost)
	require.NotNil(t, billPost.Bill)
	assert.Equal(t, ap.StatusApproved, billPost.Bill.Status)

	var pay ap.Payment
	h.call(t, http.MethodPost, "/ap/payments/", map[string]any{
		"vendor_id": vendor, "bill_id": bill.ID, "doc_date": "2024-01-25", "amount": "5000.00", "method": "bank_transfer",
	}, http.StatusCreated, &pay)
	var payPost ap.PostResult
	h.call(t, http.MethodPost, "/ap/payments/"+pay.ID.String()+"/post", nil, http.StatusOK, &payPost)
	require.NotNil(t, payPost.BillBalance)
	assert.True(t, payPost.BillBalance.IsZero())
	assert.Equal(t, ap.StatusPaid, payPost.BillStatus)

	// Overpaying the settled bill is rejected and writes nothing.
	var extra ap.Payment
	h.call(t, http.MethodPost, "/ap/payments/", map[string]any{
		"vendor_id": vendor, "bill_id": bill.ID, "doc_date": "2024-01-26", "amount": "1.00",
	}, http.StatusCreated, &extra)
	h.call(t, http.MethodPost, "/ap/payments/"+extra.ID.String()+"/post", nil, http.StatusBadRequest, nil)

	var pl reports.ProfitAndLoss
	h.call(t, http.MethodGet, "/reports/profit-and-loss?from=2024-01-01&to=2024-01-31", nil, http.StatusOK, &pl)
	assert.Equal(t, "10000.00", pl.Totals.Revenue.StringFixed(2))
	assert.Equal(t, "5000.00", pl.Totals.Expenses.StringFixed(2))
	assert.Equal(t, "5000.00", pl.Totals.NetProfit.StringFixed(2))

	var bs reports.BalanceSheet
	h.call(t, http.MethodGet, "/reports/balance-sheet?as_of=2024-01-31", nil, http.StatusOK, &bs)
	assert.True(t, bs.Balanced)

	var cf reports.CashFlow
	h.call(t, http.MethodGet, "/reports/cash-flow?from=2024-01-01&to=2024-01-31", nil, http.StatusOK, &cf)
	assert.True(t, cf.OpeningCash.IsZero())
	assert.Equal(t, "1000.00", cf.ClosingCash.StringFixed(2))
	assert.True(t, cf.ClosingCash.Equal(cf.OpeningCash.Add(cf.NetChangeInCash)))

	var tb struct {
		Balanced bool `json:"balanced"`
	}
	h.call(t, http.MethodGet, "/reports/trial-balance?as_of=2024-01-31", nil, http.StatusOK, &tb)
	assert.True(t, tb.Balanced)
}

func TestConcurrentReceiptsDecrementOnce(t *testing.T) {
	h := newHarness(t)
	customer := uuid.New()

	var inv ar.Invoice
	h.call(t, http.MethodPost, "/ar/invoices/", map[string]any{
		"customer_id": customer, "doc_date": "2024-03-01", "due_date": "2024-03-31", "total_amount": "100.00",
	}, http.StatusCreated, &inv)
	h.call(t, http.MethodPost, "/ar/invoices/"+inv.ID.String()+"/post", nil, http.StatusOK, nil)

	const n = 6
	ids := make([]uuid.UUID, n)
	for i := range ids {
		var rc ar.Receipt
		h.call(t, http.MethodPost, "/ar/receipts/", map[string]any{
			"customer_id": customer, "invoice_id": inv.ID, "doc_date": "2024-03-05", "amount": "20.00",
		}, http.StatusCreated, &rc)
		ids[i] = rc.ID
	}

	codes := make(chan int, n)
	for _, id := range ids {
		go func(id uuid.UUID) {
			req, _ := http.NewRequest(http.MethodPost, h.base+"/ar/receipts/"+id.String()+"/post", nil)
			resp, err := h.server.Client().Do(req)
			if err != nil {
				codes <- 0
				return
			}
			_ = resp.Body.Close()
			codes <- resp.StatusCode
		}(id)
	}
	ok := 0
	for range n {
		if <-codes == http.StatusOK {
			ok++
		}
	}
	assert.Equal(t, 5, ok)

	var got ar.Invoice
	h.call(t, http.MethodGet, "/ar/invoices/"+inv.ID.String(), nil, http.StatusOK, &got)
	assert.True(t, got.BalanceAmount.Equal(decimal.Zero))
	assert.Equal(t, ar.StatusPaid, got.Status)
}
