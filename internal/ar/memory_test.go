package ar

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/ledgertest"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// memoryARRepo serializes transactions the way row locks would and restores
// its maps when a transaction fails.
type memoryARRepo struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	invoices map[uuid.UUID]Invoice
	receipts map[uuid.UUID]Receipt
	ledger   *ledgertest.Store
}

func newMemoryARRepo(ledger *ledgertest.Store) *memoryARRepo {
	return &memoryARRepo{
		invoices: make(map[uuid.UUID]Invoice),
		receipts: make(map[uuid.UUID]Receipt),
		ledger:   ledger,
	}
}

func (r *memoryARRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	invoices := make(map[uuid.UUID]Invoice, len(r.invoices))
	for k, v := range r.invoices {
		invoices[k] = v
	}
	receipts := make(map[uuid.UUID]Receipt, len(r.receipts))
	for k, v := range r.receipts {
		receipts[k] = v
	}
	r.mu.Unlock()

	restore := func() {
		r.mu.Lock()
		r.invoices, r.receipts = invoices, receipts
		r.mu.Unlock()
	}
	ltx := r.ledger.Begin()
	if err := fn(ctx, &memoryARTx{repo: r, ledger: ltx}); err != nil {
		ltx.Rollback()
		restore()
		return err
	}
	if err := ltx.Commit(); err != nil {
		restore()
		return err
	}
	return nil
}

func (r *memoryARRepo) CreateInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invoices {
		if existing.CompanyID == inv.CompanyID && existing.Number == inv.Number {
			return Invoice{}, shared.ErrDuplicate
		}
	}
	r.invoices[inv.ID] = inv
	return inv, nil
}

func (r *memoryARRepo) CreateReceipt(_ context.Context, rc Receipt) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[rc.ID] = rc
	return rc, nil
}

func (r *memoryARRepo) GetInvoice(_ context.Context, companyID, id uuid.UUID) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.CompanyID != companyID {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, nil
}

func (r *memoryARRepo) GetReceipt(_ context.Context, companyID, id uuid.UUID) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[id]
	if !ok || rc.CompanyID != companyID {
		return Receipt{}, shared.NotFound("receipt", id)
	}
	return rc, nil
}

func (r *memoryARRepo) ListInvoices(_ context.Context, companyID uuid.UUID, filter ListFilter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.CompanyID != companyID || (filter.Status != "" && inv.Status != filter.Status) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocDate.After(out[j].DocDate) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryARRepo) ListReceipts(_ context.Context, companyID uuid.UUID, filter ListFilter) ([]Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Receipt
	for _, rc := range r.receipts {
		if rc.CompanyID == companyID {
			out = append(out, rc)
		}
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryARRepo) ListOpenInvoices(_ context.Context, companyID uuid.UUID) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.CompanyID == companyID && inv.Posted() && inv.BalanceAmount.IsPositive() && !inv.Status.Terminal() {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryARRepo) setStatus(id uuid.UUID, status InvoiceStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv := r.invoices[id]
	inv.Status = status
	r.invoices[id] = inv
}

type memoryARTx struct {
	repo   *memoryARRepo
	ledger *ledgertest.Tx
}

func (t *memoryARTx) Ledger() accounting.TxRepository { return t.ledger }

func (t *memoryARTx) LockInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	return t.repo.GetInvoice(ctx, companyID, id)
}

func (t *memoryARTx) LockReceipt(ctx context.Context, companyID, id uuid.UUID) (Receipt, error) {
	return t.repo.GetReceipt(ctx, companyID, id)
}

func (t *memoryARTx) MarkInvoicePosted(_ context.Context, id, entryID uuid.UUID, status InvoiceStatus) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	inv := t.repo.invoices[id]
	if inv.JournalEntryID != nil {
		return shared.ErrSourceAlreadyLinked
	}
	inv.JournalEntryID, inv.Status = &entryID, status
	t.repo.invoices[id] = inv
	return nil
}

func (t *memoryARTx) MarkReceiptPosted(_ context.Context, id, entryID uuid.UUID) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	rc := t.repo.receipts[id]
	if rc.JournalEntryID != nil {
		return shared.ErrSourceAlreadyLinked
	}
	rc.JournalEntryID = &entryID
	t.repo.receipts[id] = rc
	return nil
}

func (t *memoryARTx) UpdateInvoiceBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal, status InvoiceStatus) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	inv := t.repo.invoices[id]
	inv.BalanceAmount, inv.Status = balance, status
	t.repo.invoices[id] = inv
	return nil
}
