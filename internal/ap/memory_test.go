package ap

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/ledgertest"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

type memoryAPRepo struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	bills    map[uuid.UUID]Bill
	payments map[uuid.UUID]Payment
	ledger   *ledgertest.Store
}

func newMemoryAPRepo(ledger *ledgertest.Store) *memoryAPRepo {
	return &memoryAPRepo{
		bills:    make(map[uuid.UUID]Bill),
		payments: make(map[uuid.UUID]Payment),
		ledger:   ledger,
	}
}

func (r *memoryAPRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	bills, payments := maps.Clone(r.bills), maps.Clone(r.payments)
	r.mu.Unlock()
	rollback := func() {
		r.mu.Lock()
		r.bills, r.payments = bills, payments
		r.mu.Unlock()
	}

	ltx := r.ledger.Begin()
	if err := fn(ctx, &memoryAPTx{repo: r, ledger: ltx}); err != nil {
		ltx.Rollback()
		rollback()
		return err
	}
	if err := ltx.Commit(); err != nil {
		rollback()
		return err
	}
	return nil
}

func (r *memoryAPRepo) CreateBill(_ context.Context, bill Bill) (Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bills {
		if b.CompanyID == bill.CompanyID && b.Number == bill.Number {
			return Bill{}, shared.ErrDuplicate
		}
	}
	r.bills[bill.ID] = bill
	return bill, nil
}

func (r *memoryAPRepo) CreatePayment(_ context.Context, p Payment) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryAPRepo) GetBill(_ context.Context, companyID, id uuid.UUID) (Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bills[id]
	if !ok || b.CompanyID != companyID {
		return Bill{}, shared.NotFound("bill", id)
	}
	return b, nil
}

func (r *memoryAPRepo) GetPayment(_ context.Context, companyID, id uuid.UUID) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.CompanyID != companyID {
		return Payment{}, shared.NotFound("payment", id)
	}
	return p, nil
}

func (r *memoryAPRepo) ListBills(_ context.Context, companyID uuid.UUID, filter ListFilter) ([]Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Bill
	for _, b := range r.bills {
		if b.CompanyID == companyID && (filter.Status == "" || b.Status == filter.Status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocDate.After(out[j].DocDate) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryAPRepo) ListPayments(_ context.Context, companyID uuid.UUID, filter ListFilter) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryAPRepo) ListOpenBills(_ context.Context, companyID uuid.UUID) ([]Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Bill
	for _, b := range r.bills {
		if b.CompanyID == companyID && b.Posted() && b.BalanceAmount.IsPositive() && !b.Status.Terminal() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryAPRepo) update(id uuid.UUID, fn func(*Bill)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bills[id]
	fn(&b)
	r.bills[id] = b
}

type memoryAPTx struct {
	repo   *memoryAPRepo
	ledger *ledgertest.Tx
}

func (t *memoryAPTx) Ledger() accounting.TxRepository { return t.ledger }

func (t *memoryAPTx) LockBill(ctx context.Context, companyID, id uuid.UUID) (Bill, error) {
	return t.repo.GetBill(ctx, companyID, id)
}

func (t *memoryAPTx) LockPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error) {
	return t.repo.GetPayment(ctx, companyID, id)
}

func (t *memoryAPTx) MarkBillPosted(_ context.Context, id, entryID uuid.UUID, status BillStatus) error {
	var err error
	t.repo.update(id, func(b *Bill) {
		if b.JournalEntryID != nil {
			err = shared.ErrSourceAlreadyLinked
			return
		}
		b.JournalEntryID, b.Status = &entryID, status
	})
	return err
}

func (t *memoryAPTx) MarkPaymentPosted(_ context.Context, id, entryID uuid.UUID) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	p := t.repo.payments[id]
	if p.JournalEntryID != nil {
		return shared.ErrSourceAlreadyLinked
	}
	p.JournalEntryID = &entryID
	t.repo.payments[id] = p
	return nil
}

func (t *memoryAPTx) UpdateBillBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal, status BillStatus) error {
	t.repo.update(id, func(b *Bill) { b.BalanceAmount, b.Status = balance, status })
	return nil
}
