package ap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
	"github.com/prajwal-br31/bks-backend/internal/platform/db"
)

// RepositoryPort defines data access methods for AP.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateBill(ctx context.Context, bill Bill) (Bill, error)
	CreatePayment(ctx context.Context, p Payment) (Payment, error)
	GetBill(ctx context.Context, companyID, id uuid.UUID) (Bill, error)
	GetPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error)
	ListBills(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Bill, error)
	ListPayments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Payment, error)
	ListOpenBills(ctx context.Context, companyID uuid.UUID) ([]Bill, error)
}

// TxRepository exposes transactional operations. Lock methods hold the row
// until the transaction ends.
type TxRepository interface {
	Ledger() accounting.TxRepository
	LockBill(ctx context.Context, companyID, id uuid.UUID) (Bill, error)
	LockPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error)
	MarkBillPosted(ctx context.Context, id, entryID uuid.UUID, status BillStatus) error
	MarkPaymentPosted(ctx context.Context, id, entryID uuid.UUID) error
	UpdateBillBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, status BillStatus) error
}

// Repository implements RepositoryPort on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx     pgx.Tx
	ledger accounting.TxRepository
}

// WithTx wraps fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, ledger: accounting.NewTxRepository(tx)})
	})
}

const billColumns = `id, company_id, number, vendor_id, doc_date, due_date, currency, status,
total_amount, balance_amount, journal_entry_id, created_at, updated_at`

const paymentColumns = `id, company_id, number, vendor_id, bill_id, doc_date, amount, method,
journal_entry_id, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.CompanyID, &b.Number, &b.VendorID, &b.DocDate, &b.DueDate, &b.Currency, &b.Status,
		&b.TotalAmount, &b.BalanceAmount, &b.JournalEntryID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CompanyID, &p.Number, &p.VendorID, &p.BillID, &p.DocDate, &p.Amount, &p.Method,
		&p.JournalEntryID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateBill inserts a draft bill.
func (r *Repository) CreateBill(ctx context.Context, bill Bill) (Bill, error) {
	created, err := scanBill(r.pool.QueryRow(ctx, `INSERT INTO ap_bills
(id, company_id, number, vendor_id, doc_date, due_date, currency, status, total_amount, balance_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+billColumns,
		bill.ID, bill.CompanyID, bill.Number, bill.VendorID, bill.DocDate, bill.DueDate, bill.Currency, bill.Status, bill.TotalAmount, bill.BalanceAmount))
	if db.IsUniqueViolation(err, "uq_ap_bills_number") {
		return Bill{}, fmt.Errorf("bill number %s: %w", bill.Number, shared.ErrDuplicate)
	}
	return created, err
}

// CreatePayment inserts a draft payment.
func (r *Repository) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	created, err := scanPayment(r.pool.QueryRow(ctx, `INSERT INTO ap_payments
(id, company_id, number, vendor_id, bill_id, doc_date, amount, method)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+paymentColumns,
		p.ID, p.CompanyID, p.Number, p.VendorID, p.BillID, p.DocDate, p.Amount, p.Method))
	if db.IsUniqueViolation(err, "uq_ap_payments_number") {
		return Payment{}, fmt.Errorf("payment number %s: %w", p.Number, shared.ErrDuplicate)
	}
	return created, err
}

// GetBill loads one bill of the company.
func (r *Repository) GetBill(ctx context.Context, companyID, id uuid.UUID) (Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE company_id=$1 AND id=$2`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, shared.NotFound("bill", id)
	}
	return b, err
}

// GetPayment loads one payment of the company.
func (r *Repository) GetPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM ap_payments WHERE company_id=$1 AND id=$2`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, shared.NotFound("payment", id)
	}
	return p, err
}

// ListBills returns bills, latest document date first.
func (r *Repository) ListBills(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM ap_bills
WHERE company_id=$1 AND ($2 = '' OR status = $2) AND ($3::uuid IS NULL OR vendor_id = $3)
ORDER BY doc_date DESC, created_at DESC LIMIT $4`, companyID, string(filter.Status), nullableUUID(filter.VendorID), filter.Limit)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

// ListPayments returns payments, latest document date first.
func (r *Repository) ListPayments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM ap_payments
WHERE company_id=$1 AND ($2::uuid IS NULL OR vendor_id = $2)
ORDER BY doc_date DESC, created_at DESC LIMIT $3`, companyID, nullableUUID(filter.VendorID), filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListOpenBills returns posted bills with a remaining balance, ordered by due date.
func (r *Repository) ListOpenBills(ctx context.Context, companyID uuid.UUID) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM ap_bills
WHERE company_id=$1 AND journal_entry_id IS NOT NULL AND balance_amount > 0 AND status NOT IN ('PAID','VOID')
ORDER BY due_date`, companyID)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

func collectBills(rows pgx.Rows) ([]Bill, error) {
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (t *txRepo) Ledger() accounting.TxRepository {
	return t.ledger
}

func (t *txRepo) LockBill(ctx context.Context, companyID, id uuid.UUID) (Bill, error) {
	b, err := scanBill(t.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, shared.NotFound("bill", id)
	}
	return b, err
}

func (t *txRepo) LockPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM ap_payments WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, shared.NotFound("payment", id)
	}
	return p, err
}

func (t *txRepo) MarkBillPosted(ctx context.Context, id, entryID uuid.UUID, status BillStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ap_bills SET journal_entry_id=$2, status=$3, updated_at=$4
WHERE id=$1 AND journal_entry_id IS NULL`, id, entryID, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("ap: bill %s: %w", id, shared.ErrSourceAlreadyLinked)
	}
	return nil
}

func (t *txRepo) MarkPaymentPosted(ctx context.Context, id, entryID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ap_payments SET journal_entry_id=$2, updated_at=$3
WHERE id=$1 AND journal_entry_id IS NULL`, id, entryID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("ap: payment %s: %w", id, shared.ErrSourceAlreadyLinked)
	}
	return nil
}

func (t *txRepo) UpdateBillBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, status BillStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE ap_bills SET balance_amount=$2, status=$3, updated_at=$4 WHERE id=$1`,
		id, balance, status, time.Now().UTC())
	return err
}
