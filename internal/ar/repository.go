package ar

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

// RepositoryPort defines data access methods for AR.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	CreateReceipt(ctx context.Context, rc Receipt) (Receipt, error)
	GetInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error)
	GetReceipt(ctx context.Context, companyID, id uuid.UUID) (Receipt, error)
	ListInvoices(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Invoice, error)
	ListReceipts(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Receipt, error)
	ListOpenInvoices(ctx context.Context, companyID uuid.UUID) ([]Invoice, error)
}

// TxRepository exposes transactional operations. Lock methods hold the row
// until the transaction ends.
type TxRepository interface {
	Ledger() accounting.TxRepository
	LockInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error)
	LockReceipt(ctx context.Context, companyID, id uuid.UUID) (Receipt, error)
	MarkInvoicePosted(ctx context.Context, id, entryID uuid.UUID, status InvoiceStatus) error
	MarkReceiptPosted(ctx context.Context, id, entryID uuid.UUID) error
	UpdateInvoiceBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, status InvoiceStatus) error
}

// Repository provides PostgreSQL backed persistence.
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

// WithTx wraps callback in a read-committed transaction; row locks taken
// through TxRepository serialize concurrent postings.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, ledger: accounting.NewTxRepository(tx)})
	})
}

const invoiceColumns = `id, company_id, number, customer_id, doc_date, due_date, currency, status,
total_amount, balance_amount, journal_entry_id, created_at, updated_at`

const receiptColumns = `id, company_id, number, customer_id, invoice_id, doc_date, amount, method,
journal_entry_id, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.CustomerID, &inv.DocDate, &inv.DueDate, &inv.Currency, &inv.Status,
		&inv.TotalAmount, &inv.BalanceAmount, &inv.JournalEntryID, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rc Receipt
	err := row.Scan(&rc.ID, &rc.CompanyID, &rc.Number, &rc.CustomerID, &rc.InvoiceID, &rc.DocDate, &rc.Amount, &rc.Method,
		&rc.JournalEntryID, &rc.CreatedAt, &rc.UpdatedAt)
	return rc, err
}

// CreateInvoice inserts a draft invoice.
func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	created, err := scanInvoice(r.pool.QueryRow(ctx, `INSERT INTO ar_invoices
(id, company_id, number, customer_id, doc_date, due_date, currency, status, total_amount, balance_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+invoiceColumns,
		inv.ID, inv.CompanyID, inv.Number, inv.CustomerID, inv.DocDate, inv.DueDate, inv.Currency, inv.Status, inv.TotalAmount, inv.BalanceAmount))
	if db.IsUniqueViolation(err, "uq_ar_invoices_number") {
		return Invoice{}, fmt.Errorf("invoice number %s: %w", inv.Number, shared.ErrDuplicate)
	}
	return created, err
}

// CreateReceipt inserts a draft receipt.
func (r *Repository) CreateReceipt(ctx context.Context, rc Receipt) (Receipt, error) {
	created, err := scanReceipt(r.pool.QueryRow(ctx, `INSERT INTO ar_receipts
(id, company_id, number, customer_id, invoice_id, doc_date, amount, method)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+receiptColumns,
		rc.ID, rc.CompanyID, rc.Number, rc.CustomerID, rc.InvoiceID, rc.DocDate, rc.Amount, rc.Method))
	if db.IsUniqueViolation(err, "uq_ar_receipts_number") {
		return Receipt{}, fmt.Errorf("receipt number %s: %w", rc.Number, shared.ErrDuplicate)
	}
	return created, err
}

// GetInvoice loads one invoice of the company.
func (r *Repository) GetInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE company_id=$1 AND id=$2`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, err
}

// GetReceipt loads one receipt of the company.
func (r *Repository) GetReceipt(ctx context.Context, companyID, id uuid.UUID) (Receipt, error) {
	rc, err := scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM ar_receipts WHERE company_id=$1 AND id=$2`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, shared.NotFound("receipt", id)
	}
	return rc, err
}

// ListInvoices returns invoices, latest document date first.
func (r *Repository) ListInvoices(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices
WHERE company_id=$1 AND ($2 = '' OR status = $2) AND ($3::uuid IS NULL OR customer_id = $3)
ORDER BY doc_date DESC, created_at DESC LIMIT $4`, companyID, string(filter.Status), nullableUUID(filter.CustomerID), filter.Limit)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

// ListReceipts returns receipts, latest document date first.
func (r *Repository) ListReceipts(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM ar_receipts
WHERE company_id=$1 AND ($2::uuid IS NULL OR customer_id = $2)
ORDER BY doc_date DESC, created_at DESC LIMIT $3`, companyID, nullableUUID(filter.CustomerID), filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ListOpenInvoices returns posted invoices with a remaining balance, ordered by due date.
func (r *Repository) ListOpenInvoices(ctx context.Context, companyID uuid.UUID) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices
WHERE company_id=$1 AND journal_entry_id IS NOT NULL AND balance_amount > 0 AND status NOT IN ('PAID','VOID')
ORDER BY due_date`, companyID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
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

func (t *txRepo) LockInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, err
}

func (t *txRepo) LockReceipt(ctx context.Context, companyID, id uuid.UUID) (Receipt, error) {
	rc, err := scanReceipt(t.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM ar_receipts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, shared.NotFound("receipt", id)
	}
	return rc, err
}

func (t *txRepo) MarkInvoicePosted(ctx context.Context, id, entryID uuid.UUID, status InvoiceStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ar_invoices SET journal_entry_id=$2, status=$3, updated_at=$4
WHERE id=$1 AND journal_entry_id IS NULL`, id, entryID, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("ar: invoice %s: %w", id, shared.ErrSourceAlreadyLinked)
	}
	return nil
}

func (t *txRepo) MarkReceiptPosted(ctx context.Context, id, entryID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ar_receipts SET journal_entry_id=$2, updated_at=$3
WHERE id=$1 AND journal_entry_id IS NULL`, id, entryID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("ar: receipt %s: %w", id, shared.ErrSourceAlreadyLinked)
	}
	return nil
}

func (t *txRepo) UpdateInvoiceBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, status InvoiceStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE ar_invoices SET balance_amount=$2, status=$3, updated_at=$4 WHERE id=$1`,
		id, balance, status, time.Now().UTC())
	return err
}
