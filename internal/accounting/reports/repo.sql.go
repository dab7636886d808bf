package reports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/platform/db"
)

// Reader exposes the ledger aggregates the builders consume. Every call made
// through one Reader sees the same committed snapshot.
type Reader interface {
	PeriodActivity(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]PeriodActivity, error)
	Balances(ctx context.Context, companyID uuid.UUID, asOf time.Time) ([]AccountBalance, error)
	CashBalance(ctx context.Context, companyID uuid.UUID, before time.Time) (decimal.Decimal, error)
	CashLines(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]CashLine, error)
	UnbalancedEntries(ctx context.Context, companyID uuid.UUID, asOf time.Time) ([]EntryImbalance, error)
}

// Repository opens report snapshots.
type Repository interface {
	Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error
	Companies(ctx context.Context) ([]uuid.UUID, error)
}

// PGRepository reads posted journals from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Snapshot runs fn inside a repeatable-read, read-only transaction.
func (r *PGRepository) Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	if r == nil || r.pool == nil {
		return errors.New("reports repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.ReadOnlySnapshot, func(tx pgx.Tx) error {
		return fn(ctx, &snapshot{tx: tx})
	})
}

// Companies lists every company with at least one posted entry.
func (r *PGRepository) Companies(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM journal_entries WHERE status='POSTED' ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type snapshot struct {
	tx pgx.Tx
}

func (s *snapshot) PeriodActivity(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]PeriodActivity, error) {
	rows, err := s.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.is_cash,
       date_trunc('month', e.entry_date)::date AS month,
       SUM(l.debit), SUM(l.credit)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.company_id = $1
  AND e.status = 'POSTED'
  AND e.entry_date BETWEEN $2 AND $3
  AND a.type IN ('REVENUE', 'EXPENSE')
GROUP BY a.id, a.code, a.name, a.type, a.is_cash, month
ORDER BY a.code, month`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodActivity
	for rows.Next() {
		var row PeriodActivity
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.IsCash, &row.Month, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *snapshot) Balances(ctx context.Context, companyID uuid.UUID, asOf time.Time) ([]AccountBalance, error) {
	rows, err := s.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.is_cash,
       COALESCE(SUM(p.debit), 0), COALESCE(SUM(p.credit), 0)
FROM accounts a
LEFT JOIN (
    SELECT l.account_id, l.debit, l.credit
    FROM journal_lines l
    JOIN journal_entries e ON e.id = l.journal_entry_id
    WHERE e.company_id = $1 AND e.status = 'POSTED' AND e.entry_date <= $2
) p ON p.account_id = a.id
WHERE a.company_id = $1
GROUP BY a.id, a.code, a.name, a.type, a.is_cash
ORDER BY a.code`, companyID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var row AccountBalance
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.IsCash, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *snapshot) CashBalance(ctx context.Context, companyID uuid.UUID, before time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit - l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.company_id = $1 AND e.status = 'POSTED' AND e.entry_date < $2 AND a.is_cash`, companyID, before).Scan(&balance)
	return balance, err
}

func (s *snapshot) CashLines(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]CashLine, error) {
	rows, err := s.tx.Query(ctx, `SELECT e.id, e.entry_date, l.line_no, a.id, a.type, a.is_cash, l.debit, l.credit
FROM journal_entries e
JOIN journal_lines l ON l.journal_entry_id = e.id
JOIN accounts a ON a.id = l.account_id
WHERE e.company_id = $1
  AND e.status = 'POSTED'
  AND e.entry_date BETWEEN $2 AND $3
  AND EXISTS (
      SELECT 1 FROM journal_lines cl
      JOIN accounts ca ON ca.id = cl.account_id
      WHERE cl.journal_entry_id = e.id AND ca.is_cash
  )
ORDER BY e.entry_date, e.number, l.line_no`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CashLine
	for rows.Next() {
		var l CashLine
		if err := rows.Scan(&l.EntryID, &l.EntryDate, &l.LineNo, &l.AccountID, &l.Type, &l.IsCash, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *snapshot) UnbalancedEntries(ctx context.Context, companyID uuid.UUID, asOf time.Time) ([]EntryImbalance, error) {
	rows, err := s.tx.Query(ctx, `SELECT e.id, e.number, e.entry_date, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.journal_entry_id = e.id
WHERE e.company_id = $1 AND e.status = 'POSTED' AND e.entry_date <= $2
GROUP BY e.id, e.number, e.entry_date
HAVING COALESCE(SUM(l.debit), 0) <> COALESCE(SUM(l.credit), 0) OR COUNT(l.id) = 0
ORDER BY e.number`, companyID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntryImbalance
	for rows.Next() {
		var row EntryImbalance
		if err := rows.Scan(&row.EntryID, &row.Number, &row.Date, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
