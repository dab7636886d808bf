package accounting

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
	"github.com/prajwal-br31/bks-backend/internal/platform/db"
)

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes a posting performs inside one transaction.
type TxRepository interface {
	LockAccounts(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]accounts.Account, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, lines []JournalLine) error
	LinkSource(ctx context.Context, module SourceModule, sourceID, entryID uuid.UUID) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger writes to a transaction owned by the caller,
// so subledger updates and the journal commit together.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// ErrSourceConflict indicates the source link already exists.
var ErrSourceConflict = errors.New("accounting: source link conflict")

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// LockAccounts loads the company's accounts among ids and holds a share lock
// on them until commit, so a concurrent deactivation waits for the posting.
func (r *txRepository) LockAccounts(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]accounts.Account, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := r.tx.Query(ctx, `SELECT id, company_id, code, name, type, is_cash, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 AND id = ANY($2::uuid[]) ORDER BY id FOR SHARE`, companyID, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsCash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (id, company_id, entry_date, description, source_module, source_id, status, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING number, created_at`,
		entry.ID, entry.CompanyID, entry.Date, entry.Description, entry.SourceModule, entry.SourceID, entry.Status, entry.PostedAt)
	if err := row.Scan(&entry.Number, &entry.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (id, journal_entry_id, line_no, account_id, description, debit, credit)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, line.ID, line.JournalEntryID, line.LineNo, line.AccountID, line.Description, line.Debit, line.Credit)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) LinkSource(ctx context.Context, module SourceModule, sourceID, entryID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, source_id, journal_entry_id) VALUES ($1,$2,$3)`, module, sourceID, entryID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_source_links") {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

// GetJournal loads an entry with its lines in posting order.
func (r *Repository) GetJournal(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error) {
	var entry JournalEntry
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, number, entry_date, description, source_module, source_id, status, posted_at, created_at
FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, id).
		Scan(&entry.ID, &entry.CompanyID, &entry.Number, &entry.Date, &entry.Description, &entry.SourceModule, &entry.SourceID, &entry.Status, &entry.PostedAt, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.NotFound("journal entry", id)
		}
		return JournalEntry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, journal_entry_id, line_no, account_id, description, debit, credit
FROM journal_lines WHERE journal_entry_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalEntryID, &line.LineNo, &line.AccountID, &line.Description, &line.Debit, &line.Credit); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

// ListJournals returns entry headers, newest first.
func (r *Repository) ListJournals(ctx context.Context, companyID uuid.UUID, filter JournalFilter) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, number, entry_date, description, source_module, source_id, status, posted_at, created_at
FROM journal_entries
WHERE company_id=$1
  AND ($2::date IS NULL OR entry_date >= $2)
  AND ($3::date IS NULL OR entry_date <= $3)
  AND ($4 = '' OR source_module = $4)
ORDER BY entry_date DESC, number DESC
LIMIT $5`, companyID, filter.From, filter.To, string(filter.SourceModule), filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Number, &e.Date, &e.Description, &e.SourceModule, &e.SourceID, &e.Status, &e.PostedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
