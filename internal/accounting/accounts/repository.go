package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
	"github.com/prajwal-br31/bks-backend/internal/platform/db"
)

// Repository persists the chart of accounts.
type Repository interface {
	Create(ctx context.Context, a Account) (Account, error)
	Get(ctx context.Context, companyID, id uuid.UUID) (Account, error)
	GetByCode(ctx context.Context, companyID uuid.UUID, code string) (Account, error)
	List(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Account, error)
	SetActive(ctx context.Context, companyID, id uuid.UUID, active bool) (Account, error)
	FindActive(ctx context.Context, companyID uuid.UUID, filter SearchFilter) ([]Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, company_id, code, name, type, is_cash, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsCash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Create(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (id, company_id, code, name, type, is_cash, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+accountColumns, a.ID, a.CompanyID, a.Code, a.Name, a.Type, a.IsCash, a.IsActive)
	created, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_company_code") {
			return Account{}, fmt.Errorf("account code %s: %w", a.Code, shared.ErrDuplicate)
		}
		return Account{}, err
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account", id)
	}
	return a, err
}

func (r *repository) GetByCode(ctx context.Context, companyID uuid.UUID, code string) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account code", code)
	}
	return a, err
}

func (r *repository) List(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE company_id=$1 AND ($2 = '' OR type = $2) AND (NOT $3 OR is_active)
ORDER BY code`, companyID, string(filter.Type), filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repository) SetActive(ctx context.Context, companyID, id uuid.UUID, active bool) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING `+accountColumns, companyID, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account", id)
	}
	return a, err
}

func (r *repository) FindActive(ctx context.Context, companyID uuid.UUID, filter SearchFilter) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE company_id=$1 AND is_active AND type=$2
  AND ($3 = '' OR code ILIKE '%' || $3 || '%' ESCAPE '\')
  AND ($4 = '' OR name ILIKE '%' || $4 || '%' ESCAPE '\')
  AND (NOT $5 OR is_cash)
ORDER BY code`, companyID, string(filter.Type), escapeLike(filter.CodeHint), escapeLike(filter.NameHint), filter.CashOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Matches applies SearchFilter semantics to an in-memory account.
func (f SearchFilter) Matches(a Account) bool {
	if !a.IsActive || a.Type != f.Type {
		return false
	}
	if f.CashOnly && !a.IsCash {
		return false
	}
	if f.CodeHint != "" && !containsFold(a.Code, f.CodeHint) {
		return false
	}
	if f.NameHint != "" && !containsFold(a.Name, f.NameHint) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
