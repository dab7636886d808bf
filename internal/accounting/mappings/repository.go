package mappings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoMapping indicates the company has not configured the role.
var ErrNoMapping = errors.New("mappings: role not mapped")

// Repository persists role mappings.
type Repository interface {
	Get(ctx context.Context, companyID uuid.UUID, role Role) (Mapping, error)
	Upsert(ctx context.Context, m Mapping) (Mapping, error)
	List(ctx context.Context, companyID uuid.UUID) ([]Mapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves the mapping for role, returning ErrNoMapping when absent.
func (r *repository) Get(ctx context.Context, companyID uuid.UUID, role Role) (Mapping, error) {
	var m Mapping
	err := r.db.QueryRow(ctx, `SELECT company_id, role, account_id, updated_at FROM account_role_mappings WHERE company_id=$1 AND role=$2`, companyID, role).
		Scan(&m.CompanyID, &m.Role, &m.AccountID, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, ErrNoMapping
		}
		return Mapping{}, err
	}
	return m, nil
}

func (r *repository) Upsert(ctx context.Context, m Mapping) (Mapping, error) {
	var out Mapping
	err := r.db.QueryRow(ctx, `INSERT INTO account_role_mappings (company_id, role, account_id) VALUES ($1,$2,$3)
ON CONFLICT (company_id, role) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()
RETURNING company_id, role, account_id, updated_at`, m.CompanyID, m.Role, m.AccountID).
		Scan(&out.CompanyID, &out.Role, &out.AccountID, &out.UpdatedAt)
	return out, err
}

func (r *repository) List(ctx context.Context, companyID uuid.UUID) ([]Mapping, error) {
	rows, err := r.db.Query(ctx, `SELECT company_id, role, account_id, updated_at FROM account_role_mappings WHERE company_id=$1 ORDER BY role`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.CompanyID, &m.Role, &m.AccountID, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
