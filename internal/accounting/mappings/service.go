package mappings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// Service configures role mappings.
type Service struct {
	repo     Repository
	accounts AccountFinder
	logger   *slog.Logger
}

// NewService constructs the mapping service.
func NewService(repo Repository, finder AccountFinder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: finder, logger: logger}
}

// Assign maps role to accountID. The account must belong to the company, be
// active and satisfy the role's type, so misconfiguration fails here rather
// than at posting time.
func (s *Service) Assign(ctx context.Context, companyID uuid.UUID, role Role, accountID uuid.UUID) (Mapping, error) {
	req, ok := requirements[role]
	if !ok {
		return Mapping{}, shared.Invalid("role", "unknown role %q", role)
	}
	a, err := s.accounts.Get(ctx, companyID, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Mapping{}, shared.Invalid("account_id", "account %s does not exist for the company", accountID)
		}
		return Mapping{}, err
	}
	if !a.IsActive {
		return Mapping{}, shared.Invalid("account_id", "account %s is inactive", a.Code)
	}
	if a.Type != req.Type {
		return Mapping{}, shared.Invalid("account_id", "role %s requires a %s account, %s is %s", role, req.Type, a.Code, a.Type)
	}
	if req.CashOnly && !a.IsCash {
		return Mapping{}, shared.Invalid("account_id", "role %s requires a cash account", role)
	}
	m, err := s.repo.Upsert(ctx, Mapping{CompanyID: companyID, Role: role, AccountID: accountID})
	if err != nil {
		return Mapping{}, err
	}
	s.logger.Info("account role mapped",
		slog.String("company_id", companyID.String()),
		slog.String("role", string(role)),
		slog.String("account_code", a.Code))
	return m, nil
}

// List returns the company's configured mappings.
func (s *Service) List(ctx context.Context, companyID uuid.UUID) ([]Mapping, error) {
	return s.repo.List(ctx, companyID)
}
