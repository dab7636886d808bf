package accounts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// Service manages the per-company chart of accounts.
type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the registry service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: shared.NewValidator(), logger: logger}
}

// Create registers a new active account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Account{}, err
	}
	created, err := s.repo.Create(ctx, Account{
		ID:        uuid.New(),
		CompanyID: in.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		IsCash:    in.IsCash,
		IsActive:  true,
	})
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account created",
		slog.String("company_id", created.CompanyID.String()),
		slog.String("code", created.Code),
		slog.String("type", string(created.Type)))
	return created, nil
}

// Get loads one account of the company.
func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns the company's accounts ordered by code.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Account, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, shared.Invalid("type", "unknown account type %q", filter.Type)
	}
	return s.repo.List(ctx, companyID, filter)
}

// Deactivate hides the account from new postings. History is untouched.
func (s *Service) Deactivate(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	return s.setActive(ctx, companyID, id, false)
}

// Activate re-enables a previously deactivated account.
func (s *Service) Activate(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	return s.setActive(ctx, companyID, id, true)
}

func (s *Service) setActive(ctx context.Context, companyID, id uuid.UUID, active bool) (Account, error) {
	a, err := s.repo.SetActive(ctx, companyID, id, active)
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account activation changed",
		slog.String("account_id", id.String()),
		slog.Bool("active", active))
	return a, nil
}

// FindActive lists active accounts matching filter.
func (s *Service) FindActive(ctx context.Context, companyID uuid.UUID, filter SearchFilter) ([]Account, error) {
	return s.repo.FindActive(ctx, companyID, filter)
}

// Seed creates every chart account whose code is not yet registered and
// returns all chart accounts keyed by code.
func (s *Service) Seed(ctx context.Context, companyID uuid.UUID, chart Chart) (map[string]Account, error) {
	out := make(map[string]Account, len(chart.Accounts))
	created := 0
	for _, def := range chart.Accounts {
		a, err := s.Create(ctx, CreateInput{
			CompanyID: companyID,
			Code:      def.Code,
			Name:      def.Name,
			Type:      def.Type,
			IsCash:    def.Cash,
		})
		if errors.Is(err, shared.ErrDuplicate) {
			a, err = s.repo.GetByCode(ctx, companyID, def.Code)
		} else if err == nil {
			created++
		}
		if err != nil {
			return nil, err
		}
		out[def.Code] = a
	}
	s.logger.Info("chart seeded",
		slog.String("company_id", companyID.String()),
		slog.Int("created", created),
		slog.Int("total", len(chart.Accounts)))
	return out, nil
}
