package app

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/mappings"
	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/internal/analytics"
	"github.com/prajwal-br31/bks-backend/internal/ap"
	"github.com/prajwal-br31/bks-backend/internal/ar"
	"github.com/prajwal-br31/bks-backend/internal/observability"
	"github.com/prajwal-br31/bks-backend/internal/platform/cache"
)

// Stores groups the persistence ports the services are built on.
type Stores struct {
	Accounts accounts.Repository
	Mappings mappings.Repository
	Journals accounting.RepositoryPort
	AR       ar.RepositoryPort
	AP       ap.RepositoryPort
	Reports  reports.Repository
}

// PostgresStores binds every store to pool.
func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Accounts: accounts.NewRepository(pool),
		Mappings: mappings.NewRepository(pool),
		Journals: accounting.NewRepository(pool),
		AR:       ar.NewRepository(pool),
		AP:       ap.NewRepository(pool),
		Reports:  reports.NewRepository(pool),
	}
}

// ServiceDeps collects what NewServices needs. Cache and Metrics are optional.
type ServiceDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Cache   *cache.Versioned
	Stores  Stores
}

// Services is the wired application core.
type Services struct {
	Accounts  *accounts.Service
	Mappings  *mappings.Service
	Ledger    *accounting.Service
	AR        *ar.Service
	AP        *ap.Service
	Reports   *reports.Service
	Dashboard *analytics.Service
}

// NewServices builds the application services. The ledger bumps the report
// cache after each commit and reports posting outcomes to Metrics.
func NewServices(deps ServiceDeps) (*Services, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := deps.Stores
	if st.Accounts == nil || st.Mappings == nil || st.Journals == nil || st.AR == nil || st.AP == nil || st.Reports == nil {
		return nil, errors.New("app: every store must be provided")
	}
	policy := mappings.PolicyMappedThenSearch
	if deps.Config != nil {
		p, err := deps.Config.ResolutionPolicy()
		if err != nil {
			return nil, err
		}
		policy = p
	}

	accountsSvc := accounts.NewService(st.Accounts, logger)
	ledger := accounting.NewService(st.Journals, logger)
	var reportCache reports.Cache
	if deps.Cache != nil {
		ledger.WithInvalidator(deps.Cache)
		reportCache = deps.Cache
	}
	if deps.Metrics != nil {
		ledger.WithObserver(deps.Metrics)
	}
	resolver := mappings.NewResolver(st.Mappings, accountsSvc, policy)
	reportsSvc := reports.NewService(st.Reports, reportCache, logger)
	arSvc := ar.NewService(st.AR, ledger, resolver, logger)
	apSvc := ap.NewService(st.AP, ledger, resolver, logger)

	return &Services{
		Accounts:  accountsSvc,
		Mappings:  mappings.NewService(st.Mappings, accountsSvc, logger),
		Ledger:    ledger,
		AR:        arSvc,
		AP:        apSvc,
		Reports:   reportsSvc,
		Dashboard: analytics.NewService(reportsSvc, arSvc, apSvc, logger),
	}, nil
}

// RouterParams returns router parameters with a handler for every service.
func (s *Services) RouterParams(cfg *Config, logger *slog.Logger, metrics *observability.Metrics) RouterParams {
	return RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		AccountsHandler:  accounts.NewHandler(logger, s.Accounts),
		MappingsHandler:  mappings.NewHandler(logger, s.Mappings),
		JournalsHandler:  accounting.NewHandler(logger, s.Ledger),
		ARHandler:        ar.NewHandler(logger, s.AR),
		APHandler:        ap.NewHandler(logger, s.AP),
		ReportsHandler:   reports.NewHandler(logger, s.Reports),
		DashboardHandler: analytics.NewHandler(logger, s.Dashboard),
	}
}
