package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetJournal(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error)
	ListJournals(ctx context.Context, companyID uuid.UUID, filter JournalFilter) ([]JournalEntry, error)
}

// Invalidator is told after every committed posting so derived report caches
// can be dropped.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// PostingObserver records posting outcomes, e.g. as Prometheus counters.
type PostingObserver interface {
	ObservePosting(module string, err error)
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service is the single place journal entries are created.
type Service struct {
	repo     RepositoryPort
	cache    Invalidator
	observer PostingObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithInvalidator registers the cache dropped after each commit.
func (s *Service) WithInvalidator(inv Invalidator) {
	s.cache = inv
}

// WithObserver registers a posting outcome observer.
func (s *Service) WithObserver(o PostingObserver) {
	s.observer = o
}

// PostJournal validates and persists a new journal entry in its own transaction.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.PostInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		s.Failed(ctx, input.SourceModule, err)
		return JournalEntry{}, err
	}
	s.Committed(ctx, entry)
	return entry, nil
}

// PostInTx validates input and writes the entry, its lines and its source
// link through tx. The caller owns the transaction and must call Committed
// after a successful commit or Failed otherwise.
func (s *Service) PostInTx(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := s.checkAccounts(ctx, tx, input); err != nil {
		return JournalEntry{}, err
	}

	postedAt := s.now().UTC()
	inserted, err := tx.InsertJournalEntry(ctx, JournalEntry{
		ID:           uuid.New(),
		CompanyID:    input.CompanyID,
		Date:         input.Date,
		Description:  input.Description,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Status:       JournalStatusPosted,
		PostedAt:     &postedAt,
	})
	if err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: insert entry: %w", err)
	}
	lines := toJournalLines(inserted.ID, input.Lines)
	if err := tx.InsertJournalLines(ctx, lines); err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: insert lines: %w", err)
	}
	if input.SourceID != nil {
		if err := tx.LinkSource(ctx, input.SourceModule, *input.SourceID, inserted.ID); err != nil {
			if errors.Is(err, ErrSourceConflict) {
				return JournalEntry{}, shared.ErrSourceAlreadyLinked
			}
			return JournalEntry{}, fmt.Errorf("accounting: link source: %w", err)
		}
	}
	inserted.Lines = lines
	return inserted, nil
}

// checkAccounts requires every line account to be an active account of the company.
func (s *Service) checkAccounts(ctx context.Context, tx TxRepository, input PostingInput) error {
	ids := make([]uuid.UUID, 0, len(input.Lines))
	seen := make(map[uuid.UUID]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	found, err := tx.LockAccounts(ctx, input.CompanyID, ids)
	if err != nil {
		return fmt.Errorf("accounting: lock accounts: %w", err)
	}
	byID := make(map[uuid.UUID]accounts.Account, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	for idx, line := range input.Lines {
		a, ok := byID[line.AccountID]
		field := fmt.Sprintf("lines[%d].account_id", idx)
		if !ok {
			return shared.Invalid(field, "account %s does not exist for the company", line.AccountID)
		}
		if !a.IsActive {
			return shared.Invalid(field, "account %s is inactive", a.Code)
		}
	}
	return nil
}

// Committed runs the post-commit side effects of a posting.
func (s *Service) Committed(ctx context.Context, entry JournalEntry) {
	s.observe(entry.SourceModule, nil)
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump failed", slog.String("journal_entry_id", entry.ID.String()), slog.Any("error", err))
		}
	}
	s.logger.Info("journal posted",
		slog.String("journal_entry_id", entry.ID.String()),
		slog.Int64("number", entry.Number),
		slog.String("company_id", entry.CompanyID.String()),
		slog.String("source_module", string(entry.SourceModule)),
		slog.Int("lines", len(entry.Lines)))
}

// Failed records a rolled-back posting.
func (s *Service) Failed(ctx context.Context, module SourceModule, err error) {
	s.observe(module, err)
	if errors.Is(err, shared.ErrImbalancedEntry) {
		s.logger.ErrorContext(ctx, "imbalanced journal rejected", slog.String("source_module", string(module)), slog.Any("error", err))
	}
}

func (s *Service) observe(module SourceModule, err error) {
	if s.observer != nil {
		s.observer.ObservePosting(string(module), err)
	}
}

// GetJournal returns one entry with its lines.
func (s *Service) GetJournal(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error) {
	return s.repo.GetJournal(ctx, companyID, id)
}

// ListJournals returns entry headers, newest first.
func (s *Service) ListJournals(ctx context.Context, companyID uuid.UUID, filter JournalFilter) ([]JournalEntry, error) {
	if filter.SourceModule != "" && !filter.SourceModule.Valid() {
		return nil, shared.Invalid("source_module", "unknown source module %q", filter.SourceModule)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, shared.Invalid("from", "must not be after to")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return s.repo.ListJournals(ctx, companyID, filter)
}

func toJournalLines(entryID uuid.UUID, lines []PostingLineInput) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			ID:             uuid.New(),
			JournalEntryID: entryID,
			LineNo:         idx + 1,
			AccountID:      line.AccountID,
			Description:    line.Description,
			Debit:          line.Debit,
			Credit:         line.Credit,
		})
	}
	return out
}
