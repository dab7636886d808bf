// Package ledgertest provides an in-memory ledger that satisfies the account,
// mapping, journal and report repositories, for tests that exercise posting
// end to end without PostgreSQL.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/mappings"
	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

type mappingKey struct {
	company uuid.UUID
	role    mappings.Role
}

type linkKey struct {
	module accounting.SourceModule
	source uuid.UUID
}

// Store is a goroutine-safe in-memory ledger.
type Store struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	accounts map[uuid.UUID]accounts.Account
	mappings map[mappingKey]mappings.Mapping
	entries  []accounting.JournalEntry
	links    map[linkKey]uuid.UUID
	seq      int64
	failNext error
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]accounts.Account),
		mappings: make(map[mappingKey]mappings.Mapping),
		links:    make(map[linkKey]uuid.UUID),
		now:      time.Now,
	}
}

// AddAccount inserts a, assigning an id when absent. The account is active
// unless the caller built it otherwise.
func (s *Store) AddAccount(a accounts.Account) accounts.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt, a.UpdatedAt = s.now(), s.now()
	s.accounts[a.ID] = a
	return a
}

// StandardChart seeds a minimal chart for companyID and returns it by code:
// 1000 Cash, 1100 Accounts Receivable, 1500 Equipment, 2000 Accounts Payable,
// 2500 Bank Loan, 3000 Owner Capital, 4000 Sales Revenue, 5000 Operating Expenses.
func (s *Store) StandardChart(companyID uuid.UUID) map[string]accounts.Account {
	chart := []accounts.Account{
		{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, IsCash: true},
		{Code: "1100", Name: "Accounts Receivable", Type: accounts.AccountTypeAsset},
		{Code: "1500", Name: "Equipment", Type: accounts.AccountTypeAsset},
		{Code: "2000", Name: "Accounts Payable", Type: accounts.AccountTypeLiability},
		{Code: "2500", Name: "Bank Loan", Type: accounts.AccountTypeLiability},
		{Code: "3000", Name: "Owner Capital", Type: accounts.AccountTypeEquity},
		{Code: "4000", Name: "Sales Revenue", Type: accounts.AccountTypeRevenue},
		{Code: "5000", Name: "Operating Expenses", Type: accounts.AccountTypeExpense},
	}
	out := make(map[string]accounts.Account, len(chart))
	for _, a := range chart {
		a.CompanyID = companyID
		a.IsActive = true
		out[a.Code] = s.AddAccount(a)
	}
	return out
}

// MapStandardRoles maps every role onto the StandardChart accounts of companyID.
func (s *Store) MapStandardRoles(companyID uuid.UUID, chart map[string]accounts.Account) {
	codes := map[mappings.Role]string{
		mappings.RoleCash:    "1000",
		mappings.RoleAR:      "1100",
		mappings.RoleAP:      "2000",
		mappings.RoleRevenue: "4000",
		mappings.RoleExpense: "5000",
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for role, code := range codes {
		s.mappings[mappingKey{companyID, role}] = mappings.Mapping{
			CompanyID: companyID,
			Role:      role,
			AccountID: chart[code].ID,
			UpdatedAt: s.now(),
		}
	}
}

// FailNextLines makes the next InsertJournalLines call return err.
func (s *Store) FailNextLines(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Entries returns the committed entries of companyID in posting order.
func (s *Store) Entries(companyID uuid.UUID) []accounting.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accounting.JournalEntry
	for _, e := range s.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out
}

// EntriesFor returns the committed entries produced for one source document.
func (s *Store) EntriesFor(module accounting.SourceModule, sourceID uuid.UUID) []accounting.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accounting.JournalEntry
	for _, e := range s.entries {
		if e.SourceModule == module && e.SourceID != nil && *e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out
}

// ForceEntry appends e as committed without any validation, for tests that
// need a corrupt ledger.
func (s *Store) ForceEntry(e accounting.JournalEntry) accounting.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Number = s.seq
	s.entries = append(s.entries, e)
	return e
}

// Begin opens a buffered transaction. Nothing is visible until Commit.
func (s *Store) Begin() *Tx {
	return &Tx{store: s}
}

// Tx buffers journal writes and implements accounting.TxRepository.
type Tx struct {
	store   *Store
	entries []accounting.JournalEntry
	lines   []accounting.JournalLine
	links   []linkKey
	targets []uuid.UUID
	done    bool
}

// LockAccounts returns the company's accounts among ids.
func (t *Tx) LockAccounts(_ context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]accounts.Account, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var out []accounts.Account
	for _, id := range ids {
		if a, ok := t.store.accounts[id]; ok && a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

// InsertJournalEntry numbers entry from the store sequence.
func (t *Tx) InsertJournalEntry(_ context.Context, entry accounting.JournalEntry) (accounting.JournalEntry, error) {
	t.store.mu.Lock()
	t.store.seq++
	entry.Number = t.store.seq
	entry.CreatedAt = t.store.now()
	t.store.mu.Unlock()
	t.entries = append(t.entries, entry)
	return entry, nil
}

// InsertJournalLines buffers lines.
func (t *Tx) InsertJournalLines(_ context.Context, lines []accounting.JournalLine) error {
	t.store.mu.Lock()
	err := t.store.failNext
	t.store.failNext = nil
	t.store.mu.Unlock()
	if err != nil {
		return err
	}
	t.lines = append(t.lines, lines...)
	return nil
}

// LinkSource reserves the source link, failing on an existing one.
func (t *Tx) LinkSource(_ context.Context, module accounting.SourceModule, sourceID, entryID uuid.UUID) error {
	key := linkKey{module: module, source: sourceID}
	t.store.mu.Lock()
	_, taken := t.store.links[key]
	t.store.mu.Unlock()
	if taken {
		return accounting.ErrSourceConflict
	}
	for _, k := range t.links {
		if k == key {
			return accounting.ErrSourceConflict
		}
	}
	t.links = append(t.links, key)
	t.targets = append(t.targets, entryID)
	return nil
}

// Commit publishes the buffered writes atomically.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("ledgertest: transaction already finished")
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range t.links {
		if _, taken := s.links[k]; taken {
			return accounting.ErrSourceConflict
		}
	}
	for i, k := range t.links {
		s.links[k] = t.targets[i]
	}
	for _, e := range t.entries {
		for _, l := range t.lines {
			if l.JournalEntryID == e.ID {
				e.Lines = append(e.Lines, l)
			}
		}
		sort.Slice(e.Lines, func(i, j int) bool { return e.Lines[i].LineNo < e.Lines[j].LineNo })
		s.entries = append(s.entries, e)
	}
	return nil
}

// Rollback discards the buffered writes.
func (t *Tx) Rollback() {
	t.done = true
	t.entries, t.lines, t.links, t.targets = nil, nil, nil, nil
}

// Journals exposes the store as accounting.RepositoryPort.
func (s *Store) Journals() accounting.RepositoryPort {
	return journals{s}
}

type journals struct{ s *Store }

func (j journals) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	j.s.txMu.Lock()
	defer j.s.txMu.Unlock()
	tx := j.s.Begin()
	if err := fn(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (j journals) GetJournal(_ context.Context, companyID, id uuid.UUID) (accounting.JournalEntry, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	for _, e := range j.s.entries {
		if e.ID == id && e.CompanyID == companyID {
			return e, nil
		}
	}
	return accounting.JournalEntry{}, shared.NotFound("journal entry", id)
}

func (j journals) ListJournals(_ context.Context, companyID uuid.UUID, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	var out []accounting.JournalEntry
	for _, e := range j.s.entries {
		if e.CompanyID != companyID {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		if filter.SourceModule != "" && e.SourceModule != filter.SourceModule {
			continue
		}
		e.Lines = nil
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date) {
			return out[a].Date.After(out[b].Date)
		}
		return out[a].Number > out[b].Number
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Accounts exposes the store as accounts.Repository.
func (s *Store) Accounts() accounts.Repository {
	return accountRepo{s}
}

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, a accounts.Account) (accounts.Account, error) {
	r.s.mu.Lock()
	for _, existing := range r.s.accounts {
		if existing.CompanyID == a.CompanyID && existing.Code == a.Code {
			r.s.mu.Unlock()
			return accounts.Account{}, fmt.Errorf("account code %s: %w", a.Code, shared.ErrDuplicate)
		}
	}
	r.s.mu.Unlock()
	return r.s.AddAccount(a), nil
}

func (r accountRepo) Get(_ context.Context, companyID, id uuid.UUID) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.CompanyID != companyID {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (r accountRepo) GetByCode(_ context.Context, companyID uuid.UUID, code string) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return accounts.Account{}, shared.NotFound("account code", code)
}

func (r accountRepo) List(_ context.Context, companyID uuid.UUID, filter accounts.ListFilter) ([]accounts.Account, error) {
	return r.s.selectAccounts(func(a accounts.Account) bool {
		return a.CompanyID == companyID &&
			(filter.Type == "" || a.Type == filter.Type) &&
			(!filter.ActiveOnly || a.IsActive)
	}), nil
}

func (r accountRepo) SetActive(_ context.Context, companyID, id uuid.UUID, active bool) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.CompanyID != companyID {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	a.IsActive = active
	a.UpdatedAt = r.s.now()
	r.s.accounts[id] = a
	return a, nil
}

func (r accountRepo) FindActive(_ context.Context, companyID uuid.UUID, filter accounts.SearchFilter) ([]accounts.Account, error) {
	return r.s.selectAccounts(func(a accounts.Account) bool {
		return a.CompanyID == companyID && filter.Matches(a)
	}), nil
}

func (s *Store) selectAccounts(keep func(accounts.Account) bool) []accounts.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accounts.Account
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Mappings exposes the store as mappings.Repository.
func (s *Store) Mappings() mappings.Repository {
	return mappingRepo{s}
}

type mappingRepo struct{ s *Store }

func (r mappingRepo) Get(_ context.Context, companyID uuid.UUID, role mappings.Role) (mappings.Mapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mappings[mappingKey{companyID, role}]
	if !ok {
		return mappings.Mapping{}, mappings.ErrNoMapping
	}
	return m, nil
}

func (r mappingRepo) Upsert(_ context.Context, m mappings.Mapping) (mappings.Mapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.UpdatedAt = r.s.now()
	r.s.mappings[mappingKey{m.CompanyID, m.Role}] = m
	return m, nil
}

func (r mappingRepo) List(_ context.Context, companyID uuid.UUID) ([]mappings.Mapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []mappings.Mapping
	for k, m := range r.s.mappings {
		if k.company == companyID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

// Reports exposes the store as reports.Repository.
func (s *Store) Reports() reports.Repository {
	return reportRepo{s}
}

type reportRepo struct{ s *Store }

func (r reportRepo) Snapshot(ctx context.Context, fn func(context.Context, reports.Reader) error) error {
	r.s.mu.Lock()
	snap := &snapshot{
		entries:  append([]accounting.JournalEntry(nil), r.s.entries...),
		accounts: make(map[uuid.UUID]accounts.Account, len(r.s.accounts)),
	}
	for id, a := range r.s.accounts {
		snap.accounts[id] = a
	}
	r.s.mu.Unlock()
	return fn(ctx, snap)
}

func (r reportRepo) Companies(context.Context) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, e := range r.s.entries {
		if _, ok := seen[e.CompanyID]; !ok {
			seen[e.CompanyID] = struct{}{}
			out = append(out, e.CompanyID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

type snapshot struct {
	entries  []accounting.JournalEntry
	accounts map[uuid.UUID]accounts.Account
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *snapshot) posted(companyID uuid.UUID, keep func(date time.Time) bool) []accounting.JournalEntry {
	var out []accounting.JournalEntry
	for _, e := range s.entries {
		if e.CompanyID == companyID && e.Status == accounting.JournalStatusPosted && keep(dateOnly(e.Date)) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func (s *snapshot) ref(id uuid.UUID) reports.AccountRef {
	a := s.accounts[id]
	return reports.AccountRef{AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, IsCash: a.IsCash}
}

func (s *snapshot) PeriodActivity(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]reports.PeriodActivity, error) {
	type key struct {
		account uuid.UUID
		month   time.Time
	}
	agg := make(map[key]*reports.PeriodActivity)
	for _, e := range s.posted(companyID, func(d time.Time) bool { return !d.Before(from) && !d.After(to) }) {
		month := time.Date(e.Date.Year(), e.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		for _, l := range e.Lines {
			t := s.accounts[l.AccountID].Type
			if t != accounts.AccountTypeRevenue && t != accounts.AccountTypeExpense {
				continue
			}
			k := key{l.AccountID, month}
			row, ok := agg[k]
			if !ok {
				row = &reports.PeriodActivity{AccountRef: s.ref(l.AccountID), Month: month, Debit: decimal.Zero, Credit: decimal.Zero}
				agg[k] = row
			}
			row.Debit = row.Debit.Add(l.Debit)
			row.Credit = row.Credit.Add(l.Credit)
		}
	}
	out := make([]reports.PeriodActivity, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out, nil
}

func (s *snapshot) Balances(_ context.Context, companyID uuid.UUID, asOf time.Time) ([]reports.AccountBalance, error) {
	sums := make(map[uuid.UUID]*reports.AccountBalance)
	for id, a := range s.accounts {
		if a.CompanyID == companyID {
			sums[id] = &reports.AccountBalance{AccountRef: s.ref(id), Debit: decimal.Zero, Credit: decimal.Zero}
		}
	}
	for _, e := range s.posted(companyID, func(d time.Time) bool { return !d.After(asOf) }) {
		for _, l := range e.Lines {
			if row, ok := sums[l.AccountID]; ok {
				row.Debit = row.Debit.Add(l.Debit)
				row.Credit = row.Credit.Add(l.Credit)
			}
		}
	}
	out := make([]reports.AccountBalance, 0, len(sums))
	for _, row := range sums {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *snapshot) CashBalance(_ context.Context, companyID uuid.UUID, before time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range s.posted(companyID, func(d time.Time) bool { return d.Before(before) }) {
		for _, l := range e.Lines {
			if s.accounts[l.AccountID].IsCash {
				total = total.Add(l.Debit).Sub(l.Credit)
			}
		}
	}
	return total, nil
}

func (s *snapshot) CashLines(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]reports.CashLine, error) {
	var out []reports.CashLine
	for _, e := range s.posted(companyID, func(d time.Time) bool { return !d.Before(from) && !d.After(to) }) {
		touchesCash := false
		for _, l := range e.Lines {
			touchesCash = touchesCash || s.accounts[l.AccountID].IsCash
		}
		if !touchesCash {
			continue
		}
		for _, l := range e.Lines {
			a := s.accounts[l.AccountID]
			out = append(out, reports.CashLine{
				EntryID:   e.ID,
				EntryDate: e.Date,
				LineNo:    l.LineNo,
				AccountID: a.ID,
				Type:      a.Type,
				IsCash:    a.IsCash,
				Debit:     l.Debit,
				Credit:    l.Credit,
			})
		}
	}
	return out, nil
}

func (s *snapshot) UnbalancedEntries(_ context.Context, companyID uuid.UUID, asOf time.Time) ([]reports.EntryImbalance, error) {
	var out []reports.EntryImbalance
	for _, e := range s.posted(companyID, func(d time.Time) bool { return !d.After(asOf) }) {
		debit, credit := e.Totals()
		if len(e.Lines) == 0 || !debit.Equal(credit) {
			out = append(out, reports.EntryImbalance{EntryID: e.ID, Number: e.Number, Date: e.Date, Debit: debit, Credit: credit})
		}
	}
	return out, nil
}
