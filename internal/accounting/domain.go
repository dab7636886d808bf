package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// SourceModule identifies which part of the system originated an entry.
type SourceModule string

const (
	SourceAR     SourceModule = "AR"
	SourceAP     SourceModule = "AP"
	SourceBank   SourceModule = "BANK"
	SourceManual SourceModule = "MANUAL"
	SourceSystem SourceModule = "SYSTEM"
)

// Valid reports whether m is a known source module.
func (m SourceModule) Valid() bool {
	switch m {
	case SourceAR, SourceAP, SourceBank, SourceManual, SourceSystem:
		return true
	}
	return false
}

// JournalStatus enumerates journal lifecycle values. The poster only
// produces POSTED entries; VOID is representable for imported history.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           uuid.UUID     `json:"id"`
	CompanyID    uuid.UUID     `json:"company_id"`
	Number       int64         `json:"number"`
	Date         time.Time     `json:"date"`
	Description  string        `json:"description"`
	SourceModule SourceModule  `json:"source_module"`
	SourceID     *uuid.UUID    `json:"source_id,omitempty"`
	Status       JournalStatus `json:"status"`
	PostedAt     *time.Time    `json:"posted_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Lines        []JournalLine `json:"lines,omitempty"`
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID             uuid.UUID       `json:"id"`
	JournalEntryID uuid.UUID       `json:"journal_entry_id"`
	LineNo         int             `json:"line_no"`
	AccountID      uuid.UUID       `json:"account_id"`
	Description    string          `json:"description,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	CompanyID    uuid.UUID
	Date         time.Time
	Description  string
	SourceModule SourceModule
	SourceID     *uuid.UUID
	Lines        []PostingLineInput
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	From         *time.Time
	To           *time.Time
	SourceModule SourceModule
	Limit        int
}

// Totals sums debits and credits exactly.
func (in PostingInput) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Totals sums the stored lines of the entry.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Validate ensures posting input meets minimum criteria. Shape problems are
// reported as *shared.ValidationError; unequal totals as ErrImbalancedEntry.
func (in PostingInput) Validate() error {
	if in.CompanyID == uuid.Nil {
		return shared.Invalid("company_id", "is required")
	}
	if in.Date.IsZero() {
		return shared.Invalid("date", "is required")
	}
	if !in.SourceModule.Valid() {
		return shared.Invalid("source_module", "unknown source module %q", in.SourceModule)
	}
	if len(in.Lines) == 0 {
		return shared.Invalid("lines", "at least one line is required")
	}
	for idx, line := range in.Lines {
		field := fmt.Sprintf("lines[%d]", idx)
		if line.AccountID == uuid.Nil {
			return shared.Invalid(field+".account_id", "is required")
		}
		if err := shared.CheckAmount(field+".debit", line.Debit); err != nil {
			return err
		}
		if err := shared.CheckAmount(field+".credit", line.Credit); err != nil {
			return err
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return shared.Invalid(field, "exactly one of debit or credit must be non-zero")
		}
	}
	debit, credit := in.Totals()
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s, credit %s", shared.ErrImbalancedEntry, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// Debit builds a debit line.
func Debit(accountID uuid.UUID, amount decimal.Decimal) PostingLineInput {
	return PostingLineInput{AccountID: accountID, Debit: amount, Credit: decimal.Zero}
}

// Credit builds a credit line.
func Credit(accountID uuid.UUID, amount decimal.Decimal) PostingLineInput {
	return PostingLineInput{AccountID: accountID, Debit: decimal.Zero, Credit: amount}
}
