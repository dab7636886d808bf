package ar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting"
	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/mappings"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// Poster is the slice of the journal poster AR posts through.
type Poster interface {
	PostInTx(ctx context.Context, tx accounting.TxRepository, input accounting.PostingInput) (accounting.JournalEntry, error)
	Committed(ctx context.Context, entry accounting.JournalEntry)
	Failed(ctx context.Context, module accounting.SourceModule, err error)
}

// AccountResolver binds roles to accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, companyID uuid.UUID, role mappings.Role) (accounts.Account, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service handles AR business logic.
type Service struct {
	repo     RepositoryPort
	poster   Poster
	resolver AccountResolver
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, poster Poster, resolver AccountResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		poster:   poster,
		resolver: resolver,
		validate: shared.NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoice stores a draft invoice whose balance equals its total.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Invoice{}, err
	}
	if input.Currency == "" {
		input.Currency = DefaultCurrency
	}
	id := uuid.New()
	if input.Number == "" {
		input.Number = documentNumber("INV", input.DocDate, id)
	}
	inv, err := s.repo.CreateInvoice(ctx, Invoice{
		ID:            id,
		CompanyID:     input.CompanyID,
		Number:        input.Number,
		CustomerID:    input.CustomerID,
		DocDate:       dateOnly(input.DocDate),
		DueDate:       dateOnly(input.DueDate),
		Currency:      input.Currency,
		Status:        StatusDraft,
		TotalAmount:   input.TotalAmount,
		BalanceAmount: input.TotalAmount,
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.Info("invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("number", inv.Number),
		slog.String("total", inv.TotalAmount.StringFixed(2)))
	return inv, nil
}

// CreateReceipt stores a draft receipt. A linked invoice must exist for the
// same company and customer.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (Receipt, error) {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Receipt{}, err
	}
	if input.InvoiceID != nil {
		inv, err := s.repo.GetInvoice(ctx, input.CompanyID, *input.InvoiceID)
		if err != nil {
			return Receipt{}, err
		}
		if inv.CustomerID != input.CustomerID {
			return Receipt{}, shared.Invalid("invoice_id", "invoice %s belongs to another customer", inv.Number)
		}
	}
	id := uuid.New()
	if input.Number == "" {
		input.Number = documentNumber("RCT", input.DocDate, id)
	}
	rc, err := s.repo.CreateReceipt(ctx, Receipt{
		ID:         id,
		CompanyID:  input.CompanyID,
		Number:     input.Number,
		CustomerID: input.CustomerID,
		InvoiceID:  input.InvoiceID,
		DocDate:    dateOnly(input.DocDate),
		Amount:     input.Amount,
		Method:     input.Method,
	})
	if err != nil {
		return Receipt{}, err
	}
	s.logger.Info("receipt created",
		slog.String("receipt_id", rc.ID.String()),
		slog.String("amount", rc.Amount.StringFixed(2)))
	return rc, nil
}

// PostInvoice debits AR and credits revenue for the invoice total. Posting an
// invoice twice returns the existing entry with AlreadyPosted set.
func (s *Service) PostInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (PostResult, error) {
	var (
		result PostResult
		entry  accounting.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Posted() {
			result = PostResult{JournalEntryID: *inv.JournalEntryID, AlreadyPosted: true, Invoice: &inv}
			return nil
		}
		if inv.Status == StatusVoid {
			return shared.Invalid("status", "invoice %s is void", inv.Number)
		}
		arAccount, err := s.resolver.Resolve(ctx, companyID, mappings.RoleAR)
		if err != nil {
			return err
		}
		revenue, err := s.resolver.Resolve(ctx, companyID, mappings.RoleRevenue)
		if err != nil {
			return err
		}
		entry, err = s.poster.PostInTx(ctx, tx.Ledger(), accounting.PostingInput{
			CompanyID:    companyID,
			Date:         inv.DocDate,
			Description:  fmt.Sprintf("AR invoice %s", inv.Number),
			SourceModule: accounting.SourceAR,
			SourceID:     &inv.ID,
			Lines: []accounting.PostingLineInput{
				{AccountID: arAccount.ID, Debit: inv.TotalAmount, Credit: decimal.Zero, Description: "Accounts receivable"},
				{AccountID: revenue.ID, Debit: decimal.Zero, Credit: inv.TotalAmount, Description: "Revenue"},
			},
		})
		if err != nil {
			return err
		}
		status := NextInvoiceStatus(inv.Status, inv.BalanceAmount, inv.TotalAmount)
		if err := tx.MarkInvoicePosted(ctx, inv.ID, entry.ID, status); err != nil {
			return err
		}
		inv.JournalEntryID, inv.Status = &entry.ID, status
		result = PostResult{JournalEntryID: entry.ID, Invoice: &inv}
		return nil
	})
	if err != nil {
		s.poster.Failed(ctx, accounting.SourceAR, err)
		return PostResult{}, err
	}
	if result.AlreadyPosted {
		s.logger.Warn("invoice already posted",
			slog.String("invoice_id", invoiceID.String()),
			slog.String("journal_entry_id", result.JournalEntryID.String()))
		return result, nil
	}
	s.poster.Committed(ctx, entry)
	return result, nil
}

// PostReceipt debits cash and credits AR for the receipt amount and, when the
// receipt names an invoice, decrements that invoice's balance exactly once.
// The receipt row is locked before the invoice row.
func (s *Service) PostReceipt(ctx context.Context, companyID, receiptID uuid.UUID) (PostResult, error) {
	var (
		result PostResult
		entry  accounting.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rc, err := tx.LockReceipt(ctx, companyID, receiptID)
		if err != nil {
			return err
		}
		if rc.Posted() {
			result = PostResult{JournalEntryID: *rc.JournalEntryID, AlreadyPosted: true, Receipt: &rc}
			if rc.InvoiceID != nil {
				inv, err := tx.LockInvoice(ctx, companyID, *rc.InvoiceID)
				if err != nil {
					return err
				}
				result.InvoiceBalance, result.InvoiceStatus = &inv.BalanceAmount, inv.Status
			}
			return nil
		}

		var inv *Invoice
		if rc.InvoiceID != nil {
			locked, err := tx.LockInvoice(ctx, companyID, *rc.InvoiceID)
			if err != nil {
				return err
			}
			if locked.Status == StatusVoid {
				return shared.Invalid("invoice_id", "invoice %s is void", locked.Number)
			}
			if rc.Amount.GreaterThan(locked.BalanceAmount) {
				return shared.Invalid("amount", "receipt %s exceeds the open balance %s of invoice %s",
					rc.Amount.StringFixed(2), locked.BalanceAmount.StringFixed(2), locked.Number)
			}
			inv = &locked
		}

		cash, err := s.resolver.Resolve(ctx, companyID, mappings.RoleCash)
		if err != nil {
			return err
		}
		arAccount, err := s.resolver.Resolve(ctx, companyID, mappings.RoleAR)
		if err != nil {
			return err
		}
		entry, err = s.poster.PostInTx(ctx, tx.Ledger(), accounting.PostingInput{
			CompanyID:    companyID,
			Date:         rc.DocDate,
			Description:  fmt.Sprintf("AR receipt %s", rc.Number),
			SourceModule: accounting.SourceAR,
			SourceID:     &rc.ID,
			Lines: []accounting.PostingLineInput{
				{AccountID: cash.ID, Debit: rc.Amount, Credit: decimal.Zero, Description: "Cash received"},
				{AccountID: arAccount.ID, Debit: decimal.Zero, Credit: rc.Amount, Description: "Accounts receivable"},
			},
		})
		if err != nil {
			return err
		}
		if err := tx.MarkReceiptPosted(ctx, rc.ID, entry.ID); err != nil {
			return err
		}
		rc.JournalEntryID = &entry.ID
		result = PostResult{JournalEntryID: entry.ID, Receipt: &rc}

		if inv != nil {
			balance := inv.BalanceAmount.Sub(rc.Amount)
			status := NextInvoiceStatus(inv.Status, balance, inv.TotalAmount)
			if err := tx.UpdateInvoiceBalance(ctx, inv.ID, balance, status); err != nil {
				return err
			}
			result.InvoiceBalance, result.InvoiceStatus = &balance, status
		}
		return nil
	})
	if err != nil {
		s.poster.Failed(ctx, accounting.SourceAR, err)
		return PostResult{}, err
	}
	if result.AlreadyPosted {
		s.logger.Warn("receipt already posted",
			slog.String("receipt_id", receiptID.String()),
			slog.String("journal_entry_id", result.JournalEntryID.String()))
		return result, nil
	}
	s.poster.Committed(ctx, entry)
	if result.InvoiceBalance != nil {
		s.logger.Info("invoice balance updated",
			slog.String("invoice_id", rcInvoice(result).String()),
			slog.String("balance", result.InvoiceBalance.StringFixed(2)),
			slog.String("status", string(result.InvoiceStatus)))
	}
	return result, nil
}

// GetInvoice loads one invoice.
func (s *Service) GetInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	return s.repo.GetInvoice(ctx, companyID, id)
}

// GetReceipt loads one receipt.
func (s *Service) GetReceipt(ctx context.Context, companyID, id uuid.UUID) (Receipt, error) {
	return s.repo.GetReceipt(ctx, companyID, id)
}

// ListInvoices returns invoices, latest first.
func (s *Service) ListInvoices(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Invalid("status", "unknown invoice status %q", filter.Status)
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.ListInvoices(ctx, companyID, filter)
}

// ListReceipts returns receipts, latest first.
func (s *Service) ListReceipts(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Receipt, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.ListReceipts(ctx, companyID, filter)
}

// OpenSummary totals posted invoices that still carry a balance. Invoices due
// before asOf count as overdue.
func (s *Service) OpenSummary(ctx context.Context, companyID uuid.UUID, asOf time.Time) (OpenSummary, error) {
	invoices, err := s.repo.ListOpenInvoices(ctx, companyID)
	if err != nil {
		return OpenSummary{}, err
	}
	asOf = dateOnly(asOf)
	out := OpenSummary{OpenTotal: decimal.Zero, OverdueTotal: decimal.Zero}
	for _, inv := range invoices {
		out.OpenTotal = out.OpenTotal.Add(inv.BalanceAmount)
		out.OpenCount++
		if inv.DueDate.Before(asOf) {
			out.OverdueTotal = out.OverdueTotal.Add(inv.BalanceAmount)
		}
	}
	return out, nil
}

// CalculateAging groups open balances by days past due.
func (s *Service) CalculateAging(ctx context.Context, companyID uuid.UUID, asOf time.Time) (AgingBucket, error) {
	invoices, err := s.repo.ListOpenInvoices(ctx, companyID)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = dateOnly(asOf)
	bucket := AgingBucket{Current: decimal.Zero, Bucket30: decimal.Zero, Bucket60: decimal.Zero, Bucket90: decimal.Zero, Bucket120: decimal.Zero}
	for _, inv := range invoices {
		days := int(asOf.Sub(dateOnly(inv.DueDate)).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(inv.BalanceAmount)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(inv.BalanceAmount)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(inv.BalanceAmount)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(inv.BalanceAmount)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(inv.BalanceAmount)
		}
	}
	return bucket, nil
}

func rcInvoice(r PostResult) uuid.UUID {
	if r.Receipt != nil && r.Receipt.InvoiceID != nil {
		return *r.Receipt.InvoiceID
	}
	return uuid.Nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// documentNumber renders e.g. INV-20240115-1a2b3c4d.
func documentNumber(prefix string, date time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), strings.ToUpper(id.String()[:8]))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
