package ap

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

// Poster is the slice of the journal poster AP posts through.
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

// Service orchestrates AP workflows.
type Service struct {
	repo     RepositoryPort
	poster   Poster
	resolver AccountResolver
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new AP service.
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

// CreateBill stores a draft bill whose balance equals its total.
func (s *Service) CreateBill(ctx context.Context, input CreateBillInput) (Bill, error) {
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Bill{}, err
	}
	if input.Currency == "" {
		input.Currency = DefaultCurrency
	}
	id := uuid.New()
	if input.Number == "" {
		input.Number = documentNumber("BILL", input.DocDate, id)
	}
	bill, err := s.repo.CreateBill(ctx, Bill{
		ID:            id,
		CompanyID:     input.CompanyID,
		Number:        input.Number,
		VendorID:      input.VendorID,
		DocDate:       dateOnly(input.DocDate),
		DueDate:       dateOnly(input.DueDate),
		Currency:      input.Currency,
		Status:        StatusDraft,
		TotalAmount:   input.TotalAmount,
		BalanceAmount: input.TotalAmount,
	})
	if err != nil {
		return Bill{}, err
	}
	s.logger.Info("bill created",
		slog.String("bill_id", bill.ID.String()),
		slog.String("number", bill.Number),
		slog.String("total", bill.TotalAmount.StringFixed(2)))
	return bill, nil
}

// CreatePayment stores a draft payment. A linked bill must exist for the same
// company and vendor.
func (s *Service) CreatePayment(ctx context.Context, input CreatePaymentInput) (Payment, error) {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Payment{}, err
	}
	if input.BillID != nil {
		bill, err := s.repo.GetBill(ctx, input.CompanyID, *input.BillID)
		if err != nil {
			return Payment{}, err
		}
		if bill.VendorID != input.VendorID {
			return Payment{}, shared.Invalid("bill_id", "bill %s belongs to another vendor", bill.Number)
		}
	}
	id := uuid.New()
	if input.Number == "" {
		input.Number = documentNumber("PAY", input.DocDate, id)
	}
	p, err := s.repo.CreatePayment(ctx, Payment{
		ID:        id,
		CompanyID: input.CompanyID,
		Number:    input.Number,
		VendorID:  input.VendorID,
		BillID:    input.BillID,
		DocDate:   dateOnly(input.DocDate),
		Amount:    input.Amount,
		Method:    input.Method,
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.Info("payment created",
		slog.String("payment_id", p.ID.String()),
		slog.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}

// PostBill debits expense and credits AP for the bill total. Posting twice
// returns the existing entry with AlreadyPosted set.
func (s *Service) PostBill(ctx context.Context, companyID, billID uuid.UUID) (PostResult, error) {
	var (
		result PostResult
		entry  accounting.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.LockBill(ctx, companyID, billID)
		if err != nil {
			return err
		}
		if bill.Posted() {
			result = PostResult{JournalEntryID: *bill.JournalEntryID, AlreadyPosted: true, Bill: &bill}
			return nil
		}
		if bill.Status == StatusVoid {
			return shared.Invalid("status", "bill %s is void", bill.Number)
		}
		debit, credit, err := s.resolvePair(ctx, companyID, mappings.RoleExpense, mappings.RoleAP)
		if err != nil {
			return err
		}
		entry, err = s.poster.PostInTx(ctx, tx.Ledger(), accounting.PostingInput{
			CompanyID:    companyID,
			Date:         bill.DocDate,
			Description:  fmt.Sprintf("AP bill %s", bill.Number),
			SourceModule: accounting.SourceAP,
			SourceID:     &bill.ID,
			Lines: []accounting.PostingLineInput{
				{AccountID: debit.ID, Debit: bill.TotalAmount, Credit: decimal.Zero, Description: "Expense"},
				{AccountID: credit.ID, Debit: decimal.Zero, Credit: bill.TotalAmount, Description: "Accounts payable"},
			},
		})
		if err != nil {
			return err
		}
		status := NextBillStatus(bill.Status, bill.BalanceAmount, bill.TotalAmount)
		if err := tx.MarkBillPosted(ctx, bill.ID, entry.ID, status); err != nil {
			return err
		}
		bill.JournalEntryID, bill.Status = &entry.ID, status
		result = PostResult{JournalEntryID: entry.ID, Bill: &bill}
		return nil
	})
	return s.finish(ctx, "bill", billID, entry, result, err)
}

// PostPayment debits AP and credits cash for the payment amount and, when the
// payment names a bill, decrements that bill's balance exactly once. The
// payment row is locked before the bill row.
func (s *Service) PostPayment(ctx context.Context, companyID, paymentID uuid.UUID) (PostResult, error) {
	var (
		result PostResult
		entry  accounting.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockPayment(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		var bill *Bill
		if p.BillID != nil {
			locked, err := tx.LockBill(ctx, companyID, *p.BillID)
			if err != nil {
				return err
			}
			bill = &locked
		}
		if p.Posted() {
			result = PostResult{JournalEntryID: *p.JournalEntryID, AlreadyPosted: true, Payment: &p}
			if bill != nil {
				result.BillBalance, result.BillStatus = &bill.BalanceAmount, bill.Status
			}
			return nil
		}
		if bill != nil {
			if bill.Status == StatusVoid {
				return shared.Invalid("bill_id", "bill %s is void", bill.Number)
			}
			if p.Amount.GreaterThan(bill.BalanceAmount) {
				return shared.Invalid("amount", "payment %s exceeds the open balance %s of bill %s",
					p.Amount.StringFixed(2), bill.BalanceAmount.StringFixed(2), bill.Number)
			}
		}

		debit, credit, err := s.resolvePair(ctx, companyID, mappings.RoleAP, mappings.RoleCash)
		if err != nil {
			return err
		}
		entry, err = s.poster.PostInTx(ctx, tx.Ledger(), accounting.PostingInput{
			CompanyID:    companyID,
			Date:         p.DocDate,
			Description:  fmt.Sprintf("AP payment %s", p.Number),
			SourceModule: accounting.SourceAP,
			SourceID:     &p.ID,
			Lines: []accounting.PostingLineInput{
				{AccountID: debit.ID, Debit: p.Amount, Credit: decimal.Zero, Description: "Accounts payable"},
				{AccountID: credit.ID, Debit: decimal.Zero, Credit: p.Amount, Description: "Cash paid"},
			},
		})
		if err != nil {
			return err
		}
		if err := tx.MarkPaymentPosted(ctx, p.ID, entry.ID); err != nil {
			return err
		}
		p.JournalEntryID = &entry.ID
		result = PostResult{JournalEntryID: entry.ID, Payment: &p}
		if bill == nil {
			return nil
		}
		balance := bill.BalanceAmount.Sub(p.Amount)
		status := NextBillStatus(bill.Status, balance, bill.TotalAmount)
		if err := tx.UpdateBillBalance(ctx, bill.ID, balance, status); err != nil {
			return err
		}
		result.BillBalance, result.BillStatus = &balance, status
		return nil
	})
	result, err = s.finish(ctx, "payment", paymentID, entry, result, err)
	if err == nil && !result.AlreadyPosted && result.BillBalance != nil {
		s.logger.Info("bill balance updated",
			slog.String("bill_id", result.Payment.BillID.String()),
			slog.String("balance", result.BillBalance.StringFixed(2)),
			slog.String("status", string(result.BillStatus)))
	}
	return result, err
}

func (s *Service) resolvePair(ctx context.Context, companyID uuid.UUID, debitRole, creditRole mappings.Role) (accounts.Account, accounts.Account, error) {
	debit, err := s.resolver.Resolve(ctx, companyID, debitRole)
	if err != nil {
		return accounts.Account{}, accounts.Account{}, err
	}
	credit, err := s.resolver.Resolve(ctx, companyID, creditRole)
	if err != nil {
		return accounts.Account{}, accounts.Account{}, err
	}
	return debit, credit, nil
}

// finish runs the post-transaction side effects shared by both postings.
func (s *Service) finish(ctx context.Context, doc string, id uuid.UUID, entry accounting.JournalEntry, result PostResult, err error) (PostResult, error) {
	if err != nil {
		s.poster.Failed(ctx, accounting.SourceAP, err)
		return PostResult{}, err
	}
	if result.AlreadyPosted {
		s.logger.Warn(doc+" already posted",
			slog.String(doc+"_id", id.String()),
			slog.String("journal_entry_id", result.JournalEntryID.String()))
		return result, nil
	}
	s.poster.Committed(ctx, entry)
	return result, nil
}

// GetBill loads one bill.
func (s *Service) GetBill(ctx context.Context, companyID, id uuid.UUID) (Bill, error) {
	return s.repo.GetBill(ctx, companyID, id)
}

// GetPayment loads one payment.
func (s *Service) GetPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error) {
	return s.repo.GetPayment(ctx, companyID, id)
}

// ListBills returns bills, latest first.
func (s *Service) ListBills(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Bill, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Invalid("status", "unknown bill status %q", filter.Status)
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.ListBills(ctx, companyID, filter)
}

// ListPayments returns payments, latest first.
func (s *Service) ListPayments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Payment, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.ListPayments(ctx, companyID, filter)
}

// OpenSummary totals posted bills that still carry a balance.
func (s *Service) OpenSummary(ctx context.Context, companyID uuid.UUID, asOf time.Time) (OpenSummary, error) {
	bills, err := s.repo.ListOpenBills(ctx, companyID)
	if err != nil {
		return OpenSummary{}, err
	}
	asOf = dateOnly(asOf)
	out := OpenSummary{OpenTotal: decimal.Zero, OverdueTotal: decimal.Zero}
	for _, b := range bills {
		out.OpenTotal = out.OpenTotal.Add(b.BalanceAmount)
		out.OpenCount++
		if b.DueDate.Before(asOf) {
			out.OverdueTotal = out.OverdueTotal.Add(b.BalanceAmount)
		}
	}
	return out, nil
}

// CalculateAging groups open payables by days past due.
func (s *Service) CalculateAging(ctx context.Context, companyID uuid.UUID, asOf time.Time) (AgingBucket, error) {
	bills, err := s.repo.ListOpenBills(ctx, companyID)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = dateOnly(asOf)
	bucket := AgingBucket{Current: decimal.Zero, Bucket30: decimal.Zero, Bucket60: decimal.Zero, Bucket90: decimal.Zero, Bucket120: decimal.Zero}
	for _, b := range bills {
		days := int(asOf.Sub(dateOnly(b.DueDate)).Hours() / 24)
		dst := &bucket.Bucket120
		switch {
		case days <= 0:
			dst = &bucket.Current
		case days <= 30:
			dst = &bucket.Bucket30
		case days <= 60:
			dst = &bucket.Bucket60
		case days <= 90:
			dst = &bucket.Bucket90
		}
		*dst = dst.Add(b.BalanceAmount)
	}
	return bucket, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func documentNumber(prefix string, date time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), strings.ToUpper(id.String()[:8]))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
