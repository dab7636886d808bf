package ap

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus enumerates AP bill statuses.
type BillStatus string

const (
	StatusDraft         BillStatus = "DRAFT"
	StatusApproved      BillStatus = "APPROVED"
	StatusPartiallyPaid BillStatus = "PARTIALLY_PAID"
	StatusPaid          BillStatus = "PAID"
	StatusVoid          BillStatus = "VOID"
)

// DefaultCurrency is used when a bill does not name one.
const DefaultCurrency = "USD"

// Bill is a vendor bill. BalanceAmount only decreases through posted payments.
type Bill struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Number         string          `json:"number"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	DocDate        time.Time       `json:"doc_date"`
	DueDate        time.Time       `json:"due_date"`
	Currency       string          `json:"currency"`
	Status         BillStatus      `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Posted reports whether the bill already carries its journal entry.
func (b Bill) Posted() bool {
	return b.JournalEntryID != nil
}

// Payment is money paid to a vendor, optionally against one bill.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Number         string          `json:"number"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	BillID         *uuid.UUID      `json:"bill_id,omitempty"`
	DocDate        time.Time       `json:"doc_date"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Posted reports whether the payment already carries its journal entry.
func (p Payment) Posted() bool {
	return p.JournalEntryID != nil
}

// CreateBillInput for creating draft bills. An empty Number is generated.
type CreateBillInput struct {
	CompanyID   uuid.UUID       `json:"-" validate:"required"`
	Number      string          `json:"number" validate:"max=100"`
	VendorID    uuid.UUID       `json:"vendor_id" validate:"required"`
	DocDate     time.Time       `json:"doc_date" validate:"required"`
	DueDate     time.Time       `json:"due_date" validate:"required,gtefield=DocDate"`
	Currency    string          `json:"currency" validate:"omitempty,iso4217"`
	TotalAmount decimal.Decimal `json:"total_amount" validate:"money"`
}

// CreatePaymentInput for creating draft payments.
type CreatePaymentInput struct {
	CompanyID uuid.UUID       `json:"-" validate:"required"`
	Number    string          `json:"number" validate:"max=100"`
	VendorID  uuid.UUID       `json:"vendor_id" validate:"required"`
	BillID    *uuid.UUID      `json:"bill_id"`
	DocDate   time.Time       `json:"doc_date" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Method    string          `json:"method" validate:"max=50"`
}

// ListFilter narrows bill and payment listings.
type ListFilter struct {
	Status   BillStatus
	VendorID uuid.UUID
	Limit    int
}

// PostResult reports the journal entry behind a document. When AlreadyPosted
// is true nothing was written.
type PostResult struct {
	JournalEntryID uuid.UUID        `json:"journal_entry_id"`
	AlreadyPosted  bool             `json:"already_posted"`
	Bill           *Bill            `json:"bill,omitempty"`
	Payment        *Payment         `json:"payment,omitempty"`
	BillBalance    *decimal.Decimal `json:"bill_balance,omitempty"`
	BillStatus     BillStatus       `json:"bill_status,omitempty"`
}

// OpenSummary aggregates posted, unpaid bills as of a date.
type OpenSummary struct {
	OpenTotal    decimal.Decimal `json:"open_total"`
	OverdueTotal decimal.Decimal `json:"overdue_total"`
	OpenCount    int             `json:"open_count"`
}

// AgingBucket summarises open payables by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}
