package ar

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates AR invoice statuses.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "DRAFT"
	StatusSent          InvoiceStatus = "SENT"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
	StatusVoid          InvoiceStatus = "VOID"
)

// DefaultCurrency is used when an invoice does not name one.
const DefaultCurrency = "USD"

// Invoice is a customer invoice. BalanceAmount only ever decreases, and only
// through posted receipts.
type Invoice struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Number         string          `json:"number"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	DocDate        time.Time       `json:"doc_date"`
	DueDate        time.Time       `json:"due_date"`
	Currency       string          `json:"currency"`
	Status         InvoiceStatus   `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Posted reports whether the invoice already carries its journal entry.
func (inv Invoice) Posted() bool {
	return inv.JournalEntryID != nil
}

// Receipt is money received from a customer, optionally against one invoice.
type Receipt struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Number         string          `json:"number"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	InvoiceID      *uuid.UUID      `json:"invoice_id,omitempty"`
	DocDate        time.Time       `json:"doc_date"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Posted reports whether the receipt already carries its journal entry.
func (r Receipt) Posted() bool {
	return r.JournalEntryID != nil
}

// CreateInvoiceInput for creating draft invoices. An empty Number is generated.
type CreateInvoiceInput struct {
	CompanyID   uuid.UUID       `json:"-" validate:"required"`
	Number      string          `json:"number" validate:"max=100"`
	CustomerID  uuid.UUID       `json:"customer_id" validate:"required"`
	DocDate     time.Time       `json:"doc_date" validate:"required"`
	DueDate     time.Time       `json:"due_date" validate:"required,gtefield=DocDate"`
	Currency    string          `json:"currency" validate:"omitempty,iso4217"`
	TotalAmount decimal.Decimal `json:"total_amount" validate:"money"`
}

// CreateReceiptInput for creating draft receipts.
type CreateReceiptInput struct {
	CompanyID  uuid.UUID       `json:"-" validate:"required"`
	Number     string          `json:"number" validate:"max=100"`
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	InvoiceID  *uuid.UUID      `json:"invoice_id"`
	DocDate    time.Time       `json:"doc_date" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"money"`
	Method     string          `json:"method" validate:"max=50"`
}

// ListFilter narrows invoice and receipt listings.
type ListFilter struct {
	Status     InvoiceStatus
	CustomerID uuid.UUID
	Limit      int
}

// PostResult reports the journal entry that represents a document. When
// AlreadyPosted is true nothing was written.
type PostResult struct {
	JournalEntryID uuid.UUID        `json:"journal_entry_id"`
	AlreadyPosted  bool             `json:"already_posted"`
	Invoice        *Invoice         `json:"invoice,omitempty"`
	Receipt        *Receipt         `json:"receipt,omitempty"`
	InvoiceBalance *decimal.Decimal `json:"invoice_balance,omitempty"`
	InvoiceStatus  InvoiceStatus    `json:"invoice_status,omitempty"`
}

// OpenSummary aggregates posted, unpaid invoices as of a date.
type OpenSummary struct {
	OpenTotal    decimal.Decimal `json:"open_total"`
	OverdueTotal decimal.Decimal `json:"overdue_total"`
	OpenCount    int             `json:"open_count"`
}

// AgingBucket summarises open balances by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}
