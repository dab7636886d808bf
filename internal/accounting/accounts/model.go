package accounts

import (
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account models a chart of accounts node. Identity never changes after
// creation; only IsActive may be toggled.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	IsCash    bool        `json:"is_cash"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	CompanyID uuid.UUID   `json:"-" validate:"required"`
	Code      string      `json:"code" validate:"required,max=32"`
	Name      string      `json:"name" validate:"required,max=200"`
	Type      AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	IsCash    bool        `json:"is_cash"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Type       AccountType
	ActiveOnly bool
}

// SearchFilter selects active accounts of one type by case-insensitive
// substring hints. Empty hints match everything.
type SearchFilter struct {
	Type     AccountType
	CodeHint string
	NameHint string
	CashOnly bool
}
