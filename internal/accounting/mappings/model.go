package mappings

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
)

// Role names a logical account used by subledger postings.
type Role string

const (
	RoleAR      Role = "AR"
	RoleAP      Role = "AP"
	RoleCash    Role = "CASH"
	RoleRevenue Role = "REVENUE"
	RoleExpense Role = "EXPENSE"
)

// Requirement describes which accounts can serve a role and how to search for one.
type Requirement struct {
	Type     accounts.AccountType
	CashOnly bool
	CodeHint string
	NameHint string
}

var requirements = map[Role]Requirement{
	RoleAR:      {Type: accounts.AccountTypeAsset, CodeHint: "AR", NameHint: "Receivable"},
	RoleAP:      {Type: accounts.AccountTypeLiability, CodeHint: "AP", NameHint: "Payable"},
	RoleCash:    {Type: accounts.AccountTypeAsset, CashOnly: true},
	RoleRevenue: {Type: accounts.AccountTypeRevenue},
	RoleExpense: {Type: accounts.AccountTypeExpense},
}

// Roles lists every role in a stable order.
func Roles() []Role {
	return []Role{RoleAR, RoleAP, RoleCash, RoleRevenue, RoleExpense}
}

// ParseRole normalises s into a known Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := requirements[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Requirement returns the account constraints for r.
func (r Role) Requirement() Requirement {
	return requirements[r]
}

// Accepts reports whether a satisfies the role's type and cash constraints.
func (req Requirement) Accepts(a accounts.Account) bool {
	if a.Type != req.Type || !a.IsActive {
		return false
	}
	return !req.CashOnly || a.IsCash
}

// Mapping binds a role to an account for one company.
type Mapping struct {
	CompanyID uuid.UUID `json:"company_id"`
	Role      Role      `json:"role"`
	AccountID uuid.UUID `json:"account_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
