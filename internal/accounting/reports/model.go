package reports

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
)

// Granularity selects the P&L bucket size.
type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Yearly    Granularity = "yearly"
)

// ParseGranularity maps the query value; empty means Monthly.
func ParseGranularity(s string) (Granularity, bool) {
	switch g := Granularity(s); g {
	case "":
		return Monthly, true
	case Monthly, Quarterly, Yearly:
		return g, true
	}
	return "", false
}

// PeriodKey renders the bucket label of t: YYYY-MM, YYYY-Qn or YYYY.
func PeriodKey(t time.Time, g Granularity) string {
	switch g {
	case Quarterly:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case Yearly:
		return fmt.Sprintf("%04d", t.Year())
	default:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
}

// AccountRef identifies the account a report row belongs to.
type AccountRef struct {
	AccountID uuid.UUID            `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	IsCash    bool                 `json:"-"`
}

// PeriodActivity is the posted debit and credit of one account in one calendar month.
type PeriodActivity struct {
	AccountRef
	Month  time.Time
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// CashLine is one line of a posted entry that touches at least one cash account.
type CashLine struct {
	EntryID   uuid.UUID
	EntryDate time.Time
	LineNo    int
	AccountID uuid.UUID
	Type      accounts.AccountType
	IsCash    bool
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// EntryImbalance is a posted entry whose lines do not balance.
type EntryImbalance struct {
	EntryID uuid.UUID       `json:"entry_id"`
	Number  int64           `json:"number"`
	Date    time.Time       `json:"date"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
}

// ProfitAndLossAccount is one revenue or expense account across periods.
type ProfitAndLossAccount struct {
	AccountRef
	PeriodAmounts map[string]decimal.Decimal `json:"period_amounts"`
	Total         decimal.Decimal            `json:"total"`
}

// ProfitAndLossTotals sums the report.
type ProfitAndLossTotals struct {
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetProfit decimal.Decimal `json:"net_profit"`
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	CompanyID   uuid.UUID              `json:"company_id"`
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	Granularity Granularity            `json:"granularity"`
	Periods     []string               `json:"periods"`
	Accounts    []ProfitAndLossAccount `json:"accounts"`
	Totals      ProfitAndLossTotals    `json:"totals"`
}

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Name     string                `json:"name"`
	Total    decimal.Decimal       `json:"total"`
	Accounts []BalanceSheetAccount `json:"accounts"`
}

// BalanceSheetCheck carries both sides of the accounting equation.
type BalanceSheetCheck struct {
	Assets                decimal.Decimal `json:"assets"`
	LiabilitiesPlusEquity decimal.Decimal `json:"liabilities_plus_equity"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	CompanyID uuid.UUID             `json:"company_id"`
	AsOf      time.Time             `json:"as_of"`
	Sections  []BalanceSheetSection `json:"sections"`
	Check     BalanceSheetCheck     `json:"check"`
	Balanced  bool                  `json:"balanced"`
}

// CashCategory classifies a cash movement.
type CashCategory string

const (
	Operating CashCategory = "OPERATING"
	Investing CashCategory = "INVESTING"
	Financing CashCategory = "FINANCING"
)

// CashCategories lists every category in presentation order.
func CashCategories() []CashCategory {
	return []CashCategory{Operating, Investing, Financing}
}

// CategoryFlow sums the movements of one category. Outflows are positive.
type CategoryFlow struct {
	Inflows  decimal.Decimal `json:"inflows"`
	Outflows decimal.Decimal `json:"outflows"`
	Net      decimal.Decimal `json:"net"`
}

// CashFlowPeriod is the reporting window.
type CashFlowPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CashFlow is the structured cash flow statement.
type CashFlow struct {
	CompanyID       uuid.UUID                     `json:"company_id"`
	Period          CashFlowPeriod                `json:"period"`
	OpeningCash     decimal.Decimal               `json:"opening_cash"`
	ClosingCash     decimal.Decimal               `json:"closing_cash"`
	Categories      map[CashCategory]CategoryFlow `json:"categories"`
	NetChangeInCash decimal.Decimal               `json:"net_change_in_cash"`
}

// IntegrityReport is the outcome of a ledger consistency scan.
type IntegrityReport struct {
	CompanyID   uuid.UUID        `json:"company_id"`
	AsOf        time.Time        `json:"as_of"`
	TotalDebit  decimal.Decimal  `json:"total_debit"`
	TotalCredit decimal.Decimal  `json:"total_credit"`
	Unbalanced  []EntryImbalance `json:"unbalanced"`
}

// OK reports whether the ledger passed every check.
func (r IntegrityReport) OK() bool {
	return r.TotalDebit.Equal(r.TotalCredit) && len(r.Unbalanced) == 0
}
