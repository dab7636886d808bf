package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
)

const (
	sectionAssets      = "Assets"
	sectionLiabilities = "Liabilities"
	sectionEquity      = "Equity"

	// CurrentEarningsName labels the computed equity row for unclosed profit.
	CurrentEarningsName = "Current Earnings"
)

// BuildBalanceSheet aggregates balances into assets, liabilities, and equity
// sections. Zero balances and empty sections are omitted. Revenue and expense
// balances are folded into a computed Current Earnings equity row, so the
// check pair is equal whenever the ledger balances.
func BuildBalanceSheet(balances []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Name: sectionAssets, Total: decimal.Zero}
	liabilities := BalanceSheetSection{Name: sectionLiabilities, Total: decimal.Zero}
	equity := BalanceSheetSection{Name: sectionEquity, Total: decimal.Zero}
	earnings := decimal.Zero

	for _, acc := range balances {
		balance := acc.Balance()
		if balance.IsZero() {
			continue
		}
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: balance}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(balance)
		case accounts.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(balance)
		case accounts.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(balance)
		case accounts.AccountTypeRevenue:
			earnings = earnings.Add(balance)
		case accounts.AccountTypeExpense:
			earnings = earnings.Sub(balance)
		}
	}
	for _, sec := range []*BalanceSheetSection{&assets, &liabilities, &equity} {
		sort.Slice(sec.Accounts, func(i, j int) bool { return sec.Accounts[i].Code < sec.Accounts[j].Code })
	}
	if !earnings.IsZero() {
		equity.Accounts = append(equity.Accounts, BalanceSheetAccount{Name: CurrentEarningsName, Balance: earnings})
		equity.Total = equity.Total.Add(earnings)
	}

	out := BalanceSheet{Sections: make([]BalanceSheetSection, 0, 3)}
	for _, sec := range []BalanceSheetSection{assets, liabilities, equity} {
		if len(sec.Accounts) > 0 {
			out.Sections = append(out.Sections, sec)
		}
	}
	out.Check = BalanceSheetCheck{
		Assets:                assets.Total,
		LiabilitiesPlusEquity: liabilities.Total.Add(equity.Total),
	}
	out.Balanced = out.Check.Assets.Equal(out.Check.LiabilitiesPlusEquity)
	return out
}
