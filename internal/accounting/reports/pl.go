package reports

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
)

// BuildProfitAndLoss buckets monthly activity into g-sized periods. Revenue
// nets credit minus debit, expense debit minus credit. Periods are the sorted
// buckets that carry activity; accounts are ordered by code.
func BuildProfitAndLoss(rows []PeriodActivity, g Granularity) ProfitAndLoss {
	byAccount := make(map[uuid.UUID]*ProfitAndLossAccount)
	periodSet := make(map[string]struct{})
	for _, row := range rows {
		var net decimal.Decimal
		switch row.Type {
		case accounts.AccountTypeRevenue:
			net = row.Credit.Sub(row.Debit)
		case accounts.AccountTypeExpense:
			net = row.Debit.Sub(row.Credit)
		default:
			continue
		}
		acc, ok := byAccount[row.AccountID]
		if !ok {
			acc = &ProfitAndLossAccount{
				AccountRef:    row.AccountRef,
				PeriodAmounts: make(map[string]decimal.Decimal),
				Total:         decimal.Zero,
			}
			byAccount[row.AccountID] = acc
		}
		key := PeriodKey(row.Month, g)
		periodSet[key] = struct{}{}
		acc.PeriodAmounts[key] = acc.PeriodAmounts[key].Add(net)
		acc.Total = acc.Total.Add(net)
	}

	out := ProfitAndLoss{
		Granularity: g,
		Periods:     make([]string, 0, len(periodSet)),
		Accounts:    make([]ProfitAndLossAccount, 0, len(byAccount)),
		Totals:      ProfitAndLossTotals{Revenue: decimal.Zero, Expenses: decimal.Zero},
	}
	for key := range periodSet {
		out.Periods = append(out.Periods, key)
	}
	sort.Strings(out.Periods)
	for _, acc := range byAccount {
		out.Accounts = append(out.Accounts, *acc)
		if acc.Type == accounts.AccountTypeRevenue {
			out.Totals.Revenue = out.Totals.Revenue.Add(acc.Total)
		} else {
			out.Totals.Expenses = out.Totals.Expenses.Add(acc.Total)
		}
	}
	sort.Slice(out.Accounts, func(i, j int) bool { return out.Accounts[i].Code < out.Accounts[j].Code })
	out.Totals.NetProfit = out.Totals.Revenue.Sub(out.Totals.Expenses)
	return out
}
