package reports

import (
	"github.com/shopspring/decimal"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
)

// Classify maps the counter-account of a cash movement to a category.
// Any non-cash asset counts as investing, receivables included.
func Classify(t accounts.AccountType, isCash bool) CashCategory {
	switch {
	case t == accounts.AccountTypeRevenue || t == accounts.AccountTypeExpense:
		return Operating
	case t == accounts.AccountTypeAsset && !isCash:
		return Investing
	case t == accounts.AccountTypeLiability || t == accounts.AccountTypeEquity:
		return Financing
	default:
		return Operating
	}
}

// BuildCashFlow categorises the cash delta of every entry in lines. lines must
// be ordered by entry and then line number; the first non-cash line of an
// entry decides its category. Closing cash is opening plus the category nets.
func BuildCashFlow(opening decimal.Decimal, lines []CashLine) CashFlow {
	flows := make(map[CashCategory]CategoryFlow, 3)
	for _, c := range CashCategories() {
		flows[c] = CategoryFlow{Inflows: decimal.Zero, Outflows: decimal.Zero, Net: decimal.Zero}
	}

	for start := 0; start < len(lines); {
		end := start
		for end < len(lines) && lines[end].EntryID == lines[start].EntryID {
			end++
		}
		applyEntry(flows, lines[start:end])
		start = end
	}

	net := decimal.Zero
	for c, f := range flows {
		f.Net = f.Inflows.Sub(f.Outflows)
		flows[c] = f
		net = net.Add(f.Net)
	}
	return CashFlow{
		OpeningCash:     opening,
		Categories:      flows,
		NetChangeInCash: net,
		ClosingCash:     opening.Add(net),
	}
}

func applyEntry(flows map[CashCategory]CategoryFlow, lines []CashLine) {
	delta := decimal.Zero
	category := Operating
	categorised := false
	for _, l := range lines {
		if l.IsCash {
			delta = delta.Add(l.Debit.Sub(l.Credit))
			continue
		}
		if !categorised {
			category = Classify(l.Type, l.IsCash)
			categorised = true
		}
	}
	if delta.IsZero() {
		return
	}
	f := flows[category]
	if delta.IsPositive() {
		f.Inflows = f.Inflows.Add(delta)
	} else {
		f.Outflows = f.Outflows.Add(delta.Neg())
	}
	flows[category] = f
}
