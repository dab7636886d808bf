package ap

import "github.com/shopspring/decimal"

var progress = map[BillStatus]int{
	StatusDraft:         0,
	StatusApproved:      1,
	StatusPartiallyPaid: 2,
	StatusPaid:          3,
}

// Terminal reports whether no further transition may leave s.
func (s BillStatus) Terminal() bool {
	return s == StatusPaid || s == StatusVoid
}

// Valid reports whether s is a known status.
func (s BillStatus) Valid() bool {
	_, ok := progress[s]
	return ok || s == StatusVoid
}

// CanTransition reports whether from may move to to. DRAFT → APPROVED →
// PARTIALLY_PAID → PAID, with VOID reachable from any non-terminal status.
func CanTransition(from, to BillStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == StatusVoid {
		return true
	}
	f, okFrom := progress[from]
	t, okTo := progress[to]
	return okFrom && okTo && t > f
}

// NextBillStatus derives a bill's status from its remaining balance after a
// posting. Statuses never regress and terminal statuses stay put.
func NextBillStatus(current BillStatus, balance, total decimal.Decimal) BillStatus {
	if current.Terminal() {
		return current
	}
	next := StatusApproved
	if !balance.IsPositive() {
		next = StatusPaid
	} else if balance.LessThan(total) {
		next = StatusPartiallyPaid
	}
	if CanTransition(current, next) {
		return next
	}
	return current
}
