package ar

import "github.com/shopspring/decimal"

var progress = map[InvoiceStatus]int{
	StatusDraft:         0,
	StatusSent:          1,
	StatusPartiallyPaid: 2,
	StatusPaid:          3,
}

// Terminal reports whether no further transition may leave s.
func (s InvoiceStatus) Terminal() bool {
	return s == StatusPaid || s == StatusVoid
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	_, ok := progress[s]
	return ok || s == StatusVoid
}

// CanTransition reports whether from may move to to. Statuses only advance
// towards PAID; VOID is reachable from any non-terminal status.
func CanTransition(from, to InvoiceStatus) bool {
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

// NextInvoiceStatus derives the status of an invoice that was just posted or
// paid from its remaining balance. It never leaves a terminal status and never
// moves an invoice back to a less-paid status.
func NextInvoiceStatus(current InvoiceStatus, balance, total decimal.Decimal) InvoiceStatus {
	if current.Terminal() {
		return current
	}
	var next InvoiceStatus
	switch {
	case !balance.IsPositive():
		next = StatusPaid
	case balance.LessThan(total):
		next = StatusPartiallyPaid
	default:
		next = StatusSent
	}
	if CanTransition(current, next) {
		return next
	}
	return current
}
