package ar

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]InvoiceStatus{
		{StatusDraft, StatusSent},
		{StatusDraft, StatusPartiallyPaid},
		{StatusDraft, StatusPaid},
		{StatusSent, StatusPartiallyPaid},
		{StatusSent, StatusPaid},
		{StatusPartiallyPaid, StatusPaid},
		{StatusDraft, StatusVoid},
		{StatusSent, StatusVoid},
		{StatusPartiallyPaid, StatusVoid},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
	denied := [][2]InvoiceStatus{
		{StatusSent, StatusDraft},
		{StatusPartiallyPaid, StatusSent},
		{StatusPaid, StatusPartiallyPaid},
		{StatusPaid, StatusVoid},
		{StatusVoid, StatusDraft},
		{StatusSent, StatusSent},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestNextInvoiceStatus(t *testing.T) {
	total := decimal.NewFromInt(100)
	cases := []struct {
		current InvoiceStatus
		balance string
		want    InvoiceStatus
	}{
		{StatusDraft, "100", StatusSent},
		{StatusDraft, "40", StatusPartiallyPaid},
		{StatusDraft, "0", StatusPaid},
		{StatusSent, "100", StatusSent},
		{StatusSent, "0.01", StatusPartiallyPaid},
		{StatusSent, "0", StatusPaid},
		{StatusPartiallyPaid, "100", StatusPartiallyPaid},
		{StatusPartiallyPaid, "0", StatusPaid},
		{StatusPaid, "0", StatusPaid},
		{StatusPaid, "100", StatusPaid},
		{StatusVoid, "0", StatusVoid},
	}
	for _, tc := range cases {
		got := NextInvoiceStatus(tc.current, decimal.RequireFromString(tc.balance), total)
		assert.Equal(t, tc.want, got, "%s with balance %s", tc.current, tc.balance)
	}
}
