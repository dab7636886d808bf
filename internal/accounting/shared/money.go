package shared

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits stored for every amount.
const MoneyScale = 2

// MaxAmount is the largest value a NUMERIC(18,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// WithinMoneyRange reports whether |d| fits the stored precision.
func WithinMoneyRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// HasMoneyScale reports whether d carries no more than two fractional digits.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// CheckAmount validates a non-negative money value for field.
func CheckAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Invalid(field, "must not be negative")
	}
	if !HasMoneyScale(d) {
		return Invalid(field, "must have at most %d decimal places", MoneyScale)
	}
	if !WithinMoneyRange(d) {
		return Invalid(field, "must not exceed %s", MaxAmount.StringFixed(MoneyScale))
	}
	return nil
}

// CheckPositiveAmount validates a strictly positive money value for field.
func CheckPositiveAmount(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return Invalid(field, "must be greater than zero")
	}
	return CheckAmount(field, d)
}

// Sum adds amounts exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
