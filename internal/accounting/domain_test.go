package accounting

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

func validInput() PostingInput {
	cash, sales := uuid.New(), uuid.New()
	return PostingInput{
		CompanyID:    uuid.New(),
		Date:         time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		SourceModule: SourceManual,
		Lines: []PostingLineInput{
			Debit(cash, decimal.RequireFromString("100.25")),
			Credit(sales, decimal.RequireFromString("100.25")),
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	require.NoError(t, validInput().Validate())

	cases := map[string]struct {
		mutate func(*PostingInput)
		field  string
	}{
		"missing company": {func(in *PostingInput) { in.CompanyID = uuid.Nil }, "company_id"},
		"missing date":    {func(in *PostingInput) { in.Date = time.Time{} }, "date"},
		"unknown module":  {func(in *PostingInput) { in.SourceModule = "POS" }, "source_module"},
		"no lines":        {func(in *PostingInput) { in.Lines = nil }, "lines"},
		"both sides": {func(in *PostingInput) {
			in.Lines[0].Credit = decimal.NewFromInt(1)
		}, "lines[0]"},
		"zero line": {func(in *PostingInput) {
			in.Lines[1].Credit = decimal.Zero
		}, "lines[1]"},
		"negative": {func(in *PostingInput) {
			in.Lines[0].Debit = decimal.NewFromInt(-5)
		}, "lines[0].debit"},
		"three decimals": {func(in *PostingInput) {
			in.Lines[0].Debit = decimal.RequireFromString("1.001")
		}, "lines[0].debit"},
		"beyond column precision": {func(in *PostingInput) {
			in.Lines[0].Debit = decimal.RequireFromString("100000000000000000")
			in.Lines[1].Credit = decimal.RequireFromString("100000000000000000")
		}, "lines[0].debit"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			err := in.Validate()
			require.ErrorIs(t, err, shared.ErrValidation)
			var verr *shared.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Field, tc.field)
		})
	}
}

func TestPostingInputValidateImbalanced(t *testing.T) {
	in := validInput()
	in.Lines[1].Credit = decimal.RequireFromString("100.24")
	err := in.Validate()
	require.ErrorIs(t, err, shared.ErrImbalancedEntry)
	assert.NotErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "100.25")
}

func TestPostingInputTotalsAreExact(t *testing.T) {
	in := validInput()
	in.Lines = nil
	account := uuid.New()
	for i := 0; i < 10; i++ {
		in.Lines = append(in.Lines, Debit(account, decimal.RequireFromString("0.10")))
	}
	in.Lines = append(in.Lines, Credit(uuid.New(), decimal.NewFromInt(1)))
	require.NoError(t, in.Validate())
	debit, credit := in.Totals()
	assert.True(t, debit.Equal(credit))
}
