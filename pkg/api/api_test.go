package api

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_AmountKeepsTrailingZeros(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"two decimals survive", "125.00", "125.00"},
		{"whole number gains scale", "125", "125.00"},
		{"single decimal gains scale", "45.5", "45.50"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tc.raw)
			require.NoError(t, err)

			fields := TransactionRecord{Amount: amount, Description: "x"}.Fields()
			require.NotEmpty(t, fields)
			assert.Equal(t, "amount", fields[0].Key)
			assert.Equal(t, tc.want, fields[0].Value)
		})
	}
}

func TestFields_OrderAndOmission(t *testing.T) {
	rec := TransactionRecord{
		Amount:      decimal.RequireFromString("138.00"),
		Description: "Procreate, iCloud+",
		Category:    "Servicios",
		Payee:       "Apple",
		Account:     "BBVA Crédito",
	}

	fields := rec.Fields()
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}

	// Empty fields (tag, notes, source_account) drop out; the rest keep
	// their fixed order.
	assert.Equal(t, []string{"amount", "description", "category", "payee", "account"}, keys)
}

func TestIsTransfer(t *testing.T) {
	assert.False(t, TransactionRecord{Account: "BBVA Crédito"}.IsTransfer())
	assert.True(t, TransactionRecord{Account: "BBVA Crédito", SourceAccount: "BBVA Débito"}.IsTransfer())
}
