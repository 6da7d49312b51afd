package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("Acme Tower Lease"))
	assert.True(t, IsValidName("O'Neil & Sons, Inc."))
	assert.True(t, IsValidName("Building 7 (North)"))
	assert.False(t, IsValidName(""))
	assert.False(t, IsValidName("   "))
	assert.False(t, IsValidName("<script>"))
}

func TestIsValidPercent(t *testing.T) {
	assert.True(t, IsValidPercent(decimal.Zero))
	assert.True(t, IsValidPercent(decimal.RequireFromString("12.5")))
	assert.True(t, IsValidPercent(decimal.NewFromInt(5000)))
	assert.True(t, IsValidPercent(decimal.NewFromInt(10000)))
	assert.False(t, IsValidPercent(decimal.NewFromInt(10001)))
	assert.False(t, IsValidPercent(decimal.NewFromInt(-1)))
}

func TestIsValidAmount(t *testing.T) {
	assert.True(t, IsValidAmount(decimal.RequireFromString("60000")))
	assert.True(t, IsValidAmount(decimal.RequireFromString("10687.50")))
	assert.True(t, IsValidAmount(decimal.Zero))
	assert.False(t, IsValidAmount(decimal.RequireFromString("0.005")))
	assert.False(t, IsValidAmount(decimal.RequireFromString("-1")))
}

func TestIsValidPaymentCount(t *testing.T) {
	assert.True(t, IsValidPaymentCount(0))
	assert.True(t, IsValidPaymentCount(2))
	assert.False(t, IsValidPaymentCount(-1))
	assert.False(t, IsValidPaymentCount(601))
}
