package money

import (
	"testing"

	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Money
		wantErr bool
	}{
		{"valid", New(1000, "BRL"), false},
		{"zero is valid", Zero("BRL"), false},
		{"negative amount", New(-1, "BRL"), true},
		{"bad currency", New(100, "REAL"), true},
		{"empty currency", New(100, ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	sum, err := New(1000, "BRL").Add(New(250, "BRL"))
	require.NoError(t, err)
	assert.Equal(t, New(1250, "BRL"), sum)

	_, err = New(1000, "BRL").Add(New(250, "USD"))
	assert.ErrorIs(t, err, domainErrors.ErrCurrencyMismatch)
}

func TestSub(t *testing.T) {
	diff, err := New(1000, "BRL").Sub(New(250, "BRL"))
	require.NoError(t, err)
	assert.Equal(t, New(750, "BRL"), diff)

	_, err = New(1000, "BRL").Sub(New(250, "USD"))
	assert.Error(t, err)
}

func TestMul(t *testing.T) {
	assert.Equal(t, New(3000, "BRL"), New(1000, "BRL").Mul(3))
	assert.Equal(t, Zero("BRL"), New(1000, "BRL").Mul(0))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    string
		want   int64
	}{
		{"10 percent of 1000", 1000, "10", 100},
		{"5 percent of 1000", 1000, "5", 50},
		{"zero percent", 1000, "0", 0},
		{"rounds half up", 1001, "2.5", 25}, // 25.025 -> 25
		{"rounds up past half", 1000, "2.55", 26}, // 25.5 -> 26
		{"fractional percent", 15000, "3.33", 500}, // 499.5 -> 500
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, err := decimal.NewFromString(tt.pct)
			require.NoError(t, err)
			got := New(tt.amount, "BRL").Percent(pct)
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "BRL", got.Currency)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "12.34 BRL", New(1234, "BRL").String())
	assert.Equal(t, "0.05 BRL", New(5, "BRL").String())
	assert.Equal(t, "0.00 BRL", Zero("BRL").String())
}
