package money

import (
	"fmt"

	"github.com/seatswap/escrow/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// Money is an immutable monetary value in the smallest currency unit (e.g. cents).
// Equality is structural: two values are equal iff amount and currency match.
type Money struct {
	Amount   int64
	Currency string
}

func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns a zero value in the given currency.
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: currency}
}

// String returns a human-readable representation of the value.
func (m Money) String() string {
	whole := m.Amount / 100
	frac := m.Amount % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, m.Currency)
}

// Validate checks that the value is a usable price or fee.
func (m Money) Validate() error {
	if m.Amount < 0 {
		return errors.NewValidationError("amount", "cannot be negative")
	}
	if len(m.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Add returns m + other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, errors.ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other. Currencies must match.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, errors.ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Mul returns m multiplied by a whole quantity.
func (m Money) Mul(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Percent applies a percentage to the value, rounding half away from zero
// to the nearest minor unit. A 10% fee on 1000 minor units yields 100.
func (m Money) Percent(pct decimal.Decimal) Money {
	amount := decimal.NewFromInt(m.Amount).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	return Money{Amount: amount, Currency: m.Currency}
}
