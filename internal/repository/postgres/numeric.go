package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Percentages travel to and from NUMERIC columns as text to keep exact
// decimal semantics.

func parsePercent(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse percent %q: %w", s, err)
	}
	return d, nil
}

func parseNullablePercent(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parsePercent(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
