// Package money represents monetary amounts as integer minor units (cents)
// so that financial arithmetic is exact. Budgets, titles and provisions all
// reconcile to the cent; floating point is never used for amounts.
package money

import (
	"fmt"
)

// Cents is an amount in the currency's smallest unit.
type Cents int64

// FromUnits builds an amount from whole units and remaining cents,
// e.g. FromUnits(1200, 50) == R$ 1200,50.
func FromUnits(units int64, cents int64) Cents {
	return Cents(units*100 + cents)
}

// String formats the amount with two decimal places.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Split divides total into n shares rounded down, with the final share
// absorbing the remainder so the shares always sum back to total.
// Split(10000, 3) -> [3333 3333 3334].
func Split(total Cents, n int) ([]Cents, error) {
	if n < 1 {
		return nil, fmt.Errorf("split count must be >= 1, got %d", n)
	}
	if total < 0 {
		return nil, fmt.Errorf("cannot split negative amount %s", total)
	}
	share := total / Cents(n)
	shares := make([]Cents, n)
	for i := range shares {
		shares[i] = share
	}
	shares[n-1] = total - share*Cents(n-1)
	return shares, nil
}

// Percent applies an integer percentage, rounding down to the cent.
func Percent(amount Cents, pct int) Cents {
	return amount * Cents(pct) / 100
}

// Sum adds a list of amounts.
func Sum(amounts []Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
