// Package money holds the fixed-point amount type used by the ledger.
//
// Amounts are kept as int64 minor units (two fractional digits) so repeated
// add/delete cycles never accumulate floating point drift. Decimal strings are
// parsed with shopspring/decimal and printed with the go-money formatter.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Fraction is the number of fractional digits kept for every amount.
const Fraction = 2

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more than 2 decimal places")
	ErrOutOfRange    = errors.New("amount out of range")
)

var (
	maxMajor  = decimal.New(math.MaxInt64, -Fraction)
	minMajor  = decimal.New(math.MinInt64, -Fraction)
	formatter = gomoney.NewFormatter(Fraction, ".", "", "", "1")
)

// Amount is a signed monetary value in minor units (1 = 0.01).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// Parse parses a decimal string such as "500", "12.5" or "-0.75".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// FromDecimal converts a major-unit decimal into an Amount.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Fraction)) {
		return 0, ErrTooPrecise
	}
	if d.GreaterThan(maxMajor) || d.LessThan(minMajor) {
		return 0, ErrOutOfRange
	}
	return Amount(d.Shift(Fraction).IntPart()), nil
}

// Minor returns the raw minor-unit value.
func (a Amount) Minor() int64 { return int64(a) }

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -Fraction) }

func (a Amount) Neg() Amount         { return -a }
func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }
func (a Amount) IsPositive() bool    { return a > 0 }
func (a Amount) IsZero() bool        { return a == 0 }

// Cmp returns -1, 0 or +1 comparing a to b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String formats the amount with two decimal places, e.g. "-200.00".
func (a Amount) String() string {
	return formatter.Format(int64(a))
}

// Signed formats the amount with an explicit sign, e.g. "+500.00".
// Zero is rendered without a sign.
func (a Amount) Signed() string {
	if a > 0 {
		return "+" + a.String()
	}
	return a.String()
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// MarshalJSON encodes the amount as a decimal string to keep it exact.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

var _ json.Marshaler = Amount(0)
var _ json.Unmarshaler = (*Amount)(nil)
