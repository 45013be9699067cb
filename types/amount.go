package types

import (
	"encoding/json"
	"fmt"
)

// SunPerTRX is the number of sun in one TRX. All ledger amounts are
// carried in sun, the smallest unit, so arithmetic stays integer-only.
const SunPerTRX = 1_000_000

// Amount represents a ledger value in sun. No floating point is used
// anywhere in business logic; fractional TRX values only appear when
// formatting for humans.
//
// Examples:
//   - Sun(100_000) = 0.1 TRX
//   - TRX(5)       = 5 TRX (5_000_000 sun)
type Amount struct {
	Sun int64 `json:"sun"`
}

// Sun creates an Amount from a raw sun value.
func Sun(sun int64) Amount { return Amount{Sun: sun} }

// TRX creates an Amount from a whole-TRX value.
func TRX(trx int64) Amount { return Amount{Sun: trx * SunPerTRX} }

// ZeroAmount is the zero Amount value.
var ZeroAmount = Amount{}

// Arithmetic operations

// Add adds two Amounts.
func (a Amount) Add(other Amount) Amount {
	return Amount{Sun: a.Sun + other.Sun}
}

// Subtract subtracts another Amount.
func (a Amount) Subtract(other Amount) Amount {
	return Amount{Sun: a.Sun - other.Sun}
}

// Multiply multiplies the Amount by a quantity.
func (a Amount) Multiply(qty int64) Amount {
	return Amount{Sun: a.Sun * qty}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.Sun == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.Sun > 0 }

// Equal returns true if both Amounts are equal.
func (a Amount) Equal(other Amount) bool { return a.Sun == other.Sun }

// LessThan returns true if this Amount is less than other.
func (a Amount) LessThan(other Amount) bool { return a.Sun < other.Sun }

// AtLeast returns true if this Amount is greater than or equal to other.
func (a Amount) AtLeast(other Amount) bool { return a.Sun >= other.Sun }

// Formatting methods

// FormatTRX returns the TRX value without a unit suffix, e.g. "0.100000"
// for Sun(100_000). Trailing zeros are kept so values align in logs.
func (a Amount) FormatTRX() string {
	isNegative := a.Sun < 0
	abs := a.Sun
	if isNegative {
		abs = -abs
	}

	major := abs / SunPerTRX
	minor := abs % SunPerTRX

	result := fmt.Sprintf("%d.%06d", major, minor)
	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with the TRX unit.
// Example: "0.100000 TRX"
func (a Amount) String() string {
	return a.FormatTRX() + " TRX"
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Sun     int64  `json:"sun"`
		Display string `json:"display"`
	}{
		Sun:     a.Sun,
		Display: a.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts either the
// object form produced by MarshalJSON or a bare sun integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var obj struct {
		Sun int64 `json:"sun"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		a.Sun = obj.Sun
		return nil
	}

	var sun int64
	if err := json.Unmarshal(data, &sun); err != nil {
		return fmt.Errorf("amount: cannot unmarshal %s", data)
	}
	a.Sun = sun
	return nil
}

// Sum calculates the sum of multiple Amounts.
func Sum(values ...Amount) Amount {
	var total Amount
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
