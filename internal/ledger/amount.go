package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// amountBits bounds every Amount to the range of a 128-bit unsigned integer.
const amountBits = 128

// Amount is an unsigned integer quantity of an asset or a denomination.
// The zero value is a valid zero amount. Amount is an immutable value type;
// every arithmetic method returns a new Amount.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 unsigned integer string.
// Signs, whitespace, and values above 2^128-1 are rejected.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, NewInputError("amount is empty")
	}
	if strings.TrimLeft(s, "0123456789") != "" {
		return Amount{}, NewInputError(fmt.Sprintf("amount %q is not an unsigned integer", s))
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, NewInputError(fmt.Sprintf("amount %q: %v", s, err))
	}
	if v.BitLen() > amountBits {
		return Amount{}, NewOverflowError(fmt.Sprintf("amount %q exceeds 128 bits", s))
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.v.Lt(&b.v)
}

// Mul returns a*b or an OVERFLOW error when the product does not fit.
func (a Amount) Mul(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.MulOverflow(&a.v, &b.v); overflow || out.v.BitLen() > amountBits {
		return Amount{}, NewOverflowError(fmt.Sprintf("%s * %s overflows", a, b))
	}
	return out, nil
}

// Add returns a+b or an OVERFLOW error when the sum does not fit.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow || out.v.BitLen() > amountBits {
		return Amount{}, NewOverflowError(fmt.Sprintf("%s + %s overflows", a, b))
	}
	return out, nil
}

// Sub returns a-b or an OVERFLOW error when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, NewOverflowError(fmt.Sprintf("%s - %s underflows", a, b))
	}
	return out, nil
}

// Uint64 returns a as a uint64 and whether it fit.
func (a Amount) Uint64() (uint64, bool) {
	n, overflow := a.v.Uint64WithOverflow()
	return n, !overflow
}

// String returns the base-10 representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a JSON string ("1000").
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON string holding a base-10 integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewInputError(fmt.Sprintf("amount must be a string: %s", data))
	}
	return a.UnmarshalText([]byte(s))
}
