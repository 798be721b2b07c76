package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// feeScale is the maximum number of fractional digits a Fee may carry.
const feeScale = 18

// feeContext multiplies exactly (amounts are at most 39 digits, fees at most
// 18 fractional digits) and truncates toward zero when rounding to integers.
var feeContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(100)
	c.Rounding = apd.RoundDown
	return c
}()

// Fee is a non-negative decimal fraction such as 0.02. It is stored as its
// reduced decimal text so that Fee values compare with == and copy freely.
// The zero value is a fee of 0.
type Fee struct {
	text string
}

// ParseFee parses a non-negative decimal fraction ("0.02", "1", "0.125").
// Values above 1 are representable; callers that pay out 1-fee reject them.
func ParseFee(s string) (Fee, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Fee{}, NewInputError(fmt.Sprintf("fee %q is not a decimal", s))
	}
	if d.Form != apd.Finite {
		return Fee{}, NewInputError(fmt.Sprintf("fee %q is not finite", s))
	}
	if d.Negative && !d.IsZero() {
		return Fee{}, NewInputError(fmt.Sprintf("fee %q is negative", s))
	}
	d.Negative = false
	d.Reduce(d)
	if d.Exponent < -feeScale {
		return Fee{}, NewInputError(fmt.Sprintf("fee %q has more than %d decimal places", s, feeScale))
	}
	return feeOf(d), nil
}

// MustParseFee is ParseFee for literals known to be valid.
func MustParseFee(s string) Fee {
	f, err := ParseFee(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FeePercent returns p/100.
func FeePercent(p uint64) Fee {
	d := apd.New(int64(p), -2)
	d.Reduce(d)
	return feeOf(d)
}

// feeOf keeps the zero fee as the zero value so that equal fees compare equal.
func feeOf(d *apd.Decimal) Fee {
	if d.IsZero() {
		return Fee{}
	}
	return Fee{text: d.Text('f')}
}

// String returns the reduced decimal text, "0" for the zero Fee.
func (f Fee) String() string {
	if f.text == "" {
		return "0"
	}
	return f.text
}

// Portion returns floor(a * f).
func (f Fee) Portion(a Amount) (Amount, error) {
	return scaleAmount(a, f.decimal())
}

// Net returns floor(a * (1 - f)). It fails with OVERFLOW when f > 1.
func (f Fee) Net(a Amount) (Amount, error) {
	var rest apd.Decimal
	if _, err := feeContext.Sub(&rest, apd.New(1, 0), f.decimal()); err != nil {
		return Amount{}, fmt.Errorf("net of fee %s: %w", f, err)
	}
	if rest.Sign() < 0 {
		return Amount{}, NewOverflowError(fmt.Sprintf("fee %s exceeds 1", f))
	}
	return scaleAmount(a, &rest)
}

// MarshalText implements encoding.TextMarshaler.
func (f Fee) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fee) UnmarshalText(text []byte) error {
	parsed, err := ParseFee(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON encodes the fee as a JSON string ("0.02").
func (f Fee) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts a JSON string holding a decimal fraction.
func (f *Fee) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewInputError(fmt.Sprintf("fee must be a string: %s", data))
	}
	return f.UnmarshalText([]byte(s))
}

func (f Fee) decimal() *apd.Decimal {
	d, _, err := apd.NewFromString(f.String())
	if err != nil {
		// text is only ever produced by ParseFee/FeePercent
		panic(fmt.Sprintf("ledger: corrupt fee %q: %v", f.text, err))
	}
	return d
}

// scaleAmount returns floor(a * frac) for a non-negative frac.
func scaleAmount(a Amount, frac *apd.Decimal) (Amount, error) {
	x, _, err := apd.NewFromString(a.String())
	if err != nil {
		return Amount{}, fmt.Errorf("scale amount %s: %w", a, err)
	}
	var product, whole apd.Decimal
	if _, err := feeContext.Mul(&product, x, frac); err != nil {
		return Amount{}, fmt.Errorf("scale amount %s: %w", a, err)
	}
	if _, err := feeContext.RoundToIntegralValue(&whole, &product); err != nil {
		return Amount{}, fmt.Errorf("scale amount %s: %w", a, err)
	}
	if whole.IsZero() {
		return Amount{}, nil
	}
	return ParseAmount(whole.Text('f'))
}
