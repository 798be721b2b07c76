package ledger

import (
	"fmt"
	"strings"
)

// maxDenomLen bounds denomination names.
const maxDenomLen = 128

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount Amount `json:"amount"`
}

// NewCoin builds a Coin from a uint64 amount.
func NewCoin(n uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: NewAmount(n)}
}

// ParseCoin parses the compact "<amount><denom>" form, e.g. "1000earth".
func ParseCoin(s string) (Coin, error) {
	s = strings.TrimSpace(s)
	digits := len(s) - len(strings.TrimLeft(s, "0123456789"))
	if digits == 0 {
		return Coin{}, NewInputError(fmt.Sprintf("coin %q must start with an amount", s))
	}
	amount, err := ParseAmount(s[:digits])
	if err != nil {
		return Coin{}, err
	}
	c := Coin{Denom: s[digits:], Amount: amount}
	if err := ValidateDenom(c.Denom); err != nil {
		return Coin{}, err
	}
	return c, nil
}

// MustParseCoin is ParseCoin for literals known to be valid.
func MustParseCoin(s string) Coin {
	c, err := ParseCoin(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ValidateDenom checks that a denomination is a plausible identifier:
// it starts with a letter and contains only letters, digits, '/', ':', '.', '_' or '-'.
func ValidateDenom(denom string) error {
	if denom == "" {
		return NewInputError("denom is empty")
	}
	if len(denom) > maxDenomLen {
		return NewInputError(fmt.Sprintf("denom %q is longer than %d bytes", denom, maxDenomLen))
	}
	for i, r := range denom {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || strings.ContainsRune("/:._-", r)):
		default:
			return NewInputError(fmt.Sprintf("denom %q has invalid character %q", denom, r))
		}
	}
	return nil
}

// String returns the compact "<amount><denom>" form.
func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

// Coins is the payment attached to a command. Order is preserved as given.
type Coins []Coin

// ParseCoins parses each element with ParseCoin.
func ParseCoins(ss []string) (Coins, error) {
	out := make(Coins, 0, len(ss))
	for _, s := range ss {
		if strings.TrimSpace(s) == "" {
			continue
		}
		c, err := ParseCoin(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Find returns the first coin of the given denomination. A payment without
// that denomination is an INSUFFICIENT_FUNDS error.
func (cs Coins) Find(denom string) (Coin, error) {
	for _, c := range cs {
		if c.Denom == denom {
			return c, nil
		}
	}
	return Coin{}, NewError(ErrCodeInsufficientFunds, fmt.Sprintf("no %s attached", denom))
}

// Strings returns the compact form of every coin.
func (cs Coins) Strings() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// String joins the compact forms with commas.
func (cs Coins) String() string {
	return strings.Join(cs.Strings(), ",")
}
