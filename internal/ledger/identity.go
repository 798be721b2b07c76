package ledger

import (
	"fmt"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxIdentityLen bounds identities in bytes after normalization.
const maxIdentityLen = 128

// Identity names an account or contract: a seller, buyer, renter, the
// registry owner, or the asset contract that custodies listed units.
type Identity string

// String implements fmt.Stringer.
func (id Identity) String() string {
	return string(id)
}

// IdentityValidator normalizes and validates external addresses before they
// reach the engine.
type IdentityValidator interface {
	Validate(raw string) (Identity, error)
}

// DefaultValidator accepts any NFC-normalized string of at most 128 bytes
// without whitespace or control characters.
type DefaultValidator struct{}

// Validate implements IdentityValidator.
func (DefaultValidator) Validate(raw string) (Identity, error) {
	return ValidateIdentity(raw)
}

// ValidateIdentity applies the DefaultValidator rules.
func ValidateIdentity(raw string) (Identity, error) {
	s := norm.NFC.String(raw)
	if s == "" {
		return "", NewInputError("identity is empty")
	}
	if len(s) > maxIdentityLen {
		return "", NewInputError(fmt.Sprintf("identity is longer than %d bytes", maxIdentityLen))
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", NewInputError(fmt.Sprintf("identity %q contains whitespace or control characters", s))
		}
	}
	return Identity(s), nil
}

// MustIdentity is ValidateIdentity for literals known to be valid.
func MustIdentity(raw string) Identity {
	id, err := ValidateIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}
