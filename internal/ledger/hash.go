package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTransfer = "rwamarket/transfer/v1"
	DomainState    = "rwamarket/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TransferID computes the content-addressed id of the transfer emitted at
// the given position by the command journaled at seq.
func TransferID(seq int64, position int, t Transfer) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"seq":      seq,
		"position": position,
		"transfer": t.Fields(),
	})
	if err != nil {
		return "", fmt.Errorf("TransferID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTransfer, canonical), nil
}

// Digest hashes a canonical value under a domain. Used to compare state
// snapshots during replay.
func Digest(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}
