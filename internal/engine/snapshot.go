package engine

import (
	"fmt"

	"github.com/roach88/rwamarket/internal/ledger"
)

// Snapshot is the complete persisted layout in id order. Two stores hold the
// same state exactly when their snapshots have the same Digest.
type Snapshot struct {
	Initialized bool
	Registry    ledger.Registry
	Offerings   []ledger.Offer
	Rentals     []ledger.Rental
}

// TakeSnapshot reads every record from r.
func TakeSnapshot(r Reader) (Snapshot, error) {
	reg, ok, err := r.Registry()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read registry: %w", err)
	}
	offers, err := r.ScanOfferings("", 0)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan offerings: %w", err)
	}
	rentals, err := r.ScanRentals("", 0)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan rentals: %w", err)
	}
	return Snapshot{Initialized: ok, Registry: reg, Offerings: offers, Rentals: rentals}, nil
}

// Fields returns the canonical representation of the snapshot.
func (s Snapshot) Fields() map[string]any {
	offers := make([]any, len(s.Offerings))
	for i, o := range s.Offerings {
		offers[i] = map[string]any{
			"id":         o.ID,
			"contract":   string(o.Contract),
			"seller":     string(o.Seller),
			"amount":     o.Amount.String(),
			"list_price": o.ListPrice.String(),
		}
	}
	rentals := make([]any, len(s.Rentals))
	for i, r := range s.Rentals {
		rentals[i] = map[string]any{
			"id":          r.ID,
			"offering_id": r.OfferingID,
			"renter":      string(r.Renter),
			"start_time":  r.StartTime,
			"end_time":    r.EndTime,
			"amount":      r.Amount.String(),
		}
	}
	return map[string]any{
		"initialized": s.Initialized,
		"registry": map[string]any{
			"offering_counter": s.Registry.OfferingCounter,
			"rental_counter":   s.Registry.RentalCounter,
			"fee":              s.Registry.Fee.String(),
			"owner":            string(s.Registry.Owner),
		},
		"offerings": offers,
		"rentals":   rentals,
	}
}

// Digest returns the content hash of the snapshot.
func (s Snapshot) Digest() (string, error) {
	return ledger.Digest(ledger.DomainState, s.Fields())
}
