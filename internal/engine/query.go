package engine

import (
	"fmt"

	"github.com/roach88/rwamarket/internal/ledger"
)

// Pagination bounds for listing queries.
const (
	DefaultLimit = 10
	MaxLimit     = 30
)

// ClampLimit maps a requested page size to the served one: unspecified (0 or
// negative) becomes DefaultLimit and anything above MaxLimit becomes MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func registry(r Reader) (ledger.Registry, error) {
	reg, ok, err := r.Registry()
	if err != nil {
		return ledger.Registry{}, fmt.Errorf("read registry: %w", err)
	}
	if !ok {
		return ledger.Registry{}, ledger.NewError(ledger.ErrCodeNotInitialized, "registry does not exist")
	}
	return reg, nil
}

// Count returns the number of offerings ever listed, i.e. the last assigned
// offering id. Bought and withdrawn offerings are still counted.
func Count(r Reader) (uint64, error) {
	reg, err := registry(r)
	if err != nil {
		return 0, err
	}
	return reg.OfferingCounter, nil
}

// CurrentFee returns the registry fee.
func CurrentFee(r Reader) (ledger.Fee, error) {
	reg, err := registry(r)
	if err != nil {
		return ledger.Fee{}, err
	}
	return reg.Fee, nil
}

// Owner returns the registry owner.
func Owner(r Reader) (ledger.Identity, error) {
	reg, err := registry(r)
	if err != nil {
		return "", err
	}
	return reg.Owner, nil
}

// AllOffers returns a page of offerings with ids after startAfter.
func AllOffers(r Reader, startAfter string, limit int) ([]ledger.Offer, error) {
	offers, err := r.ScanOfferings(startAfter, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("scan offerings: %w", err)
	}
	return offers, nil
}

// AllRentals returns a page of rental snapshots with ids after startAfter.
func AllRentals(r Reader, startAfter string, limit int) ([]ledger.Rental, error) {
	rentals, err := r.ScanRentals(startAfter, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("scan rentals: %w", err)
	}
	return rentals, nil
}

// GetRental returns a rental joined with its offering. The reported amount
// is the offering's current amount, not the rental snapshot.
func GetRental(r Reader, id string) (ledger.RentalInfo, error) {
	rental, ok, err := r.Rental(id)
	if err != nil {
		return ledger.RentalInfo{}, fmt.Errorf("read rental %s: %w", id, err)
	}
	if !ok {
		return ledger.RentalInfo{}, ledger.NewError(ledger.ErrCodeRentalNotFound, fmt.Sprintf("rental %s not found", id))
	}
	off, ok, err := r.Offering(rental.OfferingID)
	if err != nil {
		return ledger.RentalInfo{}, fmt.Errorf("read offering %s: %w", rental.OfferingID, err)
	}
	if !ok {
		return ledger.RentalInfo{}, ledger.NewError(ledger.ErrCodeOrphanedRental,
			fmt.Sprintf("rental %s references removed offering %s", id, rental.OfferingID))
	}
	return ledger.RentalInfo{
		ID:         rental.ID,
		OfferingID: rental.OfferingID,
		Renter:     rental.Renter,
		StartTime:  rental.StartTime,
		EndTime:    rental.EndTime,
		Amount:     off.Amount,
	}, nil
}
