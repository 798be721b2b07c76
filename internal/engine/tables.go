package engine

import "github.com/roach88/rwamarket/internal/ledger"

// Reader is the read side of the persisted layout: one scalar Registry, a
// string-keyed ordered Offering table and a string-keyed ordered Rental table.
//
// Scans return records with ids strictly greater than after ("" for the
// beginning), ascending by byte order, at most limit entries.
type Reader interface {
	Registry() (ledger.Registry, bool, error)
	Offering(id string) (ledger.Offering, bool, error)
	Rental(id string) (ledger.Rental, bool, error)
	ScanOfferings(after string, limit int) ([]ledger.Offer, error)
	ScanRentals(after string, limit int) ([]ledger.Rental, error)
}

// Tables is the full read/write surface used by Execute. Only the engine
// writes through it.
type Tables interface {
	Reader

	SaveRegistry(reg ledger.Registry) error
	SaveOffering(id string, off ledger.Offering) error
	RemoveOffering(id string) error
	SaveRental(r ledger.Rental) error
	RemoveRental(id string) error
}
