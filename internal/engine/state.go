package engine

import (
	"maps"
	"slices"
	"strings"

	"github.com/roach88/rwamarket/internal/ledger"
)

// State is an in-memory implementation of Tables. The zero value is not
// usable; call NewState.
//
// State is not safe for concurrent use. The Processor owns one State per
// Machine and touches it only from its Run goroutine.
type State struct {
	registry    ledger.Registry
	initialized bool
	offerings   map[string]ledger.Offering
	rentals     map[string]ledger.Rental
}

// NewState returns an empty, uninitialized state.
func NewState() *State {
	return &State{
		offerings: make(map[string]ledger.Offering),
		rentals:   make(map[string]ledger.Rental),
	}
}

// Clone returns an independent copy. Records are plain values, so a shallow
// copy of each map is enough.
func (s *State) Clone() *State {
	return &State{
		registry:    s.registry,
		initialized: s.initialized,
		offerings:   maps.Clone(s.offerings),
		rentals:     maps.Clone(s.rentals),
	}
}

// Apply is the pure reducer: it returns the state after cmd together with
// the decided transfers and events. On error the original state is returned
// unchanged.
func Apply(s *State, cmd ledger.Command) (*State, Result, error) {
	next := s.Clone()
	res, err := Execute(next, cmd)
	if err != nil {
		return s, Result{}, err
	}
	return next, res, nil
}

// Registry implements Reader.
func (s *State) Registry() (ledger.Registry, bool, error) {
	return s.registry, s.initialized, nil
}

// Offering implements Reader.
func (s *State) Offering(id string) (ledger.Offering, bool, error) {
	off, ok := s.offerings[id]
	return off, ok, nil
}

// Rental implements Reader.
func (s *State) Rental(id string) (ledger.Rental, bool, error) {
	r, ok := s.rentals[id]
	return r, ok, nil
}

// ScanOfferings implements Reader.
func (s *State) ScanOfferings(after string, limit int) ([]ledger.Offer, error) {
	ids := scanKeys(s.offerings, after, limit)
	out := make([]ledger.Offer, 0, len(ids))
	for _, id := range ids {
		out = append(out, ledger.NewOffer(id, s.offerings[id]))
	}
	return out, nil
}

// ScanRentals implements Reader.
func (s *State) ScanRentals(after string, limit int) ([]ledger.Rental, error) {
	ids := scanKeys(s.rentals, after, limit)
	out := make([]ledger.Rental, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rentals[id])
	}
	return out, nil
}

// SaveRegistry implements Tables.
func (s *State) SaveRegistry(reg ledger.Registry) error {
	s.registry = reg
	s.initialized = true
	return nil
}

// SaveOffering implements Tables.
func (s *State) SaveOffering(id string, off ledger.Offering) error {
	s.offerings[id] = off
	return nil
}

// RemoveOffering implements Tables.
func (s *State) RemoveOffering(id string) error {
	delete(s.offerings, id)
	return nil
}

// SaveRental implements Tables.
func (s *State) SaveRental(r ledger.Rental) error {
	s.rentals[r.ID] = r
	return nil
}

// RemoveRental implements Tables.
func (s *State) RemoveRental(id string) error {
	delete(s.rentals, id)
	return nil
}

// scanKeys returns up to limit keys strictly after the cursor in byte order.
// A non-positive limit means no limit.
func scanKeys[V any](m map[string]V, after string, limit int) []string {
	keys := slices.SortedFunc(maps.Keys(m), strings.Compare)
	start := 0
	if after != "" {
		start, _ = slices.BinarySearch(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}
	keys = keys[start:]
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
