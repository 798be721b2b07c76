package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tables implements engine.Tables over SQL. Inside Apply it is bound to the
// command's transaction; for queries it is bound to the database.
type tables struct {
	ctx context.Context
	q   querier
}

var _ engine.Tables = (*tables)(nil)

// Reader returns a read-only view of the current persisted state.
func (s *Store) Reader(ctx context.Context) engine.Reader {
	return &tables{ctx: ctx, q: s.db}
}

// toDB and fromDB carry uint64 through SQLite's signed INTEGER unchanged.
func toDB(v uint64) int64   { return int64(v) }
func fromDB(v int64) uint64 { return uint64(v) }

func (t *tables) Registry() (ledger.Registry, bool, error) {
	var (
		offerings, rentals int64
		fee, owner         string
	)
	err := t.q.QueryRowContext(t.ctx, `
		SELECT offering_counter, rental_counter, fee, owner
		FROM registry WHERE id = 1
	`).Scan(&offerings, &rentals, &fee, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Registry{}, false, nil
	}
	if err != nil {
		return ledger.Registry{}, false, fmt.Errorf("query registry: %w", err)
	}
	parsed, err := ledger.ParseFee(fee)
	if err != nil {
		return ledger.Registry{}, false, fmt.Errorf("decode registry fee: %w", err)
	}
	return ledger.Registry{
		OfferingCounter: fromDB(offerings),
		RentalCounter:   fromDB(rentals),
		Fee:             parsed,
		Owner:           ledger.Identity(owner),
	}, true, nil
}

func (t *tables) SaveRegistry(reg ledger.Registry) error {
	_, err := t.q.ExecContext(t.ctx, `
		INSERT INTO registry (id, offering_counter, rental_counter, fee, owner)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			offering_counter = excluded.offering_counter,
			rental_counter   = excluded.rental_counter,
			fee              = excluded.fee,
			owner            = excluded.owner
	`, toDB(reg.OfferingCounter), toDB(reg.RentalCounter), reg.Fee.String(), string(reg.Owner))
	if err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

const offeringColumns = `id, contract, amount, seller, price_denom, price_amount`

func scanOffer(row interface{ Scan(...any) error }) (ledger.Offer, error) {
	var (
		o                        ledger.Offer
		contract, seller, amount string
		priceDenom, priceAmount  string
	)
	if err := row.Scan(&o.ID, &contract, &amount, &seller, &priceDenom, &priceAmount); err != nil {
		return ledger.Offer{}, err
	}
	var err error
	if o.Amount, err = ledger.ParseAmount(amount); err != nil {
		return ledger.Offer{}, fmt.Errorf("decode offering %s amount: %w", o.ID, err)
	}
	price, err := ledger.ParseAmount(priceAmount)
	if err != nil {
		return ledger.Offer{}, fmt.Errorf("decode offering %s price: %w", o.ID, err)
	}
	o.Contract = ledger.Identity(contract)
	o.Seller = ledger.Identity(seller)
	o.ListPrice = ledger.Coin{Denom: priceDenom, Amount: price}
	return o, nil
}

func (t *tables) Offering(id string) (ledger.Offering, bool, error) {
	row := t.q.QueryRowContext(t.ctx, `SELECT `+offeringColumns+` FROM offerings WHERE id = ?`, id)
	o, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Offering{}, false, nil
	}
	if err != nil {
		return ledger.Offering{}, false, fmt.Errorf("query offering %s: %w", id, err)
	}
	return ledger.Offering{Contract: o.Contract, Amount: o.Amount, Seller: o.Seller, ListPrice: o.ListPrice}, true, nil
}

func (t *tables) SaveOffering(id string, off ledger.Offering) error {
	_, err := t.q.ExecContext(t.ctx, `
		INSERT INTO offerings (`+offeringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			contract     = excluded.contract,
			amount       = excluded.amount,
			seller       = excluded.seller,
			price_denom  = excluded.price_denom,
			price_amount = excluded.price_amount
	`, id, string(off.Contract), off.Amount.String(), string(off.Seller), off.ListPrice.Denom, off.ListPrice.Amount.String())
	if err != nil {
		return fmt.Errorf("save offering %s: %w", id, err)
	}
	return nil
}

func (t *tables) RemoveOffering(id string) error {
	if _, err := t.q.ExecContext(t.ctx, `DELETE FROM offerings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove offering %s: %w", id, err)
	}
	return nil
}

// ScanOfferings implements engine.Reader. A non-positive limit returns all rows.
func (t *tables) ScanOfferings(after string, limit int) ([]ledger.Offer, error) {
	rows, err := t.q.QueryContext(t.ctx, `
		SELECT `+offeringColumns+`
		FROM offerings
		WHERE id > ? COLLATE BINARY
		ORDER BY id COLLATE BINARY ASC
		LIMIT ?
	`, after, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("scan offerings: %w", err)
	}
	defer rows.Close()

	offers := []ledger.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offering row: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offerings: %w", err)
	}
	return offers, nil
}

const rentalColumns = `id, offering_id, renter, start_time, end_time, amount`

func scanRental(row interface{ Scan(...any) error }) (ledger.Rental, error) {
	var (
		r              ledger.Rental
		renter, amount string
		start, end     int64
	)
	if err := row.Scan(&r.ID, &r.OfferingID, &renter, &start, &end, &amount); err != nil {
		return ledger.Rental{}, err
	}
	a, err := ledger.ParseAmount(amount)
	if err != nil {
		return ledger.Rental{}, fmt.Errorf("decode rental %s amount: %w", r.ID, err)
	}
	r.Renter = ledger.Identity(renter)
	r.StartTime = fromDB(start)
	r.EndTime = fromDB(end)
	r.Amount = a
	return r, nil
}

func (t *tables) Rental(id string) (ledger.Rental, bool, error) {
	row := t.q.QueryRowContext(t.ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = ?`, id)
	r, err := scanRental(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Rental{}, false, nil
	}
	if err != nil {
		return ledger.Rental{}, false, fmt.Errorf("query rental %s: %w", id, err)
	}
	return r, true, nil
}

func (t *tables) SaveRental(r ledger.Rental) error {
	_, err := t.q.ExecContext(t.ctx, `
		INSERT INTO rentals (`+rentalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			offering_id = excluded.offering_id,
			renter      = excluded.renter,
			start_time  = excluded.start_time,
			end_time    = excluded.end_time,
			amount      = excluded.amount
	`, r.ID, r.OfferingID, string(r.Renter), toDB(r.StartTime), toDB(r.EndTime), r.Amount.String())
	if err != nil {
		return fmt.Errorf("save rental %s: %w", r.ID, err)
	}
	return nil
}

func (t *tables) RemoveRental(id string) error {
	if _, err := t.q.ExecContext(t.ctx, `DELETE FROM rentals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove rental %s: %w", id, err)
	}
	return nil
}

// ScanRentals implements engine.Reader. A non-positive limit returns all rows.
func (t *tables) ScanRentals(after string, limit int) ([]ledger.Rental, error) {
	rows, err := t.q.QueryContext(t.ctx, `
		SELECT `+rentalColumns+`
		FROM rentals
		WHERE id > ? COLLATE BINARY
		ORDER BY id COLLATE BINARY ASC
		LIMIT ?
	`, after, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("scan rentals: %w", err)
	}
	defer rows.Close()

	rentals := []ledger.Rental{}
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rental row: %w", err)
		}
		rentals = append(rentals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rentals: %w", err)
	}
	return rentals, nil
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
