package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/rwamarket/internal/ledger"
)

// Result is what a successful command decides: the transfer instructions to
// dispatch, in order, and the event attributes describing the change.
type Result struct {
	Transfers []ledger.Transfer
	Events    []ledger.Attribute
}

// Execute applies cmd to t.
//
// Every validation runs before the first write, so a returned *ledger.Error
// means t was not modified. Any other error comes from t itself; callers
// backed by a transaction must roll it back. The caller is compared and
// stored in NFC form.
func Execute(t Tables, cmd ledger.Command) (Result, error) {
	caller, err := ledger.ValidateIdentity(string(cmd.Caller))
	if err != nil {
		return Result{}, err
	}
	cmd.Caller = caller

	reg, initialized, err := t.Registry()
	if err != nil {
		return Result{}, fmt.Errorf("load registry: %w", err)
	}

	if op, ok := cmd.Op.(ledger.Instantiate); ok {
		if initialized {
			return Result{}, ledger.NewError(ledger.ErrCodeAlreadyInitialized, "registry already exists")
		}
		return instantiate(t, cmd, op)
	}
	if !initialized {
		return Result{}, ledger.NewError(ledger.ErrCodeNotInitialized, "registry does not exist")
	}

	x := &execution{t: t, reg: reg, cmd: cmd}
	switch op := cmd.Op.(type) {
	case ledger.List:
		return x.list(op)
	case ledger.Buy:
		return x.buy(op)
	case ledger.WithdrawRwa:
		return x.withdraw(op)
	case ledger.RentRwa:
		return x.rent(op)
	case ledger.EndRental:
		return x.endRental(op)
	case ledger.Clawback:
		return x.clawback(op)
	case ledger.ChangeFee:
		return x.changeFee(op)
	case ledger.WithdrawFees:
		return x.withdrawFees(op)
	default:
		return Result{}, ledger.NewInputError(fmt.Sprintf("unsupported operation %T", cmd.Op))
	}
}

func instantiate(t Tables, cmd ledger.Command, op ledger.Instantiate) (Result, error) {
	reg := ledger.Registry{Fee: op.Fee, Owner: cmd.Caller}
	if err := t.SaveRegistry(reg); err != nil {
		return Result{}, fmt.Errorf("save registry: %w", err)
	}
	return Result{Events: []ledger.Attribute{
		ledger.Attr("action", "instantiate"),
		ledger.Attr("owner", cmd.Caller.String()),
		ledger.Attr("fee", op.Fee.String()),
	}}, nil
}

// execution carries one command through its checks and writes.
type execution struct {
	t   Tables
	reg ledger.Registry
	cmd ledger.Command
}

func (x *execution) offering(id string) (ledger.Offering, error) {
	off, ok, err := x.t.Offering(id)
	if err != nil {
		return ledger.Offering{}, fmt.Errorf("load offering %s: %w", id, err)
	}
	if !ok {
		return ledger.Offering{}, ledger.NewError(ledger.ErrCodeNotFound, fmt.Sprintf("offering %s not found", id)).
			WithDetail("offering_id", id)
	}
	return off, nil
}

func (x *execution) rental(id string) (ledger.Rental, error) {
	r, ok, err := x.t.Rental(id)
	if err != nil {
		return ledger.Rental{}, fmt.Errorf("load rental %s: %w", id, err)
	}
	if !ok {
		return ledger.Rental{}, ledger.NewError(ledger.ErrCodeRentalNotFound, fmt.Sprintf("rental %s not found", id)).
			WithDetail("rental_id", id)
	}
	return r, nil
}

// rentedOffering resolves the offering a rental points at. A missing
// offering makes the asset's return destination unresolvable.
func (x *execution) rentedOffering(r ledger.Rental) (ledger.Offering, error) {
	off, ok, err := x.t.Offering(r.OfferingID)
	if err != nil {
		return ledger.Offering{}, fmt.Errorf("load offering %s: %w", r.OfferingID, err)
	}
	if !ok {
		return ledger.Offering{}, ledger.NewError(ledger.ErrCodeOrphanedRental,
			fmt.Sprintf("rental %s references removed offering %s", r.ID, r.OfferingID)).
			WithDetail("rental_id", r.ID).
			WithDetail("offering_id", r.OfferingID)
	}
	return off, nil
}

// payment returns the attached coin in denom, failing unless it covers price.
func (x *execution) payment(price ledger.Coin) (ledger.Coin, error) {
	paid, err := x.cmd.Funds.Find(price.Denom)
	if err != nil {
		return ledger.Coin{}, err
	}
	if paid.Amount.LessThan(price.Amount) {
		return ledger.Coin{}, ledger.NewError(ledger.ErrCodeInsufficientFunds,
			fmt.Sprintf("attached %s, need %s", paid, price)).
			WithDetail("required", price.String()).
			WithDetail("attached", paid.String())
	}
	return paid, nil
}

func (x *execution) requireOwner() error {
	if x.cmd.Caller != x.reg.Owner {
		return ledger.NewError(ledger.ErrCodeUnauthorized, "caller is not the registry owner").
			WithDetail("caller", x.cmd.Caller.String())
	}
	return nil
}

func nextID(counter uint64, what string) (uint64, error) {
	if counter == math.MaxUint64 {
		return 0, ledger.NewOverflowError(what + " counter exhausted")
	}
	return counter + 1, nil
}

// list creates an offering from an asset deposit. The caller is the asset
// contract that custodies the deposited units.
func (x *execution) list(op ledger.List) (Result, error) {
	msg, err := ledger.DecodeSellMessage(op.Msg)
	if err != nil {
		return Result{}, err
	}
	seller, err := ledger.ValidateIdentity(op.Sender)
	if err != nil {
		return Result{}, err
	}
	if op.Amount.IsZero() {
		return Result{}, ledger.NewInputError("deposited amount must be positive")
	}
	counter, err := nextID(x.reg.OfferingCounter, "offering")
	if err != nil {
		return Result{}, err
	}

	id := strconv.FormatUint(counter, 10)
	off := ledger.Offering{
		Contract:  x.cmd.Caller,
		Amount:    op.Amount,
		Seller:    seller,
		ListPrice: msg.ListPrice,
	}
	x.reg.OfferingCounter = counter
	if err := x.t.SaveOffering(id, off); err != nil {
		return Result{}, fmt.Errorf("save offering %s: %w", id, err)
	}
	if err := x.t.SaveRegistry(x.reg); err != nil {
		return Result{}, fmt.Errorf("save registry: %w", err)
	}

	return Result{Events: []ledger.Attribute{
		ledger.Attr("action", "sell_rwa"),
		ledger.Attr("offering_id", id),
		ledger.Attr("rwa_contract", off.Contract.String()),
		ledger.Attr("seller", off.Seller.String()),
		ledger.Attr("list_price", off.ListPrice.String()),
		ledger.Attr("amount", off.Amount.String()),
	}}, nil
}

// buy sells the whole offering. The seller receives list price less fee;
// any overpayment stays with the marketplace.
func (x *execution) buy(op ledger.Buy) (Result, error) {
	off, err := x.offering(op.OfferingID)
	if err != nil {
		return Result{}, err
	}
	if x.cmd.Caller == off.Seller {
		return Result{}, ledger.NewError(ledger.ErrCodeInvalidBuyer, "seller cannot buy their own offering").
			WithDetail("offering_id", op.OfferingID)
	}
	paid, err := x.payment(off.ListPrice)
	if err != nil {
		return Result{}, err
	}
	net, err := x.reg.Fee.Net(off.ListPrice.Amount)
	if err != nil {
		return Result{}, err
	}

	if err := x.t.RemoveOffering(op.OfferingID); err != nil {
		return Result{}, fmt.Errorf("remove offering %s: %w", op.OfferingID, err)
	}

	return Result{
		Transfers: []ledger.Transfer{
			ledger.BankSend{Recipient: off.Seller, Coin: ledger.Coin{Denom: off.ListPrice.Denom, Amount: net}},
			ledger.AssetTransfer{Contract: off.Contract, Recipient: x.cmd.Caller, Amount: off.Amount},
		},
		Events: []ledger.Attribute{
			ledger.Attr("action", "buy_rwa"),
			ledger.Attr("offering_id", op.OfferingID),
			ledger.Attr("buyer", x.cmd.Caller.String()),
			ledger.Attr("seller", off.Seller.String()),
			ledger.Attr("paid_price", paid.String()),
			ledger.Attr("amount", off.Amount.String()),
			ledger.Attr("rwa_contract", off.Contract.String()),
		},
	}, nil
}

func (x *execution) withdraw(op ledger.WithdrawRwa) (Result, error) {
	off, err := x.offering(op.OfferingID)
	if err != nil {
		return Result{}, err
	}
	if x.cmd.Caller != off.Seller {
		return Result{}, ledger.NewError(ledger.ErrCodeUnauthorized, "only the seller can withdraw an offering").
			WithDetail("offering_id", op.OfferingID)
	}

	if err := x.t.RemoveOffering(op.OfferingID); err != nil {
		return Result{}, fmt.Errorf("remove offering %s: %w", op.OfferingID, err)
	}

	return Result{
		Transfers: []ledger.Transfer{
			ledger.AssetTransfer{Contract: off.Contract, Recipient: off.Seller, Amount: off.Amount},
		},
		Events: []ledger.Attribute{
			ledger.Attr("action", "withdraw_rwa"),
			ledger.Attr("offering_id", op.OfferingID),
			ledger.Attr("seller", off.Seller.String()),
		},
	}, nil
}

// rent leases the offering's asset for op.Duration seconds at list price per
// second. The offering stays listed: it can be rented again or bought while
// the rental is live.
func (x *execution) rent(op ledger.RentRwa) (Result, error) {
	off, err := x.offering(op.OfferingID)
	if err != nil {
		return Result{}, err
	}
	if x.cmd.Caller == off.Seller {
		return Result{}, ledger.NewError(ledger.ErrCodeInvalidRenter, "seller cannot rent their own offering").
			WithDetail("offering_id", op.OfferingID)
	}
	if op.Duration == 0 {
		return Result{}, ledger.NewInputError("rental duration must be positive")
	}
	total, err := off.ListPrice.Amount.Mul(ledger.NewAmount(op.Duration))
	if err != nil {
		return Result{}, err
	}
	price := ledger.Coin{Denom: off.ListPrice.Denom, Amount: total}
	if _, err := x.payment(price); err != nil {
		return Result{}, err
	}
	fee, err := x.reg.Fee.Portion(total)
	if err != nil {
		return Result{}, err
	}
	sellerAmount, err := total.Sub(fee)
	if err != nil {
		return Result{}, err
	}
	if x.cmd.Now > math.MaxUint64-op.Duration {
		return Result{}, ledger.NewOverflowError(fmt.Sprintf("rental end %d + %d overflows", x.cmd.Now, op.Duration))
	}
	counter, err := nextID(x.reg.RentalCounter, "rental")
	if err != nil {
		return Result{}, err
	}

	rental := ledger.Rental{
		ID:         strconv.FormatUint(counter, 10),
		OfferingID: op.OfferingID,
		Renter:     x.cmd.Caller,
		StartTime:  x.cmd.Now,
		EndTime:    x.cmd.Now + op.Duration,
		Amount:     off.Amount,
	}
	x.reg.RentalCounter = counter
	if err := x.t.SaveRental(rental); err != nil {
		return Result{}, fmt.Errorf("save rental %s: %w", rental.ID, err)
	}
	if err := x.t.SaveRegistry(x.reg); err != nil {
		return Result{}, fmt.Errorf("save registry: %w", err)
	}

	return Result{
		Transfers: []ledger.Transfer{
			ledger.BankSend{Recipient: off.Seller, Coin: ledger.Coin{Denom: price.Denom, Amount: sellerAmount}},
			ledger.AssetTransfer{Contract: off.Contract, Recipient: x.cmd.Caller, Amount: off.Amount},
		},
		Events: []ledger.Attribute{
			ledger.Attr("action", "rent_rwa"),
			ledger.Attr("rental_id", rental.ID),
			ledger.Attr("offering_id", op.OfferingID),
			ledger.Attr("renter", x.cmd.Caller.String()),
			ledger.Attr("duration", strconv.FormatUint(op.Duration, 10)),
			ledger.Attr("rental_price", price.String()),
			ledger.Attr("fee_amount", fee.String()),
		},
	}, nil
}

// endRental lets the renter return the asset to the seller once expired.
func (x *execution) endRental(op ledger.EndRental) (Result, error) {
	r, err := x.rental(op.RentalID)
	if err != nil {
		return Result{}, err
	}
	if !r.Expired(x.cmd.Now) {
		return Result{}, notExpired(r, x.cmd.Now)
	}
	if x.cmd.Caller != r.Renter {
		return Result{}, ledger.NewError(ledger.ErrCodeUnauthorized, "only the renter can end a rental").
			WithDetail("rental_id", r.ID)
	}
	off, err := x.rentedOffering(r)
	if err != nil {
		return Result{}, err
	}

	if err := x.t.RemoveRental(r.ID); err != nil {
		return Result{}, fmt.Errorf("remove rental %s: %w", r.ID, err)
	}

	return Result{
		Transfers: []ledger.Transfer{
			ledger.AssetTransfer{Contract: off.Contract, Recipient: off.Seller, Amount: r.Amount},
		},
		Events: []ledger.Attribute{
			ledger.Attr("action", "end_rental"),
			ledger.Attr("rental_id", r.ID),
			ledger.Attr("renter", r.Renter.String()),
		},
	}, nil
}

// clawback lets the seller reclaim the asset once the rental expired.
// The offering is resolved before authorization since the seller is
// only known through it.
func (x *execution) clawback(op ledger.Clawback) (Result, error) {
	r, err := x.rental(op.RentalID)
	if err != nil {
		return Result{}, err
	}
	off, err := x.rentedOffering(r)
	if err != nil {
		return Result{}, err
	}
	if x.cmd.Caller != off.Seller {
		return Result{}, ledger.NewError(ledger.ErrCodeUnauthorized, "only the seller can claw back a rental").
			WithDetail("rental_id", r.ID)
	}
	if !r.Expired(x.cmd.Now) {
		return Result{}, notExpired(r, x.cmd.Now)
	}

	if err := x.t.RemoveRental(r.ID); err != nil {
		return Result{}, fmt.Errorf("remove rental %s: %w", r.ID, err)
	}

	return Result{
		Transfers: []ledger.Transfer{
			ledger.AssetTransfer{Contract: off.Contract, Recipient: off.Seller, Amount: r.Amount},
		},
		Events: []ledger.Attribute{
			ledger.Attr("action", "clawback"),
			ledger.Attr("rental_id", r.ID),
			ledger.Attr("seller", off.Seller.String()),
		},
	}, nil
}

func notExpired(r ledger.Rental, now uint64) error {
	return ledger.NewError(ledger.ErrCodeRentalNotExpired,
		fmt.Sprintf("rental %s ends at %d, now is %d", r.ID, r.EndTime, now)).
		WithDetail("rental_id", r.ID).
		WithDetail("end_time", strconv.FormatUint(r.EndTime, 10))
}

func (x *execution) changeFee(op ledger.ChangeFee) (Result, error) {
	if err := x.requireOwner(); err != nil {
		return Result{}, err
	}
	x.reg.Fee = op.Fee
	if err := x.t.SaveRegistry(x.reg); err != nil {
		return Result{}, fmt.Errorf("save registry: %w", err)
	}
	return Result{Events: []ledger.Attribute{
		ledger.Attr("action", "change_fee"),
		ledger.Attr("fee", op.Fee.String()),
	}}, nil
}

// withdrawFees pays the owner from the marketplace's real balance. There is
// no internal fee ledger to debit.
func (x *execution) withdrawFees(op ledger.WithdrawFees) (Result, error) {
	if err := x.requireOwner(); err != nil {
		return Result{}, err
	}
	if err := ledger.ValidateDenom(op.Denom); err != nil {
		return Result{}, err
	}
	if op.Amount.IsZero() {
		return Result{}, ledger.NewInputError("withdrawal amount must be positive")
	}
	coin := ledger.Coin{Denom: op.Denom, Amount: op.Amount}
	return Result{
		Transfers: []ledger.Transfer{
			ledger.BankSend{Recipient: x.reg.Owner, Coin: coin},
		},
		Events: []ledger.Attribute{
			ledger.Attr("action", "withdraw_fees"),
			ledger.Attr("owner", x.reg.Owner.String()),
			ledger.Attr("amount", coin.String()),
		},
	}, nil
}
