// Package testutil provides deterministic fixtures for marketplace tests.
package testutil

import (
	"github.com/roach88/rwamarket/internal/ledger"
)

// Identities used across tests.
const (
	Owner    ledger.Identity = "owner"
	Seller   ledger.Identity = "seller"
	Buyer    ledger.Identity = "buyer"
	Renter   ledger.Identity = "renter"
	Stranger ledger.Identity = "stranger"
	Contract ledger.Identity = "rwa-token"
)

// Cmd builds a command. Funds use the compact coin form ("1000earth").
func Cmd(caller ledger.Identity, now uint64, op ledger.Operation, funds ...string) ledger.Command {
	coins := make(ledger.Coins, 0, len(funds))
	for _, f := range funds {
		coins = append(coins, ledger.MustParseCoin(f))
	}
	return ledger.Command{Caller: caller, Funds: coins, Now: now, Op: op}
}

// Instantiate is the owner creating a registry with a percent fee.
func Instantiate(percent uint64) ledger.Command {
	return Cmd(Owner, 0, ledger.Instantiate{Fee: ledger.FeePercent(percent)})
}

// List is Contract notifying a deposit of amount units by seller, listed at
// price ("1000earth").
func List(seller ledger.Identity, amount uint64, price string) ledger.Command {
	return Cmd(Contract, 0, ledger.List{
		Sender: string(seller),
		Amount: ledger.NewAmount(amount),
		Msg:    ledger.EncodeSellMessage(ledger.MustParseCoin(price)),
	})
}

// Buy is caller buying offering id with funds attached.
func Buy(caller ledger.Identity, id string, funds ...string) ledger.Command {
	return Cmd(caller, 0, ledger.Buy{OfferingID: id}, funds...)
}

// Rent is caller renting offering id at now for duration seconds.
func Rent(caller ledger.Identity, id string, now, duration uint64, funds ...string) ledger.Command {
	return Cmd(caller, now, ledger.RentRwa{OfferingID: id, Duration: duration}, funds...)
}

// EndRental is caller ending rental id at now.
func EndRental(caller ledger.Identity, id string, now uint64) ledger.Command {
	return Cmd(caller, now, ledger.EndRental{RentalID: id})
}

// Clawback is caller clawing back rental id at now.
func Clawback(caller ledger.Identity, id string, now uint64) ledger.Command {
	return Cmd(caller, now, ledger.Clawback{RentalID: id})
}
