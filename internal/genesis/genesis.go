// Package genesis loads CUE documents that instantiate a marketplace and
// seed it with listings.
//
// A document looks like:
//
//	owner:    "owner"
//	fee:      "0.02"
//	contract: "rwa-token"
//	listings: [
//		{seller: "alice", amount: "100", price: {denom: "earth", amount: "1000"}},
//	]
//
// The document is unified with an embedded schema, then every identity,
// amount and price is checked with the ledger rules. All problems are
// reported together.
package genesis

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/rwamarket/internal/ledger"
)

//go:embed schema.cue
var schemaSource string

// Genesis is a validated genesis document.
type Genesis struct {
	Owner    ledger.Identity
	Fee      ledger.Fee
	Contract ledger.Identity
	Listings []Listing
}

// Listing is one seed offering.
type Listing struct {
	Contract ledger.Identity
	Seller   ledger.Identity
	Amount   ledger.Amount
	Price    ledger.Coin
}

// document mirrors #Genesis for Decode.
type document struct {
	Owner    string `json:"owner"`
	Fee      string `json:"fee"`
	Contract string `json:"contract"`
	Listings []struct {
		Seller   string `json:"seller"`
		Amount   string `json:"amount"`
		Contract string `json:"contract"`
		Price    struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"price"`
	} `json:"listings"`
}

// Error is a schema violation with its position in the document.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadFile reads and parses the document at path.
func LoadFile(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(path, data)
}

// Parse validates src against the schema and the ledger rules. filename is
// used in error positions.
func Parse(filename string, src []byte) (Genesis, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Genesis{}, fmt.Errorf("compile genesis schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Genesis{}, collectCUEErrors(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Genesis")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Genesis{}, collectCUEErrors(err)
	}

	var doc document
	if err := unified.Decode(&doc); err != nil {
		return Genesis{}, collectCUEErrors(err)
	}
	return doc.build()
}

// collectCUEErrors flattens a CUE error list, keeping positions.
func collectCUEErrors(err error) error {
	var result *multierror.Error
	for _, e := range cueerrors.Errors(err) {
		ge := &Error{Message: e.Error()}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ge.Pos = pos[0]
		}
		result = multierror.Append(result, ge)
	}
	if result == nil {
		return err
	}
	return result
}

func (d document) build() (Genesis, error) {
	var (
		result *multierror.Error
		g      Genesis
		err    error
	)
	fail := func(field string, err error) {
		result = multierror.Append(result, fmt.Errorf("%s: %w", field, err))
	}

	if g.Owner, err = ledger.ValidateIdentity(d.Owner); err != nil {
		fail("owner", err)
	}
	if g.Fee, err = ledger.ParseFee(d.Fee); err != nil {
		fail("fee", err)
	}
	if g.Contract, err = ledger.ValidateIdentity(d.Contract); err != nil {
		fail("contract", err)
	}

	for i, l := range d.Listings {
		field := fmt.Sprintf("listings[%d]", i)
		var (
			listing Listing
			err     error
		)
		listing.Contract = g.Contract
		if l.Contract != "" {
			if listing.Contract, err = ledger.ValidateIdentity(l.Contract); err != nil {
				fail(field+".contract", err)
			}
		}
		if listing.Seller, err = ledger.ValidateIdentity(l.Seller); err != nil {
			fail(field+".seller", err)
		}
		if listing.Amount, err = ledger.ParseAmount(l.Amount); err != nil {
			fail(field+".amount", err)
		}
		price, err := ledger.ParseAmount(l.Price.Amount)
		if err != nil {
			fail(field+".price.amount", err)
		}
		if err := ledger.ValidateDenom(l.Price.Denom); err != nil {
			fail(field+".price.denom", err)
		}
		listing.Price = ledger.Coin{Denom: l.Price.Denom, Amount: price}
		g.Listings = append(g.Listings, listing)
	}

	if err := result.ErrorOrNil(); err != nil {
		return Genesis{}, err
	}
	return g, nil
}

// Commands returns the commands that build the genesis state: one
// instantiate by the owner, then one deposit notification per listing in
// document order. Offering ids are therefore 1..len(Listings).
func (g Genesis) Commands() []ledger.Command {
	cmds := make([]ledger.Command, 0, 1+len(g.Listings))
	cmds = append(cmds, ledger.Command{
		Caller: g.Owner,
		Funds:  ledger.Coins{},
		Op:     ledger.Instantiate{Fee: g.Fee},
	})
	for _, l := range g.Listings {
		cmds = append(cmds, ledger.Command{
			Caller: l.Contract,
			Funds:  ledger.Coins{},
			Op: ledger.List{
				Sender: string(l.Seller),
				Amount: l.Amount,
				Msg:    ledger.EncodeSellMessage(l.Price),
			},
		})
	}
	return cmds
}
