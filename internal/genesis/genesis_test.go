package genesis

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

func TestLoadFile(t *testing.T) {
	g, err := LoadFile(filepath.Join("testdata", "market.cue"))
	require.NoError(t, err)

	assert.Equal(t, ledger.Identity("owner"), g.Owner)
	assert.Equal(t, ledger.FeePercent(2), g.Fee)
	assert.Equal(t, ledger.Identity("rwa-token"), g.Contract)
	assert.Equal(t, []Listing{
		{Contract: "rwa-token", Seller: "alice", Amount: ledger.NewAmount(100), Price: ledger.NewCoin(1000, "earth")},
		{Contract: "deed-token", Seller: "bob", Amount: ledger.NewAmount(5), Price: ledger.NewCoin(10, "earth")},
	}, g.Listings)
}

func TestParseDefaults(t *testing.T) {
	g, err := Parse("min.cue", []byte(`
owner:    "owner"
contract: "rwa-token"
`))
	require.NoError(t, err)
	assert.Equal(t, ledger.Fee{}, g.Fee)
	assert.Empty(t, g.Listings)
	assert.Len(t, g.Commands(), 1)
}

func TestCommandsBuildGenesisState(t *testing.T) {
	g, err := LoadFile(filepath.Join("testdata", "market.cue"))
	require.NoError(t, err)

	state := engine.NewState()
	for _, cmd := range g.Commands() {
		state, _, err = engine.Apply(state, cmd)
		require.NoError(t, err)
	}

	offers, err := engine.AllOffers(state, "", 0)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "1", offers[0].ID)
	assert.Equal(t, ledger.Identity("alice"), offers[0].Seller)
	assert.Equal(t, ledger.Identity("deed-token"), offers[1].Contract)

	owner, err := engine.Owner(state)
	require.NoError(t, err)
	assert.Equal(t, ledger.Identity("owner"), owner)
}

func TestParseSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing owner", `contract: "rwa-token"`},
		{"unknown field", "owner: \"o\"\ncontract: \"c\"\nadmin: \"x\""},
		{"negative fee", "owner: \"o\"\ncontract: \"c\"\nfee: \"-1\""},
		{"zero amount", `owner: "o", contract: "c", listings: [{seller: "s", amount: "0", price: {denom: "earth", amount: "1"}}]`},
		{"numeric amount", `owner: "o", contract: "c", listings: [{seller: "s", amount: 5, price: {denom: "earth", amount: "1"}}]`},
		{"bad denom", `owner: "o", contract: "c", listings: [{seller: "s", amount: "5", price: {denom: "1earth", amount: "1"}}]`},
		{"syntax", `owner: `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestParseSchemaErrorHasPosition(t *testing.T) {
	_, err := Parse("pos.cue", []byte("owner: \"o\"\ncontract: \"c\"\nfee: 3\n"))
	require.Error(t, err)

	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.True(t, ge.Pos.IsValid())
	assert.Contains(t, err.Error(), "fee")
}

func TestParseCollectsLedgerErrors(t *testing.T) {
	// passes the schema, fails identity and fee rules
	_, err := Parse("ledger.cue", []byte(`
owner:    "has space"
fee:      "0.0000000000000000001"
contract: "rwa-token"
listings: [
	{seller: "tab\tbed", amount: "340282366920938463463374607431768211456", price: {denom: "earth", amount: "1"}},
]
`))
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 4)
	assert.True(t, ledger.IsRejection(merr.Errors[0]))
}
