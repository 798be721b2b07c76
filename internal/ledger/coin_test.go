package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoin(t *testing.T) {
	c, err := ParseCoin("1000earth")
	require.NoError(t, err)
	assert.Equal(t, NewCoin(1000, "earth"), c)
	assert.Equal(t, "1000earth", c.String())

	c, err = ParseCoin("5ibc/27394FB092D2ECCD")
	require.NoError(t, err)
	assert.Equal(t, "ibc/27394FB092D2ECCD", c.Denom)
}

func TestParseCoinRejects(t *testing.T) {
	for _, in := range []string{"", "earth", "100", "100 earth", "1001x!", "100-earth"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseCoin(in)
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
		})
	}
}

func TestCoinsFind(t *testing.T) {
	funds, err := ParseCoins([]string{"5moon", "1000earth", "7earth"})
	require.NoError(t, err)

	c, err := funds.Find("earth")
	require.NoError(t, err)
	assert.Equal(t, NewAmount(1000), c.Amount, "first coin of the denom wins")

	_, err = funds.Find("mars")
	assert.True(t, IsInsufficientFunds(err))

	assert.Equal(t, "5moon,1000earth,7earth", funds.String())
}

func TestParseCoinsSkipsBlanks(t *testing.T) {
	funds, err := ParseCoins([]string{"", " ", "1earth"})
	require.NoError(t, err)
	assert.Equal(t, Coins{NewCoin(1, "earth")}, funds)
}

func TestValidateIdentity(t *testing.T) {
	id, err := ValidateIdentity("seller")
	require.NoError(t, err)
	assert.Equal(t, Identity("seller"), id)

	// NFD input normalizes to NFC
	id, err = ValidateIdentity("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, Identity("caf\u00e9"), id)

	for _, bad := range []string{"", "two words", "tab\there", string(make([]byte, 129))} {
		_, err := ValidateIdentity(bad)
		assert.Equal(t, ErrCodeInvalidInput, CodeOf(err), "identity %q", bad)
	}
}
