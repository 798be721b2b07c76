package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTransfer(t *testing.T) {
	data, err := EncodeTransfer(BankSend{Recipient: "seller", Coin: NewCoin(980, "earth")})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":"980","denom":"earth","recipient":"seller","type":"bank_send"}`, string(data))

	data, err = EncodeTransfer(AssetTransfer{Contract: "rwa-token", Recipient: "buyer", Amount: NewAmount(100)})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":"100","contract":"rwa-token","recipient":"buyer","type":"asset_transfer"}`, string(data))
}

func TestDecodeTransfer(t *testing.T) {
	want := AssetTransfer{Contract: "rwa-token", Recipient: "buyer", Amount: NewAmount(100)}
	data, err := EncodeTransfer(want)
	require.NoError(t, err)

	got, err := DecodeTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = DecodeTransfer([]byte(`{"type":"mint","recipient":"x","amount":"1"}`))
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))

	_, err = DecodeTransfer([]byte(`{"type":"bank_send","extra":1}`))
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
}

func TestTransferString(t *testing.T) {
	assert.Equal(t, "bank_send 980earth -> seller",
		BankSend{Recipient: "seller", Coin: NewCoin(980, "earth")}.String())
	assert.Equal(t, "asset_transfer 100 rwa-token -> buyer",
		AssetTransfer{Contract: "rwa-token", Recipient: "buyer", Amount: NewAmount(100)}.String())
}

func TestTransferIDDeterminism(t *testing.T) {
	tr := BankSend{Recipient: "seller", Coin: NewCoin(980, "earth")}

	id1, err := TransferID(3, 0, tr)
	require.NoError(t, err)
	id2, err := TransferID(3, 0, tr)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "TransferID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")

	other, err := TransferID(3, 1, tr)
	require.NoError(t, err)
	assert.NotEqual(t, id1, other, "position is part of the identity")

	other, err = TransferID(4, 0, tr)
	require.NoError(t, err)
	assert.NotEqual(t, id1, other, "seq is part of the identity")
}

func TestDigestDomainSeparation(t *testing.T) {
	v := map[string]any{"a": "b"}
	d1, err := Digest(DomainState, v)
	require.NoError(t, err)
	d2, err := Digest(DomainTransfer, v)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}
