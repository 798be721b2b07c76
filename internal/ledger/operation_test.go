package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOperationCanonical(t *testing.T) {
	data, err := EncodeOperation(RentRwa{OfferingID: "1", Duration: 30})
	require.NoError(t, err)
	assert.Equal(t, `{"duration":30,"kind":"rent_rwa","offering_id":"1"}`, string(data))

	data, err = EncodeOperation(List{
		Sender: "seller",
		Amount: NewAmount(100),
		Msg:    EncodeSellMessage(NewCoin(1000, "earth")),
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"amount":"100","kind":"list","msg":"{\"list_price\":{\"denom\":\"earth\",\"amount\":\"1000\"}}","sender":"seller"}`,
		string(data))
}

func TestOperationEnvelopeRoundTrip(t *testing.T) {
	ops := []Operation{
		Instantiate{Fee: FeePercent(2)},
		List{Sender: "seller", Amount: NewAmount(100), Msg: EncodeSellMessage(NewCoin(1000, "earth"))},
		Buy{OfferingID: "1"},
		WithdrawRwa{OfferingID: "1"},
		RentRwa{OfferingID: "1", Duration: 30},
		EndRental{RentalID: "1"},
		Clawback{RentalID: "1"},
		ChangeFee{Fee: Fee{}},
		WithdrawFees{Amount: NewAmount(6), Denom: "earth"},
	}
	require.Len(t, ops, len(Kinds), "one sample per kind")

	for _, op := range ops {
		t.Run(string(op.Kind()), func(t *testing.T) {
			data, err := EncodeOperation(op)
			require.NoError(t, err)
			got, err := DecodeOperation(data)
			require.NoError(t, err)
			assert.Equal(t, op, got)
		})
	}
}

func TestDecodeOperationListMsgObject(t *testing.T) {
	op, err := DecodeOperation([]byte(`{
		"kind": "list",
		"sender": "seller",
		"amount": "100",
		"msg": {"list_price": {"denom": "earth", "amount": "1000"}}
	}`))
	require.NoError(t, err)

	list, ok := op.(List)
	require.True(t, ok)
	msg, err := DecodeSellMessage(list.Msg)
	require.NoError(t, err)
	assert.Equal(t, NewCoin(1000, "earth"), msg.ListPrice)
}

func TestDecodeOperationRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code ErrorCode
	}{
		{"not json", `buy`, ErrCodeInvalidInput},
		{"no kind", `{}`, ErrCodeInvalidInput},
		{"unknown kind", `{"kind":"mint"}`, ErrCodeInvalidInput},
		{"unknown field", `{"kind":"buy","offering_id":"1","price":"5"}`, ErrCodeInvalidInput},
		{"buy without id", `{"kind":"buy"}`, ErrCodeInvalidInput},
		{"rent without duration", `{"kind":"rent_rwa","offering_id":"1"}`, ErrCodeInvalidInput},
		{"list without msg", `{"kind":"list","sender":"s","amount":"1"}`, ErrCodeInvalidInput},
		{"negative fee", `{"kind":"change_fee","fee":"-1"}`, ErrCodeInvalidInput},
		{"amount too large", `{"kind":"withdraw_fees","denom":"earth","amount":"340282366920938463463374607431768211456"}`, ErrCodeOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOperation([]byte(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestDecodeSellMessage(t *testing.T) {
	msg, err := DecodeSellMessage([]byte(`{"list_price":{"denom":"earth","amount":"1000"}}`))
	require.NoError(t, err)
	assert.Equal(t, NewCoin(1000, "earth"), msg.ListPrice)

	for _, bad := range []string{
		`not json`,
		`{"list_price":{"denom":"earth","amount":"0"}}`,
		`{"list_price":{"denom":"1earth","amount":"5"}}`,
		`{"list_price":{"denom":"earth","amount":"5"},"extra":true}`,
		`{}`,
	} {
		_, err := DecodeSellMessage([]byte(bad))
		assert.Equal(t, ErrCodeInvalidInput, CodeOf(err), bad)
	}
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"caller":"buyer","funds":["1000earth"],"now":5,"op":{"kind":"buy","offering_id":"1"}}`), DefaultValidator{})
	require.NoError(t, err)
	assert.Equal(t, Command{
		Caller: "buyer",
		Funds:  Coins{NewCoin(1000, "earth")},
		Now:    5,
		Op:     Buy{OfferingID: "1"},
	}, cmd)

	_, err = DecodeCommand([]byte(`{"caller":"","op":{"kind":"buy","offering_id":"1"}}`), DefaultValidator{})
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))

	_, err = DecodeCommand([]byte(`{"caller":"buyer"}`), DefaultValidator{})
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
}
