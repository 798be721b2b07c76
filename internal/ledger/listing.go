package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SellMessage is the encoded instruction carried by an asset deposit
// notification: list the deposited units at ListPrice.
type SellMessage struct {
	ListPrice Coin `json:"list_price"`
}

// EncodeSellMessage returns the JSON instruction for price.
func EncodeSellMessage(price Coin) []byte {
	data, err := json.Marshal(SellMessage{ListPrice: price})
	if err != nil {
		// Coin always marshals
		panic(err)
	}
	return data
}

// DecodeSellMessage parses and validates a sell instruction. The list price
// must name a valid denomination and a positive amount.
func DecodeSellMessage(data []byte) (SellMessage, error) {
	var msg SellMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		if IsRejection(err) {
			return SellMessage{}, err
		}
		return SellMessage{}, NewInputError(fmt.Sprintf("decode sell message: %v", err))
	}
	if err := ValidateDenom(msg.ListPrice.Denom); err != nil {
		return SellMessage{}, err
	}
	if msg.ListPrice.Amount.IsZero() {
		return SellMessage{}, NewInputError("list price must be positive")
	}
	return msg, nil
}
