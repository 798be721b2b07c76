package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TransferKind distinguishes outbound instruction kinds.
type TransferKind string

const (
	// TransferBankSend pays native currency to a recipient.
	TransferBankSend TransferKind = "bank_send"
	// TransferAsset moves custodied asset units held by an asset contract.
	TransferAsset TransferKind = "asset_transfer"
)

// Transfer is a declarative value movement decided by the engine and
// executed by a trusted dispatcher after the operation commits.
// Only BankSend and AssetTransfer implement it.
type Transfer interface {
	// Kind returns the instruction kind.
	Kind() TransferKind
	// Fields returns the canonical representation of the instruction.
	Fields() map[string]any
	// String returns a compact human-readable form.
	String() string

	transfer()
}

// BankSend pays Coin to Recipient.
type BankSend struct {
	Recipient Identity
	Coin      Coin
}

func (BankSend) transfer() {}

// Kind implements Transfer.
func (BankSend) Kind() TransferKind { return TransferBankSend }

// Fields implements Transfer.
func (b BankSend) Fields() map[string]any {
	return map[string]any{
		"type":      string(TransferBankSend),
		"recipient": string(b.Recipient),
		"denom":     b.Coin.Denom,
		"amount":    b.Coin.Amount.String(),
	}
}

// String implements Transfer.
func (b BankSend) String() string {
	return fmt.Sprintf("bank_send %s -> %s", b.Coin, b.Recipient)
}

// AssetTransfer instructs Contract to move Amount units to Recipient.
type AssetTransfer struct {
	Contract  Identity
	Recipient Identity
	Amount    Amount
}

func (AssetTransfer) transfer() {}

// Kind implements Transfer.
func (AssetTransfer) Kind() TransferKind { return TransferAsset }

// Fields implements Transfer.
func (a AssetTransfer) Fields() map[string]any {
	return map[string]any{
		"type":      string(TransferAsset),
		"contract":  string(a.Contract),
		"recipient": string(a.Recipient),
		"amount":    a.Amount.String(),
	}
}

// String implements Transfer.
func (a AssetTransfer) String() string {
	return fmt.Sprintf("asset_transfer %s %s -> %s", a.Amount, a.Contract, a.Recipient)
}

// EncodeTransfer returns the canonical JSON payload of t.
func EncodeTransfer(t Transfer) ([]byte, error) {
	return MarshalCanonical(t.Fields())
}

// DecodeTransfer parses a payload produced by EncodeTransfer.
func DecodeTransfer(data []byte) (Transfer, error) {
	var raw struct {
		Type      TransferKind `json:"type"`
		Recipient string       `json:"recipient"`
		Contract  string       `json:"contract"`
		Denom     string       `json:"denom"`
		Amount    Amount       `json:"amount"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, NewInputError(fmt.Sprintf("decode transfer: %v", err))
	}
	switch raw.Type {
	case TransferBankSend:
		return BankSend{
			Recipient: Identity(raw.Recipient),
			Coin:      Coin{Denom: raw.Denom, Amount: raw.Amount},
		}, nil
	case TransferAsset:
		return AssetTransfer{
			Contract:  Identity(raw.Contract),
			Recipient: Identity(raw.Recipient),
			Amount:    raw.Amount,
		}, nil
	default:
		return nil, NewInputError(fmt.Sprintf("unknown transfer type %q", raw.Type))
	}
}
