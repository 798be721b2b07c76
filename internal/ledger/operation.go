package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OperationKind names an operation in journals, envelopes and metrics.
type OperationKind string

const (
	KindInstantiate  OperationKind = "instantiate"
	KindList         OperationKind = "list"
	KindBuy          OperationKind = "buy"
	KindWithdrawRwa  OperationKind = "withdraw_rwa"
	KindRentRwa      OperationKind = "rent_rwa"
	KindEndRental    OperationKind = "end_rental"
	KindClawback     OperationKind = "clawback"
	KindChangeFee    OperationKind = "change_fee"
	KindWithdrawFees OperationKind = "withdraw_fees"
)

// Kinds lists every operation kind in declaration order.
var Kinds = []OperationKind{
	KindInstantiate,
	KindList,
	KindBuy,
	KindWithdrawRwa,
	KindRentRwa,
	KindEndRental,
	KindClawback,
	KindChangeFee,
	KindWithdrawFees,
}

// Operation is the sealed set of state transitions. The engine switches over
// the concrete types exhaustively; adding a type here without a case there
// fails the engine's unknown-operation test.
type Operation interface {
	// Kind returns the operation name.
	Kind() OperationKind
	// Fields returns the canonical envelope of the operation, including "kind".
	Fields() map[string]any

	operation()
}

// Instantiate creates the registry; the caller becomes the owner.
type Instantiate struct {
	Fee Fee
}

// List records an asset deposit notification. The caller is the asset
// contract; Sender deposited Amount units with the encoded sell instruction Msg.
type List struct {
	Sender string
	Amount Amount
	Msg    []byte
}

// Buy purchases an offering outright.
type Buy struct {
	OfferingID string
}

// WithdrawRwa returns an offering's asset to its seller.
type WithdrawRwa struct {
	OfferingID string
}

// RentRwa leases an offering's asset for Duration seconds.
type RentRwa struct {
	OfferingID string
	Duration   uint64
}

// EndRental returns a rented asset once the rental has expired.
type EndRental struct {
	RentalID string
}

// Clawback lets the seller reclaim a rented asset once the rental has expired.
type Clawback struct {
	RentalID string
}

// ChangeFee replaces the registry fee.
type ChangeFee struct {
	Fee Fee
}

// WithdrawFees pays Amount of Denom from the marketplace balance to the owner.
type WithdrawFees struct {
	Amount Amount
	Denom  string
}

func (Instantiate) operation()  {}
func (List) operation()         {}
func (Buy) operation()          {}
func (WithdrawRwa) operation()  {}
func (RentRwa) operation()      {}
func (EndRental) operation()    {}
func (Clawback) operation()     {}
func (ChangeFee) operation()    {}
func (WithdrawFees) operation() {}

func (Instantiate) Kind() OperationKind  { return KindInstantiate }
func (List) Kind() OperationKind         { return KindList }
func (Buy) Kind() OperationKind          { return KindBuy }
func (WithdrawRwa) Kind() OperationKind  { return KindWithdrawRwa }
func (RentRwa) Kind() OperationKind      { return KindRentRwa }
func (EndRental) Kind() OperationKind    { return KindEndRental }
func (Clawback) Kind() OperationKind     { return KindClawback }
func (ChangeFee) Kind() OperationKind    { return KindChangeFee }
func (WithdrawFees) Kind() OperationKind { return KindWithdrawFees }

func (o Instantiate) Fields() map[string]any {
	return map[string]any{"kind": string(KindInstantiate), "fee": o.Fee.String()}
}

func (o List) Fields() map[string]any {
	return map[string]any{
		"kind":   string(KindList),
		"sender": o.Sender,
		"amount": o.Amount.String(),
		"msg":    string(o.Msg),
	}
}

func (o Buy) Fields() map[string]any {
	return map[string]any{"kind": string(KindBuy), "offering_id": o.OfferingID}
}

func (o WithdrawRwa) Fields() map[string]any {
	return map[string]any{"kind": string(KindWithdrawRwa), "offering_id": o.OfferingID}
}

func (o RentRwa) Fields() map[string]any {
	return map[string]any{"kind": string(KindRentRwa), "offering_id": o.OfferingID, "duration": o.Duration}
}

func (o EndRental) Fields() map[string]any {
	return map[string]any{"kind": string(KindEndRental), "rental_id": o.RentalID}
}

func (o Clawback) Fields() map[string]any {
	return map[string]any{"kind": string(KindClawback), "rental_id": o.RentalID}
}

func (o ChangeFee) Fields() map[string]any {
	return map[string]any{"kind": string(KindChangeFee), "fee": o.Fee.String()}
}

func (o WithdrawFees) Fields() map[string]any {
	return map[string]any{"kind": string(KindWithdrawFees), "amount": o.Amount.String(), "denom": o.Denom}
}

// EncodeOperation returns the canonical JSON envelope of op.
func EncodeOperation(op Operation) ([]byte, error) {
	return MarshalCanonical(op.Fields())
}

// operationEnvelope is the union of every operation's fields.
type operationEnvelope struct {
	Kind       OperationKind   `json:"kind"`
	Fee        *Fee            `json:"fee"`
	Sender     string          `json:"sender"`
	Amount     *Amount         `json:"amount"`
	Msg        json.RawMessage `json:"msg"`
	OfferingID string          `json:"offering_id"`
	RentalID   string          `json:"rental_id"`
	Duration   *uint64         `json:"duration"`
	Denom      string          `json:"denom"`
}

// DecodeOperation parses a JSON envelope such as {"kind":"buy","offering_id":"1"}.
// Unknown fields, unknown kinds and missing required fields are INVALID_INPUT.
// For list, "msg" may be the sell instruction object itself or a string holding it.
func DecodeOperation(data []byte) (Operation, error) {
	var env operationEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		if IsRejection(err) {
			return nil, err
		}
		return nil, NewInputError(fmt.Sprintf("decode operation: %v", err))
	}

	missing := func(field string) error {
		return NewInputError(fmt.Sprintf("%s: %s is required", env.Kind, field))
	}

	switch env.Kind {
	case KindInstantiate, KindChangeFee:
		if env.Fee == nil {
			return nil, missing("fee")
		}
		if env.Kind == KindInstantiate {
			return Instantiate{Fee: *env.Fee}, nil
		}
		return ChangeFee{Fee: *env.Fee}, nil
	case KindList:
		if env.Amount == nil {
			return nil, missing("amount")
		}
		if env.Sender == "" {
			return nil, missing("sender")
		}
		msg, err := unwrapMsg(env.Msg)
		if err != nil {
			return nil, err
		}
		return List{Sender: env.Sender, Amount: *env.Amount, Msg: msg}, nil
	case KindBuy, KindWithdrawRwa:
		if env.OfferingID == "" {
			return nil, missing("offering_id")
		}
		if env.Kind == KindBuy {
			return Buy{OfferingID: env.OfferingID}, nil
		}
		return WithdrawRwa{OfferingID: env.OfferingID}, nil
	case KindRentRwa:
		if env.OfferingID == "" {
			return nil, missing("offering_id")
		}
		if env.Duration == nil {
			return nil, missing("duration")
		}
		return RentRwa{OfferingID: env.OfferingID, Duration: *env.Duration}, nil
	case KindEndRental, KindClawback:
		if env.RentalID == "" {
			return nil, missing("rental_id")
		}
		if env.Kind == KindEndRental {
			return EndRental{RentalID: env.RentalID}, nil
		}
		return Clawback{RentalID: env.RentalID}, nil
	case KindWithdrawFees:
		if env.Amount == nil {
			return nil, missing("amount")
		}
		if env.Denom == "" {
			return nil, missing("denom")
		}
		return WithdrawFees{Amount: *env.Amount, Denom: env.Denom}, nil
	case "":
		return nil, NewInputError("operation kind is required")
	default:
		return nil, NewInputError(fmt.Sprintf("unknown operation kind %q", env.Kind))
	}
}

// unwrapMsg accepts either a JSON string (the encoded instruction) or any
// other JSON value (the instruction itself).
func unwrapMsg(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, NewInputError("list: msg is required")
	}
	if strings.HasPrefix(string(trimmed), `"`) {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, NewInputError(fmt.Sprintf("list: msg: %v", err))
		}
		return []byte(s), nil
	}
	return []byte(trimmed), nil
}
