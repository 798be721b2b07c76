package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command is one engine input: who calls, what they attach, when, and what
// they ask for. Now is supplied by the caller's execution context in seconds.
type Command struct {
	Caller Identity
	Funds  Coins
	Now    uint64
	Op     Operation
}

// Fields returns the canonical representation of the command.
func (c Command) Fields() map[string]any {
	return map[string]any{
		"caller": string(c.Caller),
		"funds":  c.Funds.Strings(),
		"now":    c.Now,
		"op":     c.Op.Fields(),
	}
}

// commandLine is the JSON-lines wire form read by the serve command.
type commandLine struct {
	Caller string          `json:"caller"`
	Funds  []string        `json:"funds"`
	Now    uint64          `json:"now"`
	Op     json.RawMessage `json:"op"`
}

// DecodeCommand parses {"caller":"buyer","funds":["1000earth"],"now":0,"op":{...}}.
// The caller identity is normalized with v.
func DecodeCommand(data []byte, v IdentityValidator) (Command, error) {
	var line commandLine
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&line); err != nil {
		return Command{}, NewInputError(fmt.Sprintf("decode command: %v", err))
	}
	caller, err := v.Validate(line.Caller)
	if err != nil {
		return Command{}, err
	}
	funds, err := ParseCoins(line.Funds)
	if err != nil {
		return Command{}, err
	}
	if len(line.Op) == 0 {
		return Command{}, NewInputError("decode command: op is required")
	}
	op, err := DecodeOperation(line.Op)
	if err != nil {
		return Command{}, err
	}
	return Command{Caller: caller, Funds: funds, Now: line.Now, Op: op}, nil
}
