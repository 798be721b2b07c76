package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/ledger"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"fee": "0.02"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]interface{}{"fee": "0.02"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"offering_id": "7"}
	err := formatter.Error("INVALID_BUYER", "seller cannot buy their own offering", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_BUYER", resp.Error.Code)
	assert.Equal(t, "seller cannot buy their own offering", resp.Error.Message)
	assert.Equal(t, map[string]interface{}{"offering_id": "7"}, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("0.02"))
	assert.Equal(t, "0.02\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("RENTAL_NOT_EXPIRED", "rental 1 ends at 1030", map[string]string{"rental_id": "1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [RENTAL_NOT_EXPIRED]: rental 1 ends at 1030")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("RENTAL_NOT_EXPIRED", "rental 1 ends at 1030", map[string]string{"rental_id": "1", "end_time": "1030"})
	require.NoError(t, err)
	assert.Equal(t, "Error [RENTAL_NOT_EXPIRED]: rental 1 ends at 1030\nDetails:\n  end_time: 1030\n  rental_id: 1\n", buf.String())
}

func TestNewCLIError(t *testing.T) {
	rejection := ledger.NewError(ledger.ErrCodeInvalidBuyer, "seller cannot buy their own offering").
		WithDetail("offering_id", "1")

	e := NewCLIError(fmt.Errorf("apply seq 3: %w", rejection), "E_APPLY")
	assert.Equal(t, "INVALID_BUYER", e.Code)
	assert.Equal(t, "seller cannot buy their own offering", e.Message)
	assert.Equal(t, map[string]string{"offering_id": "1"}, e.Details)

	e = NewCLIError(ledger.NewError(ledger.ErrCodeNotFound, "offering 9 not found"), "E_APPLY")
	assert.Nil(t, e.Details)

	e = NewCLIError(errors.New("database is locked"), "E_APPLY")
	assert.Equal(t, &CLIError{Code: "E_APPLY", Message: "database is locked"}, e)
}

func TestOutputFormatter_RejectJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Reject(NewCLIError(ledger.NewError(ledger.ErrCodeUnauthorized, "only the owner can change the fee"), "")))
	assert.JSONEq(t, `{"status":"error","error":{"code":"UNAUTHORIZED","message":"only the owner can change the fee"}}`, buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "buy rejected", errors.New("NOT_FOUND"))))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestExitErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open database", cause)
	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
}

func TestDescribeTransfer(t *testing.T) {
	assert.Equal(t, "bank_send 980earth -> seller", describeTransfer(map[string]string{
		"type": "bank_send", "recipient": "seller", "denom": "earth", "amount": "980",
	}))
	assert.Equal(t, "asset_transfer 100 rwa-token -> buyer", describeTransfer(map[string]string{
		"type": "asset_transfer", "contract": "rwa-token", "recipient": "buyer", "amount": "100",
	}))
	assert.Equal(t, "a=1 type=other", describeTransfer(map[string]string{"type": "other", "a": "1"}))
}
