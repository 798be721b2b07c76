package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/roach88/rwamarket/internal/ledger"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected, scenarios failed or replay mismatch
	ExitCommandError = 2 // Command error (bad flags, unreadable files, database failures)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope for one command result. serve writes
// one per input line.
type CLIResponse struct {
	Status    string      `json:"status"`               // "ok" or "error"
	Data      interface{} `json:"data,omitempty"`       // success payload
	Error     *CLIError   `json:"error,omitempty"`      // error details
	RequestID string      `json:"request_id,omitempty"` // journaled request id, when one was assigned
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // ledger error code ("NOT_FOUND") or "E_..." command code
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// NewCLIError converts err for output. Ledger rejections keep their code,
// message and details; any other error is reported under fallback.
func NewCLIError(err error, fallback string) *CLIError {
	var le *ledger.Error
	if !errors.As(err, &le) {
		return &CLIError{Code: fallback, Message: err.Error()}
	}
	e := &CLIError{Code: string(le.Code), Message: le.Message}
	if len(le.Details) > 0 {
		e.Details = le.Details
	}
	return e
}

// OutputFormatter renders results as text or as CLIResponse JSON.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool // text errors include their details
}

// JSON reports whether results are rendered as JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	return f.Reject(&CLIError{Code: code, Message: message, Details: details})
}

// Reject outputs e. Text output is a single "Error [CODE]: message" line,
// followed by the details in verbose mode.
func (f *OutputFormatter) Reject(e *CLIError) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: e})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if !f.Verbose || e.Details == nil {
		return nil
	}
	fmt.Fprintln(f.Writer, "Details:")
	if m, ok := e.Details.(map[string]string); ok {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			fmt.Fprintf(f.Writer, "  %s: %s\n", k, m[k])
		}
		return nil
	}
	_, err := fmt.Fprintf(f.Writer, "  %v\n", e.Details)
	return err
}
