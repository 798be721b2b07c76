package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes marketplace errors.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates the caller lacks the required role.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeInvalidBuyer indicates a seller tried to buy their own offering.
	ErrCodeInvalidBuyer ErrorCode = "INVALID_BUYER"

	// ErrCodeInvalidRenter indicates a seller tried to rent their own offering.
	ErrCodeInvalidRenter ErrorCode = "INVALID_RENTER"

	// ErrCodeInsufficientFunds indicates the attached payment is below the
	// required amount or lacks the price denomination.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeRentalNotExpired indicates end-rental or clawback before end_time.
	ErrCodeRentalNotExpired ErrorCode = "RENTAL_NOT_EXPIRED"

	// ErrCodeRentalNotFound indicates the rental concluded or never existed.
	ErrCodeRentalNotFound ErrorCode = "RENTAL_NOT_FOUND"

	// ErrCodeNotFound indicates a missing offering.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeOrphanedRental indicates a rental whose offering no longer
	// exists, so the asset return destination cannot be resolved.
	ErrCodeOrphanedRental ErrorCode = "ORPHANED_RENTAL"

	// ErrCodeOverflow indicates arithmetic outside the representable range.
	ErrCodeOverflow ErrorCode = "OVERFLOW"

	// ErrCodeInvalidInput indicates a malformed or undecodable input.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotInitialized indicates an operation before instantiate.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// ErrCodeAlreadyInitialized indicates a second instantiate.
	ErrCodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"
)

// Error is a rejected operation. Every Error leaves state unchanged and
// produces no transfer instructions; the caller may safely resubmit.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context such as ids and amounts.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same Code, so errors.Is(err, ErrUnauthorized) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns e with an extra detail entry.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthorized       = &Error{Code: ErrCodeUnauthorized}
	ErrInvalidBuyer       = &Error{Code: ErrCodeInvalidBuyer}
	ErrInvalidRenter      = &Error{Code: ErrCodeInvalidRenter}
	ErrInsufficientFunds  = &Error{Code: ErrCodeInsufficientFunds}
	ErrRentalNotExpired   = &Error{Code: ErrCodeRentalNotExpired}
	ErrRentalNotFound     = &Error{Code: ErrCodeRentalNotFound}
	ErrNotFound           = &Error{Code: ErrCodeNotFound}
	ErrOrphanedRental     = &Error{Code: ErrCodeOrphanedRental}
	ErrOverflow           = &Error{Code: ErrCodeOverflow}
	ErrInvalidInput       = &Error{Code: ErrCodeInvalidInput}
	ErrNotInitialized     = &Error{Code: ErrCodeNotInitialized}
	ErrAlreadyInitialized = &Error{Code: ErrCodeAlreadyInitialized}
)

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewInputError creates an INVALID_INPUT error.
func NewInputError(message string) *Error {
	return NewError(ErrCodeInvalidInput, message)
}

// NewOverflowError creates an OVERFLOW error.
func NewOverflowError(message string) *Error {
	return NewError(ErrCodeOverflow, message)
}

// CodeOf returns the ErrorCode of err, or "" when err is not a ledger error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsRejection reports whether err is a ledger error, i.e. a deterministic
// rejection of the operation rather than an infrastructure failure.
func IsRejection(err error) bool {
	return CodeOf(err) != ""
}

// IsUnauthorized returns true if err is an UNAUTHORIZED error.
func IsUnauthorized(err error) bool { return CodeOf(err) == ErrCodeUnauthorized }

// IsInsufficientFunds returns true if err is an INSUFFICIENT_FUNDS error.
func IsInsufficientFunds(err error) bool { return CodeOf(err) == ErrCodeInsufficientFunds }

// IsRentalNotExpired returns true if err is a RENTAL_NOT_EXPIRED error.
func IsRentalNotExpired(err error) bool { return CodeOf(err) == ErrCodeRentalNotExpired }

// IsRentalNotFound returns true if err is a RENTAL_NOT_FOUND error.
func IsRentalNotFound(err error) bool { return CodeOf(err) == ErrCodeRentalNotFound }

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }
