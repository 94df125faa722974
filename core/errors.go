package core

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes why a ledger operation failed.
type ErrorCode string

const (
	// CodeTemporal covers operations attempted too early or too late.
	CodeTemporal ErrorCode = "temporal"

	// CodeAuthorization covers calls from the wrong identity.
	CodeAuthorization ErrorCode = "authorization"

	// CodeValue covers zero, insufficient or null inputs.
	CodeValue ErrorCode = "value"

	// CodeState covers operations invalid for the ended/not-ended state.
	CodeState ErrorCode = "state"

	// CodeInsufficientFunds covers withdrawals with nothing to withdraw.
	CodeInsufficientFunds ErrorCode = "insufficient_funds"

	// CodeTransfer covers funds that could not be moved in or out.
	CodeTransfer ErrorCode = "transfer"
)

var (
	ErrAuctionClosed      = errors.New("auction already closed for bidding")
	ErrAuctionNotYetEnded = errors.New("auction deadline not reached")
	ErrAlreadyEnded       = errors.New("auction already ended")
	ErrNotEnded           = errors.New("auction not ended")
	ErrNotOrganizer       = errors.New("caller is not the organizer")
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrEmptyIdentity      = errors.New("identity must not be empty")
	ErrBidTooLow          = errors.New("bid below minimum increment")
	ErrCustodyOverflow    = errors.New("bid would overflow custody")
	ErrNothingToWithdraw  = errors.New("no pending return to withdraw")
	ErrNoFees             = errors.New("no fees to withdraw")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrInvalidConfig      = errors.New("invalid ledger config")
)

// LedgerError is returned by every failing ledger operation.
type LedgerError struct {
	// Code is the failure category.
	Code ErrorCode

	// Op names the operation that failed, e.g. "place_bid".
	Op string

	// Reason is the sentinel identifying the failed precondition.
	Reason error

	// Err is the underlying cause, set for transfer failures.
	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *LedgerError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

func newError(op string, code ErrorCode, reason error) *LedgerError {
	return &LedgerError{Code: code, Op: op, Reason: reason}
}

func transferError(op string, cause error) *LedgerError {
	return &LedgerError{Code: CodeTransfer, Op: op, Reason: ErrTransferFailed, Err: cause}
}

// CodeOf returns the category of a ledger error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
