package voucher

import (
	"errors"
	"fmt"

	"github.com/metrik/metrik/internal/shared"
)

var (
	ErrUnknownType            = errors.New("unknown voucher type")
	ErrBusinessRequired       = errors.New("business is required")
	ErrDateRequired           = errors.New("date is required")
	ErrNoLines                = errors.New("at least one line item required")
	ErrLineKindMismatch       = errors.New("line shape does not match voucher type")
	ErrMaterialCentreRequired = errors.New("material centre is required")
	ErrDestinationRequired    = errors.New("destination material centre is required and must differ from source")
	ErrPartyRequired          = errors.New("party is required")
	ErrItemRequired           = errors.New("item is required")
	ErrZeroQuantity           = errors.New("item quantity cannot be zero")
	ErrNegativeQuantity       = errors.New("item quantity must be positive")
	ErrInvalidPricing         = errors.New("rate and gst must be non-negative and discount between 0 and 100")
	ErrInvalidRole            = errors.New("production lines must be marked input or output")
	ErrOutputRequired         = errors.New("production requires at least one output line")
	ErrAccountRequired        = errors.New("account is required")
	ErrInvalidAmount          = errors.New("line needs either a positive debit or a positive credit")
	ErrCancelReasonRequired   = errors.New("cancellation reason is required")
)

var (
	// ErrNotFound indicates the voucher does not exist for the business.
	ErrNotFound = fmt.Errorf("%w: voucher not found", shared.ErrNotFound)
	// ErrAlreadyCancelled indicates a second cancellation attempt.
	ErrAlreadyCancelled = fmt.Errorf("%w: voucher already cancelled", shared.ErrConflict)
	// ErrNotDeletable indicates a hard delete of anything but an open order.
	ErrNotDeletable = fmt.Errorf("%w: only open orders can be deleted", shared.ErrConflict)
	// ErrDuplicateNumber indicates the number is taken for this type and year.
	ErrDuplicateNumber = fmt.Errorf("%w: voucher number already used in this financial year", shared.ErrConflict)
	// ErrPostingAccountMissing indicates a posting account has not been configured.
	ErrPostingAccountMissing = errors.New("voucher: posting account not configured")
)

// ValidationError reports a structural problem with a voucher draft. It
// unwraps to both the specific sentinel and shared.ErrBadRequest.
type ValidationError struct {
	Err error
	// Line is the 1-based line number, zero for header problems.
	Line    int
	Details string
}

func (e *ValidationError) Error() string {
	msg := "voucher: "
	if e.Line > 0 {
		msg += fmt.Sprintf("line %d: ", e.Line)
	}
	msg += e.Err.Error()
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	return []error{e.Err, shared.ErrBadRequest}
}

func invalid(err error) *ValidationError {
	return &ValidationError{Err: err}
}

func invalidLine(idx int, err error) *ValidationError {
	return &ValidationError{Err: err, Line: idx + 1}
}
