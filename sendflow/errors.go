package sendflow

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

var (
	// ErrOperationInFlight is returned when an operation is attempted on
	// a flow that already has one outstanding.
	ErrOperationInFlight = errors.New("another send flow operation is " +
		"in flight")

	// ErrFlowComplete is returned when an operation is attempted on a
	// flow that already submitted its payment.
	ErrFlowComplete = errors.New("send flow has already completed")

	// ErrHighPriorityUnavailable is returned when the high confirmation
	// priority is selected but the preflight returned no high-tier fee
	// estimate, which happens when the balance cannot cover it.
	ErrHighPriorityUnavailable = errors.New("high confirmation priority " +
		"is unavailable: balance cannot cover its fee")

	// ErrPriorityRequired is returned when an onchain payment is
	// submitted without selecting a confirmation priority.
	ErrPriorityRequired = errors.New("onchain payments require a " +
		"confirmation priority")
)

// AmountExceedsBalanceError is a locally produced validation error, returned
// without any network round-trip when the requested amount exceeds the
// balance's maximum sendable for the payment's kind.
type AmountExceedsBalanceError struct {
	// Amount is the rejected amount.
	Amount btcutil.Amount

	// MaxSendable is the maximum spendable amount for the kind.
	MaxSendable btcutil.Amount

	// Kind is the payment kind whose balance was insufficient.
	Kind PaymentKind
}

// Error returns a human readable description of the validation failure.
func (e *AmountExceedsBalanceError) Error() string {
	return fmt.Sprintf("amount %v exceeds the %v balance's max "+
		"sendable %v", e.Amount, e.Kind, e.MaxSendable)
}

// AmountOutOfRangeError is a locally produced validation error for LNURL-pay
// amounts outside the service's advertised sendable range.
type AmountOutOfRangeError struct {
	// Amount is the rejected amount.
	Amount lnwire.MilliSatoshi

	// MinSendable is the service's minimum sendable amount.
	MinSendable lnwire.MilliSatoshi

	// MaxSendable is the service's maximum sendable amount.
	MaxSendable lnwire.MilliSatoshi
}

// Error returns a human readable description of the validation failure.
func (e *AmountOutOfRangeError) Error() string {
	return fmt.Sprintf("amount %v is outside the sendable range "+
		"[%v, %v]", e.Amount, e.MinSendable, e.MaxSendable)
}

// InvalidStateError is returned when an operation is invoked from a flow
// state it doesn't belong to, e.g. paying before a successful preflight.
type InvalidStateError struct {
	// Op is the rejected operation.
	Op string

	// State is the flow's current state.
	State State
}

// Error returns a human readable description of the misuse.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %v from send flow state %T", e.Op, e.State)
}
