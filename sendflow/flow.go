package sendflow

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn"
)

// Flow drives a single send flow through its states, serializing operations
// so that at most one resolve/preflight/pay call is in flight at a time.
// Concurrent calls fail fast with ErrOperationInFlight rather than queueing,
// since a queued duplicate of a user action is never what the caller wants.
//
// A Flow is single-use: once Pay succeeds the flow is complete and every
// further operation fails with ErrFlowComplete. Sending again means opening
// a new Flow, which gets its own client payment id.
type Flow struct {
	mu sync.Mutex

	// busy is set while an operation is in flight. The mutex is not held
	// across node round-trips, only around state transitions, so busy is
	// what actually excludes concurrent operations.
	busy bool

	// state is the current position in the flow. Nil once complete.
	state State

	// cid is the flow's client payment id, retained after completion.
	cid ClientPaymentId

	// result is set once Pay succeeds.
	result *SendFlowResult
}

// NewFlow opens a send flow in the NeedUri state.
func NewFlow(cfg *Config, balance Balance) (*Flow, error) {
	state, err := NewNeedUri(cfg, balance)
	if err != nil {
		return nil, err
	}

	return &Flow{
		state: state,
		cid:   state.Cid(),
	}, nil
}

// Cid returns the flow's client payment id. It is fixed at creation and
// never changes, no matter how many times operations are retried.
func (f *Flow) Cid() ClientPaymentId {
	return f.cid
}

// State returns the current state, or nil once the flow is complete.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Result returns the flow's result once Pay has succeeded, or None.
func (f *Flow) Result() fn.Option[SendFlowResult] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.result == nil {
		return fn.None[SendFlowResult]()
	}

	return fn.Some(*f.result)
}

// begin marks an operation as in flight and returns the current state.
func (f *Flow) begin() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.result != nil {
		return nil, ErrFlowComplete
	}
	if f.busy {
		return nil, ErrOperationInFlight
	}

	f.busy = true

	return f.state, nil
}

// end records an operation's outcome. A nil next state leaves the flow
// where it was.
func (f *Flow) end(next State, result *SendFlowResult) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.busy = false
	if next != nil {
		f.state = next
	}
	if result != nil {
		f.result = result
		f.state = nil
	}
}

// ResolveAndMaybePreflight resolves a raw payment string, advancing to
// NeedAmount, or directly to Preflighted when the resolved method carries a
// fixed amount and its immediate preflight succeeds.
//
// The flow must be at NeedUri. A resolution error leaves it there; an
// immediate-preflight error advances it to NeedAmount and returns the
// preflight error, so the caller may retry the preflight from there.
func (f *Flow) ResolveAndMaybePreflight(ctx context.Context,
	rawUri string) (State, error) {

	state, err := f.begin()
	if err != nil {
		return nil, err
	}

	needUri, ok := state.(*NeedUri)
	if !ok {
		f.end(nil, nil)
		return nil, &InvalidStateError{
			Op:    "resolve",
			State: state,
		}
	}

	next, err := needUri.ResolveAndMaybePreflight(ctx, rawUri)
	f.end(next, nil)
	if err != nil {
		return next, err
	}

	return next, nil
}

// Preflight validates the amount and checks payment feasibility with the
// node, advancing to Preflighted.
//
// The flow must be at NeedAmount. On failure it stays there and Preflight
// may be retried with a corrected amount.
func (f *Flow) Preflight(ctx context.Context, amount btcutil.Amount,
	payerNote fn.Option[string]) (*Preflighted, error) {

	state, err := f.begin()
	if err != nil {
		return nil, err
	}

	needAmount, ok := state.(*NeedAmount)
	if !ok {
		f.end(nil, nil)
		return nil, &InvalidStateError{
			Op:    "preflight",
			State: state,
		}
	}

	next, err := needAmount.Preflight(ctx, amount, payerNote)
	if err != nil {
		f.end(nil, nil)
		return nil, err
	}

	f.end(next, nil)

	return next, nil
}

// Pay submits the preflighted payment and completes the flow.
//
// The flow must be at Preflighted. On failure it stays there and Pay may be
// retried; the node deduplicates resubmissions by the flow's client payment
// id (or, for invoices, by payment hash), so a retry after an ambiguous
// failure cannot double-spend.
func (f *Flow) Pay(ctx context.Context, note fn.Option[string],
	priority fn.Option[ConfirmationPriority]) (*SendFlowResult, error) {

	state, err := f.begin()
	if err != nil {
		return nil, err
	}

	preflighted, ok := state.(*Preflighted)
	if !ok {
		f.end(nil, nil)
		return nil, &InvalidStateError{
			Op:    "pay",
			State: state,
		}
	}

	result, err := preflighted.Pay(ctx, note, priority)
	if err != nil {
		f.end(nil, nil)
		return nil, err
	}

	f.end(nil, result)

	return result, nil
}
