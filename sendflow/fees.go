package sendflow

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn"
)

// ConfirmationPriority selects one of several precomputed onchain
// fee/confirmation-time tradeoffs to submit a payment with. The higher the
// priority, the higher the fee.
type ConfirmationPriority uint8

const (
	// PriorityBackground targets an unhurried confirmation at the lowest
	// fee.
	PriorityBackground ConfirmationPriority = iota

	// PriorityNormal targets confirmation within a few blocks.
	PriorityNormal

	// PriorityHigh targets next-block confirmation.
	PriorityHigh
)

// String returns a human readable confirmation priority.
func (p ConfirmationPriority) String() string {
	switch p {
	case PriorityBackground:
		return "background"

	case PriorityNormal:
		return "normal"

	case PriorityHigh:
		return "high"

	default:
		return "unknown"
	}
}

// FeeEstimate is the estimated fee for an onchain send at one confirmation
// priority.
type FeeEstimate struct {
	// Amount is the estimated total fee.
	Amount btcutil.Amount
}

// OnchainFeeEstimates holds the precomputed fee estimates for each
// confirmation priority, fetched once during preflight. Switching the
// selected priority only reselects among these values, it never re-calls the
// network.
type OnchainFeeEstimates struct {
	// High is the estimate for PriorityHigh. It is legitimately absent
	// when the balance cannot cover the high-tier fee; the user can still
	// send at a lower priority.
	High fn.Option[FeeEstimate]

	// Normal is the estimate for PriorityNormal.
	Normal FeeEstimate

	// Background is the estimate for PriorityBackground.
	Background FeeEstimate
}

// FeeForPriority returns the fee estimate for the given priority. Selecting
// PriorityHigh while the high estimate is absent fails loudly rather than
// silently substituting a lower tier.
func (f *OnchainFeeEstimates) FeeForPriority(
	priority ConfirmationPriority) (btcutil.Amount, error) {

	switch priority {
	case PriorityBackground:
		return f.Background.Amount, nil

	case PriorityNormal:
		return f.Normal.Amount, nil

	case PriorityHigh:
		if !f.High.IsSome() {
			return 0, ErrHighPriorityUnavailable
		}
		return f.High.UnwrapOr(FeeEstimate{}).Amount, nil

	default:
		return 0, fmt.Errorf("unknown confirmation priority: %d",
			priority)
	}
}
