package sendflow

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn"
)

// PaymentRail is the protocol a payment traveled over.
type PaymentRail uint8

const (
	// RailOnchain is an onchain transaction.
	RailOnchain PaymentRail = iota

	// RailInvoice is a BOLT11 invoice payment. LNURL-pay payments also
	// settle over this rail, since they resolve into invoices.
	RailInvoice

	// RailOffer is a BOLT12 offer payment.
	RailOffer
)

// String returns a human readable payment rail.
func (r PaymentRail) String() string {
	switch r {
	case RailOnchain:
		return "onchain"

	case RailInvoice:
		return "invoice"

	case RailOffer:
		return "offer"

	default:
		return "unknown"
	}
}

// PaymentDirection is whether a payment was sent or received.
type PaymentDirection uint8

const (
	// DirectionOutbound is a sent payment.
	DirectionOutbound PaymentDirection = iota

	// DirectionInbound is a received payment.
	DirectionInbound
)

// PaymentStatus is a payment's settlement status.
type PaymentStatus uint8

const (
	// StatusPending is a payment that has been submitted but not yet
	// settled.
	StatusPending PaymentStatus = iota

	// StatusCompleted is a settled payment.
	StatusCompleted

	// StatusFailed is a payment that will never settle.
	StatusFailed
)

// PaymentIndex is the node-assigned index of a created payment, used to look
// the payment up once background synchronization picks it up.
type PaymentIndex struct {
	// CreatedAtMs is the node's creation timestamp in milliseconds since
	// the unix epoch.
	CreatedAtMs int64

	// Id is the node-assigned payment id.
	Id string
}

// Payment is a locally synthesized payment record: outbound, pending, with
// amount and fee taken from the preflight data rather than re-fetched. It
// stands in for the real payment until background synchronization confirms
// it.
type Payment struct {
	// Index is the node-assigned payment index.
	Index PaymentIndex

	// Rail is the protocol the payment traveled over.
	Rail PaymentRail

	// Direction is always DirectionOutbound for send flow results.
	Direction PaymentDirection

	// Status is always StatusPending for send flow results.
	Status PaymentStatus

	// Amount is the amount paid, excluding fees.
	Amount btcutil.Amount

	// Fee is the fee paid, from the preflight estimate.
	Fee btcutil.Amount

	// Note is the sender's private note, if any.
	Note fn.Option[string]

	// Description is the payee-provided description, if any.
	Description fn.Option[string]

	// CreatedAt is when the payment was submitted, by the flow's clock.
	CreatedAt time.Time
}

// SendFlowResult is the terminal artifact of a successful send flow.
type SendFlowResult struct {
	// Payment is the synthesized pending payment.
	Payment Payment
}
