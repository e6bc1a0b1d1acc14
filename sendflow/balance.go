package sendflow

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

// PaymentKind distinguishes which segment of the wallet's balance a payment
// spends from.
type PaymentKind uint8

const (
	// KindOnchain pays from the onchain balance.
	KindOnchain PaymentKind = iota

	// KindLightning pays from the lightning balance.
	KindLightning
)

// String returns a human readable payment kind.
func (k PaymentKind) String() string {
	switch k {
	case KindOnchain:
		return "onchain"

	case KindLightning:
		return "lightning"

	default:
		return "unknown"
	}
}

// Balance is a snapshot of the wallet's spendable funds, segmented by
// payment kind. It is supplied by the wallet node when the send flow is
// opened and treated as read-only input to local validation; the node itself
// re-checks feasibility against its live balance during preflight.
type Balance struct {
	// Onchain is the spendable onchain balance.
	Onchain btcutil.Amount

	// Lightning is the spendable lightning balance.
	Lightning btcutil.Amount
}

// MaxSendable returns the maximum amount spendable for the given payment
// kind.
func (b Balance) MaxSendable(kind PaymentKind) btcutil.Amount {
	switch kind {
	case KindOnchain:
		return b.Onchain

	case KindLightning:
		return b.Lightning

	default:
		return 0
	}
}

// kindOf returns the payment kind a payment method spends as.
func kindOf(method payuri.PaymentMethod) PaymentKind {
	switch method.(type) {
	case *payuri.Onchain:
		return KindOnchain

	case *payuri.Invoice:
		return KindLightning

	case *payuri.Offer:
		return KindLightning

	case *payuri.LnurlPayRequest:
		return KindLightning

	default:
		panic("unreachable: non-exhaustive PaymentMethod switch")
	}
}
