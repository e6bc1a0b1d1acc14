package sendflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ClientPaymentIdSize is the size of a client payment id in bytes.
const ClientPaymentIdSize = 32

// ClientPaymentId is an opaque, client-generated idempotency key for one
// logical send attempt. It is generated exactly once when a send flow is
// opened and carried by value through every subsequent preflight and pay
// request, letting the wallet node deduplicate a payment that gets submitted
// twice, e.g. after a double tap or a resumed flow. It must never be
// regenerated on retry.
type ClientPaymentId [ClientPaymentIdSize]byte

// NewClientPaymentId generates a fresh random client payment id.
func NewClientPaymentId() (ClientPaymentId, error) {
	var cid ClientPaymentId
	if _, err := rand.Read(cid[:]); err != nil {
		return cid, fmt.Errorf("could not generate client payment "+
			"id: %w", err)
	}

	return cid, nil
}

// String returns the hex encoding of the client payment id.
func (c ClientPaymentId) String() string {
	return hex.EncodeToString(c[:])
}
