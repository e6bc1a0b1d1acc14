package payuri

import (
	"errors"
	"fmt"
)

var (
	// ErrUriTooLong is returned when refusing to parse an oversized input.
	ErrUriTooLong = errors.New("payment code is too long to parse")

	// ErrUnknownScheme is returned for URIs with a scheme we don't
	// recognize as a payment scheme.
	ErrUnknownScheme = errors.New("unrecognized payment URI scheme")

	// ErrUnknownCode is returned when an input doesn't parse as any known
	// payment code.
	ErrUnknownCode = errors.New("unrecognized payment code")
)

// ParseError is returned when an input is recognized as a particular payment
// code but fails to parse as one.
type ParseError struct {
	// Reason describes what went wrong, suitable for display.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

// Error returns a human readable description of the parse failure.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Reason, e.Err)
	}

	return e.Reason
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrNoMethodForNetwork is returned when a payment code parsed successfully
// but none of its payment methods are valid for the configured network.
type ErrNoMethodForNetwork struct {
	// Network is the name of the configured network.
	Network string
}

// Error returns a human readable description of the mismatch.
func (e *ErrNoMethodForNetwork) Error() string {
	return fmt.Sprintf("payment code is not valid for %v", e.Network)
}
