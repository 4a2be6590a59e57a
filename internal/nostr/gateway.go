package nostr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSignerUnavailable means no signer capability is configured.
	ErrSignerUnavailable = errors.New("no signer configured")

	// ErrSigningDeclined means a signer is present but the signing operation
	// itself failed (for example, the operator declined).
	ErrSigningDeclined = errors.New("signing declined")
)

// Gateway adapts the external signer capability. It is a pure boundary: it
// detects absence before any use and never retries, because retrying an
// operator-authorization action is a caller decision.
type Gateway struct {
	signer Signer
}

// NewGateway creates a signing gateway. A nil signer is valid and makes every
// SignEvent call fail with ErrSignerUnavailable.
func NewGateway(signer Signer) *Gateway {
	return &Gateway{signer: signer}
}

// Available reports whether a signer capability is configured.
func (g *Gateway) Available() bool {
	return g.signer != nil
}

// SignEvent builds the unsigned event via build and requests a signature.
// The payload is only built once a signer is known to be present.
func (g *Gateway) SignEvent(ctx context.Context, build func() (*EventTemplate, error)) (*Event, error) {
	if g.signer == nil {
		return nil, ErrSignerUnavailable
	}

	template, err := build()
	if err != nil {
		return nil, fmt.Errorf("build event: %w", err)
	}

	signed, err := g.signer.Sign(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningDeclined, err)
	}

	return signed, nil
}
