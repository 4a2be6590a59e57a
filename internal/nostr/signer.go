package nostr

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Signer is the externally supplied signing capability. Implementations may
// prompt a human operator, so both operations can fail with a decline.
type Signer interface {
	// PublicKey returns the signer identity as a 32-byte hex public key.
	PublicKey(ctx context.Context) (string, error)

	// Sign fills in the author, ID, and signature of an event template.
	Sign(ctx context.Context, t *EventTemplate) (*Event, error)
}

// LocalSigner signs events with a configured secret key, for headless
// operation and tests.
type LocalSigner struct {
	priv   *secp256k1.PrivateKey
	pubkey string
}

// NewLocalSigner creates a signer from a 32-byte hex secret key.
func NewLocalSigner(secretHex string) (*LocalSigner, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secret key must be 32 bytes, got %d", len(raw))
	}

	priv := secp256k1.PrivKeyFromBytes(raw)

	// x-only public key: drop the parity byte of the compressed form.
	pub := priv.PubKey().SerializeCompressed()[1:]

	return &LocalSigner{
		priv:   priv,
		pubkey: hex.EncodeToString(pub),
	}, nil
}

// PublicKey implements Signer.
func (s *LocalSigner) PublicKey(ctx context.Context) (string, error) {
	return s.pubkey, nil
}

// Sign implements Signer.
func (s *LocalSigner) Sign(ctx context.Context, t *EventTemplate) (*Event, error) {
	id, digest, err := ComputeID(s.pubkey, t)
	if err != nil {
		return nil, err
	}

	sig, err := schnorr.Sign(s.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign event: %w", err)
	}

	tags := t.Tags
	if tags == nil {
		tags = []Tag{}
	}

	return &Event{
		ID:        id,
		PubKey:    s.pubkey,
		CreatedAt: t.CreatedAt,
		Kind:      t.Kind,
		Tags:      tags,
		Content:   t.Content,
		Sig:       hex.EncodeToString(sig.Serialize()),
	}, nil
}
