// Package nostr implements the minimal Nostr surface the assistant needs:
// events with canonical IDs, a signer boundary, and a relay publish client.
package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Tag is a single event tag, an ordered list of strings.
type Tag []string

// Event is a signed Nostr event as transmitted to relays.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// EventTemplate is an unsigned event, the input to the signing gateway.
type EventTemplate struct {
	CreatedAt int64
	Kind      int
	Tags      []Tag
	Content   string
}

// Serialize produces the canonical form of the template for the given author:
// a JSON array [0, pubkey, created_at, kind, tags, content] with HTML escaping
// disabled, per the protocol's ID rules.
func (t *EventTemplate) Serialize(pubkey string) ([]byte, error) {
	tags := t.Tags
	if tags == nil {
		tags = []Tag{}
	}

	arr := []interface{}{0, pubkey, t.CreatedAt, t.Kind, tags, t.Content}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComputeID returns the event ID for the template when authored by pubkey:
// the hex sha256 of the canonical serialization.
func ComputeID(pubkey string, t *EventTemplate) (string, [32]byte, error) {
	serialized, err := t.Serialize(pubkey)
	if err != nil {
		return "", [32]byte{}, err
	}

	digest := sha256.Sum256(serialized)
	return hex.EncodeToString(digest[:]), digest, nil
}
