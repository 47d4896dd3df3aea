package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// EventKey identifies the verification-relevant payload of an event.
type EventKey [sha256.Size]byte

// String returns the hex encoding of the key.
func (k EventKey) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the key was never derived.
func (k EventKey) IsZero() bool {
	return k == EventKey{}
}

// DeriveKey hashes the RFC 8785 canonical JSON form of payload. Payloads that
// are equal by value yield equal keys regardless of map ordering.
func DeriveKey(payload any) (EventKey, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventKey{}, fmt.Errorf("derive key: marshal payload: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return EventKey{}, fmt.Errorf("derive key: canonicalize payload: %w", err)
	}

	return sha256.Sum256(canonical), nil
}
