package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainEvent   = "phasetrack/event/v1"
	DomainPayload = "phasetrack/payload/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventDigest computes the content-addressed digest of a dispatched event.
// Two events with the same kind, state, payload and seq share a digest, so
// the journal can detect duplicate writes.
func EventDigest(kind, state string, payload IRObject, seq int64) (string, error) {
	obj := IRObject{
		"kind":    IRString(kind),
		"state":   IRString(state),
		"payload": payload,
		"seq":     IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// PayloadHash computes the digest of a payload alone.
func PayloadHash(payload IRObject) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// MustEventDigest is like EventDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventDigest(kind, state string, payload IRObject, seq int64) string {
	d, err := EventDigest(kind, state, payload, seq)
	if err != nil {
		panic(err)
	}
	return d
}
