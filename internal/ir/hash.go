package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNetwork = "composer/network/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NetworkHash computes the content-addressed identity of a network archive.
// The archive is canonically marshaled first, so two definitions with the
// same content always hash the same regardless of map order.
func NetworkHash(archive Object) (string, error) {
	canonical, err := MarshalCanonical(archive)
	if err != nil {
		return "", fmt.Errorf("NetworkHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNetwork, canonical), nil
}

// QueryHash returns the identifier of a query: the lowercase hex SHA-256
// of its select text, with no domain prefix.
func QueryHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// MustNetworkHash is like NetworkHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNetworkHash(archive Object) string {
	hash, err := NetworkHash(archive)
	if err != nil {
		panic(err)
	}
	return hash
}
