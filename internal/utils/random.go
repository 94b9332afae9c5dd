package utils // package utils provides helper functions for secret generation and hashing

import (
    "crypto/rand"     // secure random number generation
    "crypto/sha256"   // SHA-256 hashing for stored token lookups
    "encoding/base64" // URL-safe encoding of opaque tokens
    "encoding/hex"    // hex encoding of digests
    "fmt"             // fixed-width formatting of numeric codes
    "math/big"        // uniform integer sampling
)

// OpaqueTokenBytes is the entropy of refresh and invitation tokens (256 bits).
const OpaqueTokenBytes = 32

// NewOpaqueToken returns 256 bits of cryptographically secure randomness
// encoded as unpadded base64url.  The value carries no claims; it is only a
// handle that the server looks up by hash.
func NewOpaqueToken() (string, error) {
    buf := make([]byte, OpaqueTokenBytes)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of a raw token.  Only digests are
// persisted so a leaked table cannot be replayed against the API.
func HashToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

var sixDigitSpace = big.NewInt(1_000_000)

// NewNumericCode returns a uniformly random six digit code.  Leading zeros
// are kept, so the result is always exactly six ASCII digits.
func NewNumericCode() (string, error) {
    n, err := rand.Int(rand.Reader, sixDigitSpace)
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("%06d", n.Int64()), nil
}
