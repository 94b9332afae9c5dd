package utils

import (
    "crypto/rand"
    "sync"
    "time"

    "github.com/oklog/ulid/v2"
)

var (
    entropyMu sync.Mutex
    entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewReceiptID returns a lexicographically sortable, unguessable identifier
// stamped with t. Receipts are handed to donors, so the entropy comes from
// crypto/rand.
func NewReceiptID(t time.Time) string {
    entropyMu.Lock()
    defer entropyMu.Unlock()
    return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
