package moderation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID generates a time-ordered identifier: a fixed-width hex nanosecond
// timestamp followed by four random bytes. IDs sort lexicographically in
// creation order, which the stores rely on for chronological scans.
func NewID() string {
	var suffix [4]byte
	rand.Read(suffix[:])
	return fmt.Sprintf("%016x%s", time.Now().UnixNano(), hex.EncodeToString(suffix[:]))
}
