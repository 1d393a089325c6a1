package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier tagged with prefix, e.g. "prd_6f1c...".
func New(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// Short returns the first n hex characters of a fresh random UUID.
func Short(n int) string {
	raw := uuid.New()
	hex := fmt.Sprintf("%x", raw[:])
	if n <= 0 || n > len(hex) {
		return hex
	}
	return hex[:n]
}
