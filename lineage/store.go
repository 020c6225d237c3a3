package lineage

import (
	"errors"
	"time"
)

// ErrRefNotFound is returned by stores when a reference does not resolve,
// either because it was never written or because its TTL elapsed.
var ErrRefNotFound = errors.New("context reference not found")

// Store is the pluggable key/value backend holding context records between
// emission and consumption. Durability and eviction beyond the TTL contract
// are the implementation's concern; callers treat resolution failure as
// recoverable (a fresh root is minted).
type Store interface {
	// Get resolves a reference, returning ErrRefNotFound when absent or
	// expired.
	Get(ref string) (*Context, error)
	// Set stores a context under ref for at least ttl; a non-positive ttl
	// stores without expiry.
	Set(ref string, c *Context, ttl time.Duration) error
}
