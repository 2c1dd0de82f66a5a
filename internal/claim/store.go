package claim

import "context"

// Store is the persistence interface for claims. The core treats it as a
// key-value abstraction with a capped recency scan for historical lookup.
type Store interface {
	Get(ctx context.Context, id string) (*Claim, bool, error)
	Put(ctx context.Context, c *Claim) error
	// Recent returns up to limit non-terminal claims, newest first.
	Recent(ctx context.Context, limit int) ([]*Claim, error)
}
