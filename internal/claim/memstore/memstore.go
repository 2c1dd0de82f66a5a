// Package memstore provides an in-memory implementation of claim.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/fnol/internal/claim"
)

// Store holds claims in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	claims map[string]*claim.Claim
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{claims: make(map[string]*claim.Claim)}
}

// Get retrieves a claim by ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*claim.Claim, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, false, nil
	}
	return copyClaim(c), true, nil
}

// Put stores a copy of the claim.
func (s *Store) Put(_ context.Context, c *claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ID] = copyClaim(c)
	return nil
}

// Recent returns up to limit non-terminal claims, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*claim.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		if c.Status.Terminal() {
			continue
		}
		out = append(out, copyClaim(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// copyClaim returns a deep enough copy that callers can mutate slices
// without racing the store.
func copyClaim(c *claim.Claim) *claim.Claim {
	cp := *c
	cp.Documents = append([]string(nil), c.Documents...)
	cp.Verdicts = append([]claim.Verdict(nil), c.Verdicts...)
	cp.MismatchFlags = append([]string(nil), c.MismatchFlags...)
	cp.MissingInfo = append([]string(nil), c.MissingInfo...)
	cp.NextSteps = append([]string(nil), c.NextSteps...)
	cp.StatusHistory = append([]claim.StatusChange(nil), c.StatusHistory...)
	if c.Estimate != nil {
		est := *c.Estimate
		cp.Estimate = &est
	}
	return &cp
}
