package chathub

import (
	"fmt"

	"github.com/samber/lo"

	"anonpair/backend/internal/models"
)

// Matcher scans the waiting pool for a compatible partner and commits
// the resulting pairing. It runs inside the coordinator's critical
// section, so a commit is atomic with respect to every other operation.
type Matcher struct {
	registry *Registry
	pool     *WaitingPool
	pairs    *PairRegistry
}

func NewMatcher(registry *Registry, pool *WaitingPool, pairs *PairRegistry) *Matcher {
	return &Matcher{registry: registry, pool: pool, pairs: pairs}
}

// Compatible reports whether two interest sets allow a match: a side
// with no tags matches anyone, otherwise the sets must share at least
// one tag. Comparison is exact and case-sensitive. Language and gender
// are deliberately not consulted.
func Compatible(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	return lo.Some(a, b)
}

// TryMatch looks for the oldest compatible candidate for the seeker,
// skipping the seeker itself and anyone already paired. On a match it
// removes both sides from the pool, transitions them to Paired and links
// them in the pair registry, then returns the new pairing. With no
// compatible candidate the seeker stays queued and nil is returned.
func (m *Matcher) TryMatch(seekerID string, criteria models.Criteria) (*Pairing, error) {
	for _, cand := range m.pool.Candidates() {
		if cand.ID == seekerID {
			continue
		}
		if _, paired := m.pairs.PartnerOf(cand.ID); paired {
			continue
		}
		if !Compatible(criteria.Interests, cand.Criteria.Interests) {
			continue
		}

		// Pool invariant: both sides must be in Searching state.
		if err := m.searchable(seekerID); err != nil {
			return nil, err
		}
		if err := m.searchable(cand.ID); err != nil {
			return nil, err
		}

		m.pool.Dequeue(seekerID)
		m.pool.Dequeue(cand.ID)
		if err := m.registry.SetState(seekerID, StatePaired, cand.ID); err != nil {
			return nil, err
		}
		if err := m.registry.SetState(cand.ID, StatePaired, seekerID); err != nil {
			return nil, err
		}

		pairing := NewPairing(seekerID, cand.ID)
		m.pairs.Link(pairing)
		return pairing, nil
	}
	return nil, nil
}

func (m *Matcher) searchable(id string) error {
	p, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("match %s: %w", id, ErrUnknownIdentity)
	}
	if p.State != StateSearching {
		return fmt.Errorf("match %s: %s -> %s: %w", id, p.State, StatePaired, ErrIllegalTransition)
	}
	return nil
}
