package chathub

import (
	"fmt"

	"anonpair/backend/internal/models"
)

// LifecycleState is where a participant sits in the
// idle -> searching -> paired cycle.
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateSearching
	StatePaired
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StatePaired:
		return "paired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Participant is the live, in-memory record of one connection. The
// Registry owns these exclusively; the waiting pool and pair registry
// refer to participants by identity token only, never by copy.
type Participant struct {
	ID          string
	DisplayName string
	Criteria    models.Criteria
	State       LifecycleState
	// PartnerID is set iff State == StatePaired, and is always
	// symmetric: the partner's PartnerID points back here.
	PartnerID string
}

// Registry tracks live participant identities and their lifecycle
// state. It does no locking of its own; the Coordinator serializes all
// access through its critical section.
type Registry struct {
	participants    map[string]*Participant
	totalRegistered uint64
}

func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]*Participant)}
}

// Register creates a participant in Idle state. A duplicate identity is
// a transport-layer bug.
func (r *Registry) Register(id string) (*Participant, error) {
	if _, ok := r.participants[id]; ok {
		return nil, fmt.Errorf("register %s: %w", id, ErrDuplicateIdentity)
	}
	p := &Participant{
		ID:          id,
		DisplayName: models.DefaultDisplayName,
		Criteria:    models.Criteria{}.WithDefaults(),
		State:       StateIdle,
	}
	r.participants[id] = p
	r.totalRegistered++
	return p, nil
}

func (r *Registry) Get(id string) (*Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// UpdateCriteria replaces the participant's matching profile. No
// lifecycle transition is involved.
func (r *Registry) UpdateCriteria(id string, c models.Criteria) error {
	p, ok := r.participants[id]
	if !ok {
		return fmt.Errorf("update criteria %s: %w", id, ErrUnknownIdentity)
	}
	p.Criteria = c.WithDefaults()
	return nil
}

// SetState applies a lifecycle transition. Transitions outside the
// table (idle->searching, searching->idle, searching->paired,
// paired->idle) are rejected. Entering StatePaired requires a partner;
// leaving it clears the partner reference.
func (r *Registry) SetState(id string, next LifecycleState, partner string) error {
	p, ok := r.participants[id]
	if !ok {
		return fmt.Errorf("set state %s: %w", id, ErrUnknownIdentity)
	}
	if !legalTransition(p.State, next) {
		return fmt.Errorf("set state %s: %s -> %s: %w", id, p.State, next, ErrIllegalTransition)
	}
	if next == StatePaired && partner == "" {
		return fmt.Errorf("set state %s: paired without partner: %w", id, ErrIllegalTransition)
	}
	p.State = next
	if next == StatePaired {
		p.PartnerID = partner
	} else {
		p.PartnerID = ""
	}
	return nil
}

func legalTransition(from, to LifecycleState) bool {
	switch from {
	case StateIdle:
		return to == StateSearching
	case StateSearching:
		return to == StateIdle || to == StatePaired
	case StatePaired:
		return to == StateIdle
	default:
		return false
	}
}

// Remove deregisters the identity and returns its final snapshot.
func (r *Registry) Remove(id string) (*Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return nil, fmt.Errorf("remove %s: %w", id, ErrUnknownIdentity)
	}
	delete(r.participants, id)
	return p, nil
}

func (r *Registry) Len() int { return len(r.participants) }

// TotalRegistered counts every identity ever registered, including ones
// that have since disconnected.
func (r *Registry) TotalRegistered() uint64 { return r.totalRegistered }
