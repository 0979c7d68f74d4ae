package chathub

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is one message of an active pairing's transcript.
type TranscriptEntry struct {
	SenderID string
	Text     string
	SentAt   time.Time
}

// Pairing is the ephemeral record of two participants in conversation.
// The pair is unordered; UserA/UserB carry no meaning. The transcript is
// append-only while the pairing is active and may outlive the in-memory
// record in durable storage.
type Pairing struct {
	ID         string
	UserA      string
	UserB      string
	StartedAt  time.Time
	EndedAt    *time.Time
	Transcript []TranscriptEntry
}

func NewPairing(a, b string) *Pairing {
	return &Pairing{
		ID:        uuid.New().String(),
		UserA:     a,
		UserB:     b,
		StartedAt: time.Now(),
	}
}

// Peer returns the other side of the pairing.
func (p *Pairing) Peer(id string) string {
	if id == p.UserA {
		return p.UserB
	}
	return p.UserA
}

// Append records a message in the transcript.
func (p *Pairing) Append(sender, text string, at time.Time) TranscriptEntry {
	entry := TranscriptEntry{SenderID: sender, Text: text, SentAt: at}
	p.Transcript = append(p.Transcript, entry)
	return entry
}

// Close marks the pairing ended. Closing twice keeps the first
// timestamp.
func (p *Pairing) Close(at time.Time) {
	if p.EndedAt == nil {
		ended := at
		p.EndedAt = &ended
	}
}

// PairRegistry is the bidirectional mapping of paired identities, the
// single source of truth for who is paired with whom. Both directions
// are always added and removed together. Not safe for concurrent use;
// the Coordinator serializes access.
type PairRegistry struct {
	byUser map[string]*Pairing
}

func NewPairRegistry() *PairRegistry {
	return &PairRegistry{byUser: make(map[string]*Pairing)}
}

// Link records an active pairing under both identities.
func (r *PairRegistry) Link(p *Pairing) {
	r.byUser[p.UserA] = p
	r.byUser[p.UserB] = p
}

// Unlink removes both directions and returns the pairing together with
// the other side. Unlinking an unpaired identity reports ok == false.
func (r *PairRegistry) Unlink(id string) (p *Pairing, partner string, ok bool) {
	p, ok = r.byUser[id]
	if !ok {
		return nil, "", false
	}
	partner = p.Peer(id)
	delete(r.byUser, id)
	delete(r.byUser, partner)
	return p, partner, true
}

// PartnerOf returns the identity paired with id, if any. An unpaired
// identity is not an error.
func (r *PairRegistry) PartnerOf(id string) (string, bool) {
	p, ok := r.byUser[id]
	if !ok {
		return "", false
	}
	return p.Peer(id), true
}

// PairingFor returns the active pairing containing id, if any.
func (r *PairRegistry) PairingFor(id string) (*Pairing, bool) {
	p, ok := r.byUser[id]
	return p, ok
}

// ActiveCount returns the number of active pairings.
func (r *PairRegistry) ActiveCount() int { return len(r.byUser) / 2 }
