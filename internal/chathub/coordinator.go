package chathub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"anonpair/backend/internal/models"
	"anonpair/backend/internal/storage"
)

// Coordinator receives lifecycle events from the transport layer and
// drives the registry, waiting pool, matcher and pair registry. One
// mutex totally orders all operations system-wide: an operation
// completes its full state transition, including any match it triggers,
// before the next begins. Only outbound channel sends and persistence
// tasks escape the critical section, and both are non-blocking.
type Coordinator struct {
	mu sync.Mutex

	clients  map[string]Client
	registry *Registry
	pool     *WaitingPool
	pairs    *PairRegistry
	matcher  *Matcher

	persist *Persister
	log     *slog.Logger
}

// Stats is a read-only snapshot of the hub counters. Field names match
// the public stats endpoint.
type Stats struct {
	TotalUsers  uint64 `json:"totalUsers"`
	ActiveChats int    `json:"activeChats"`
	OnlineUsers int    `json:"onlineUsers"`
}

func NewCoordinator(store storage.Store, persistQueueSize int, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	registry := NewRegistry()
	pool := NewWaitingPool()
	pairs := NewPairRegistry()
	return &Coordinator{
		clients:  make(map[string]Client),
		registry: registry,
		pool:     pool,
		pairs:    pairs,
		matcher:  NewMatcher(registry, pool, pairs),
		persist:  NewPersister(store, persistQueueSize, log),
		log:      log,
	}
}

// Run starts the persistence worker and blocks until Close is called.
func (c *Coordinator) Run() { c.persist.Run() }

// Close drains outstanding persistence tasks and stops the worker.
func (c *Coordinator) Close() { c.persist.Close() }

// Connect registers the client's identity and starts its pumps. A
// duplicate identity means the transport layer handed out the same
// token twice; the connection is refused.
func (c *Coordinator) Connect(client Client) error {
	id := client.UserID()

	c.mu.Lock()
	p, err := c.registry.Register(id)
	if err != nil {
		c.mu.Unlock()
		c.log.Error("connect refused", "user_id", id, "err", err)
		return err
	}
	c.clients[id] = client
	c.mu.Unlock()

	c.persist.SaveParticipant(&models.Participant{
		ID:          id,
		DisplayName: p.DisplayName,
		Interests:   pq.StringArray(p.Criteria.Interests),
		Language:    p.Criteria.Language,
		Gender:      p.Criteria.Gender,
		Country:     p.Criteria.Country,
		IsAvailable: true,
	})
	client.Run()
	c.log.Info("participant connected", "user_id", id)
	return nil
}

// SetPreferences replaces the participant's matching profile.
func (c *Coordinator) SetPreferences(id string, criteria models.Criteria) {
	criteria = criteria.WithDefaults()

	c.mu.Lock()
	err := c.registry.UpdateCriteria(id, criteria)
	c.mu.Unlock()

	if err != nil {
		c.log.Error("set preferences failed", "user_id", id, "err", err)
		return
	}
	c.persist.UpdateParticipant(id, map[string]any{
		"interests": pq.StringArray(criteria.Interests),
		"language":  criteria.Language,
		"gender":    criteria.Gender,
		"country":   criteria.Country,
	})
}

// StartSearch puts the participant into the waiting pool with the given
// criteria snapshot and scans for a partner. On a match both sides get
// partner-found; otherwise the participant simply stays queued, since
// the pool itself is the retry mechanism.
func (c *Coordinator) StartSearch(id string, criteria models.Criteria) {
	criteria = criteria.WithDefaults()

	c.mu.Lock()
	p, ok := c.registry.Get(id)
	if !ok {
		c.mu.Unlock()
		c.log.Error("start search failed", "user_id", id, "err", ErrUnknownIdentity)
		return
	}
	switch p.State {
	case StateIdle:
		if err := c.registry.SetState(id, StateSearching, ""); err != nil {
			c.mu.Unlock()
			c.log.Error("start search failed", "user_id", id, "err", err)
			return
		}
	case StateSearching:
		// Re-searching refreshes the criteria snapshot below.
	case StatePaired:
		c.mu.Unlock()
		c.log.Error("start search while paired", "user_id", id, "err", ErrIllegalTransition)
		return
	}
	c.pool.Enqueue(id, criteria)

	pairing, err := c.matcher.TryMatch(id, criteria)
	if err != nil {
		c.mu.Unlock()
		c.log.Error("match aborted", "user_id", id, "err", err)
		return
	}
	var partnerID string
	if pairing != nil {
		partnerID = pairing.Peer(id)
		c.emitLocked(id, models.OutboundEvent{
			Event: models.EventPartnerFound,
			Data:  models.PartnerFoundPayload{PartnerID: partnerID},
		})
		c.emitLocked(partnerID, models.OutboundEvent{
			Event: models.EventPartnerFound,
			Data:  models.PartnerFoundPayload{PartnerID: id},
		})
	}
	c.mu.Unlock()

	if pairing == nil {
		c.persist.UpdateParticipant(id, map[string]any{
			"is_searching": true,
			"is_available": true,
		})
		c.persist.AddToSearchQueue(id)
		return
	}

	c.persist.RemoveFromSearchQueue(id)
	c.persist.RemoveFromSearchQueue(partnerID)
	c.persist.CreateSession(&models.ChatSession{
		SessionID: pairing.ID,
		User1ID:   pairing.UserA,
		User2ID:   pairing.UserB,
		IsActive:  true,
		StartedAt: pairing.StartedAt,
	})
	c.persist.UpdateParticipant(id, pairedFields(partnerID))
	c.persist.UpdateParticipant(partnerID, pairedFields(id))
	c.log.Info("partners matched",
		"session_id", pairing.ID, "user_a", pairing.UserA, "user_b", pairing.UserB)
}

// StopSearch takes the participant out of the waiting pool. If it is
// currently paired the pairing is torn down first, exactly as if the
// participant had asked for a new partner. Stopping an idle participant
// is a no-op apart from the search-stopped acknowledgement.
func (c *Coordinator) StopSearch(id string) {
	c.mu.Lock()
	p, ok := c.registry.Get(id)
	if !ok {
		c.mu.Unlock()
		c.log.Error("stop search failed", "user_id", id, "err", ErrUnknownIdentity)
		return
	}
	var (
		pairing   *Pairing
		partnerID string
	)
	switch p.State {
	case StatePaired:
		pairing, partnerID = c.cascadeLocked(id)
	case StateSearching:
		c.pool.Dequeue(id)
		if err := c.registry.SetState(id, StateIdle, ""); err != nil {
			c.mu.Unlock()
			c.log.Error("stop search failed", "user_id", id, "err", err)
			return
		}
	}
	c.emitLocked(id, models.OutboundEvent{Event: models.EventSearchStopped})
	c.mu.Unlock()

	c.persist.RemoveFromSearchQueue(id)
	c.persist.UpdateParticipant(id, idleFields())
	if pairing != nil {
		c.persist.CloseSession(pairing.ID, *pairing.EndedAt)
		c.persist.UpdateParticipant(partnerID, idleFields())
	}
}

// RelayMessage appends the message to the active pairing's transcript
// and delivers it to the partner. A participant without a partner gets
// no reply: the partner may have just vanished, a race the design
// tolerates rather than rejects.
func (c *Coordinator) RelayMessage(id, text string) {
	c.mu.Lock()
	pairing, ok := c.pairs.PairingFor(id)
	if !ok {
		c.mu.Unlock()
		return
	}
	partnerID := pairing.Peer(id)
	entry := pairing.Append(id, text, time.Now())
	c.emitLocked(partnerID, models.OutboundEvent{
		Event: models.EventReceiveMessage,
		Data: models.ReceiveMessagePayload{
			Sender:    id,
			Text:      text,
			Timestamp: models.WireTimestamp(entry.SentAt),
		},
	})
	sessionID := pairing.ID
	c.mu.Unlock()

	c.persist.AppendMessage(&models.ChatMessage{
		SessionID: sessionID,
		SenderID:  id,
		Text:      text,
	})
}

// RelayTyping forwards a typing indicator to the partner. No state
// change, nothing persisted.
func (c *Coordinator) RelayTyping(id string, isTyping bool) {
	event := models.EventPartnerTyping
	if !isTyping {
		event = models.EventPartnerStopTyping
	}

	c.mu.Lock()
	partnerID, ok := c.pairs.PartnerOf(id)
	if ok {
		c.emitLocked(partnerID, models.OutboundEvent{Event: event})
	}
	c.mu.Unlock()
}

// DisconnectPartner tears down the caller's pairing. Only the partner is
// notified; the initiator already knows.
func (c *Coordinator) DisconnectPartner(id string) {
	c.mu.Lock()
	pairing, partnerID := c.cascadeLocked(id)
	c.mu.Unlock()

	if pairing == nil {
		return
	}
	c.persist.CloseSession(pairing.ID, *pairing.EndedAt)
	c.persist.UpdateParticipant(id, idleFields())
	c.persist.UpdateParticipant(partnerID, idleFields())
}

// Disconnect handles a closed connection: leave the waiting pool,
// cascade to the partner if paired, then deregister the identity
// entirely.
func (c *Coordinator) Disconnect(id string) {
	c.mu.Lock()
	c.pool.Dequeue(id)
	pairing, partnerID := c.cascadeLocked(id)
	client := c.clients[id]
	delete(c.clients, id)
	_, err := c.registry.Remove(id)
	c.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if err != nil {
		c.log.Error("disconnect of unregistered identity", "user_id", id, "err", err)
		return
	}

	c.persist.RemoveFromSearchQueue(id)
	if pairing != nil {
		c.persist.CloseSession(pairing.ID, *pairing.EndedAt)
		c.persist.UpdateParticipant(partnerID, idleFields())
	}
	c.persist.DeleteParticipant(id)
	c.log.Info("participant disconnected", "user_id", id)
}

// Stats returns a consistent snapshot of the hub counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalUsers:  c.registry.TotalRegistered(),
		ActiveChats: c.pairs.ActiveCount(),
		OnlineUsers: len(c.clients),
	}
}

// cascadeLocked tears down the pairing containing id: the pair registry
// entry is removed, the pairing closed, both sides reset to Idle and
// only the partner notified. Returns nil when id has no active pairing.
// Caller holds the lock.
func (c *Coordinator) cascadeLocked(id string) (*Pairing, string) {
	pairing, partnerID, ok := c.pairs.Unlink(id)
	if !ok {
		return nil, ""
	}
	pairing.Close(time.Now())
	if err := c.registry.SetState(id, StateIdle, ""); err != nil {
		c.log.Error("cascade reset failed", "user_id", id, "err", err)
	}
	if err := c.registry.SetState(partnerID, StateIdle, ""); err != nil {
		c.log.Error("cascade reset failed", "user_id", partnerID, "err", err)
	}
	c.emitLocked(partnerID, models.OutboundEvent{Event: models.EventPartnerDisconnected})
	return pairing, partnerID
}

// emitLocked hands an event to the target's send channel. The buffered
// channel keeps per-participant ordering; a client too slow to drain its
// buffer loses events rather than stalling the hub. Caller holds the
// lock.
func (c *Coordinator) emitLocked(id string, ev models.OutboundEvent) {
	client, ok := c.clients[id]
	if !ok {
		return
	}
	select {
	case client.SendChannel() <- ev:
	default:
		c.log.Warn("send buffer full, event dropped", "user_id", id, "event", ev.Event)
	}
}

func pairedFields(partnerID string) map[string]any {
	return map[string]any{
		"is_searching":    false,
		"is_available":    false,
		"current_partner": partnerID,
	}
}

func idleFields() map[string]any {
	return map[string]any{
		"is_searching":    false,
		"is_available":    true,
		"current_partner": nil,
	}
}
