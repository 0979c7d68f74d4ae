package chathub

import (
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"anonpair/backend/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator() *Coordinator {
	return NewCoordinator(nullStore{}, 16, discardLogger())
}

func connect(t *testing.T, c *Coordinator, id string) *testClient {
	t.Helper()
	client := newTestClient(id)
	require.NoError(t, c.Connect(client))
	return client
}

func tags(interests ...string) models.Criteria {
	return models.Criteria{Interests: interests}
}

func TestConnectDuplicateIdentityRefused(t *testing.T) {
	c := newTestCoordinator()
	connect(t, c, "user_A")

	err := c.Connect(newTestClient("user_A"))
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.Equal(t, 1, c.Stats().OnlineUsers)
}

func TestStartSearchNoCandidateStaysQueued(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")

	c.StartSearch("user_A", tags("music"))

	assert.Empty(t, clientA.events(), "no match means no immediate feedback")
	assert.True(t, c.pool.Contains("user_A"))
	p, _ := c.registry.Get("user_A")
	assert.Equal(t, StateSearching, p.State)
}

func TestStartSearchCommonInterestMatches(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientB := connect(t, c, "user_B")

	c.StartSearch("user_A", tags("music"))
	c.StartSearch("user_B", tags("sports", "music"))

	evsA := clientA.events()
	evsB := clientB.events()
	require.Len(t, evsA, 1)
	require.Len(t, evsB, 1)
	assert.Equal(t, models.EventPartnerFound, evsA[0].Event)
	assert.Equal(t, models.PartnerFoundPayload{PartnerID: "user_B"}, evsA[0].Data)
	assert.Equal(t, models.EventPartnerFound, evsB[0].Event)
	assert.Equal(t, models.PartnerFoundPayload{PartnerID: "user_A"}, evsB[0].Data)

	assert.Zero(t, c.pool.Len(), "both sides must leave the waiting pool")
	partnerOfA, _ := c.pairs.PartnerOf("user_A")
	partnerOfB, _ := c.pairs.PartnerOf("user_B")
	assert.Equal(t, "user_B", partnerOfA)
	assert.Equal(t, "user_A", partnerOfB)
	assert.Equal(t, 1, c.Stats().ActiveChats)
}

func TestStartSearchDisjointInterestsNoMatch(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientC := connect(t, c, "user_C")

	c.StartSearch("user_A", tags("music"))
	c.StartSearch("user_C", tags("cars"))

	assert.Empty(t, clientA.events())
	assert.Empty(t, clientC.events())
	assert.Equal(t, 2, c.pool.Len())
	assert.Zero(t, c.Stats().ActiveChats)
}

func TestEmptyInterestsMatchOldestCandidate(t *testing.T) {
	c := newTestCoordinator()
	connect(t, c, "user_A")
	connect(t, c, "user_B")
	clientC := connect(t, c, "user_C")

	c.StartSearch("user_A", tags("hiking"))
	c.StartSearch("user_B", tags("chess"))
	c.StartSearch("user_C", models.Criteria{})

	evs := clientC.events()
	require.Len(t, evs, 1)
	assert.Equal(t, models.PartnerFoundPayload{PartnerID: "user_A"}, evs[0].Data,
		"empty interests must match the oldest waiting candidate")
	assert.True(t, c.pool.Contains("user_B"), "user_B keeps waiting")
}

func TestNoSelfMatch(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")

	c.StartSearch("user_A", models.Criteria{})

	assert.Empty(t, clientA.events())
	assert.True(t, c.pool.Contains("user_A"))
	_, paired := c.pairs.PartnerOf("user_A")
	assert.False(t, paired)
}

func TestStartSearchWhilePairedRejected(t *testing.T) {
	c := newTestCoordinator()
	connect(t, c, "user_A")
	connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))

	c.StartSearch("user_A", tags("go"))

	p, _ := c.registry.Get("user_A")
	assert.Equal(t, StatePaired, p.State, "pairing must be released before searching again")
	assert.Zero(t, c.pool.Len())
}

func TestRelayMessage(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientB := connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))
	clientA.events()
	clientB.events()

	c.RelayMessage("user_A", "hello")

	evs := clientB.events()
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventReceiveMessage, evs[0].Event)
	payload, ok := evs[0].Data.(models.ReceiveMessagePayload)
	require.True(t, ok)
	assert.Equal(t, "user_A", payload.Sender)
	assert.Equal(t, "hello", payload.Text)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`), payload.Timestamp)
	assert.Empty(t, clientA.events(), "sender gets no echo")

	pairing, ok := c.pairs.PairingFor("user_A")
	require.True(t, ok)
	require.Len(t, pairing.Transcript, 1)
	assert.Equal(t, "user_A", pairing.Transcript[0].SenderID)
	assert.Equal(t, "hello", pairing.Transcript[0].Text)
}

func TestRelayMessageWithoutPartnerDropsSilently(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")

	c.RelayMessage("user_A", "anyone there?")

	assert.Empty(t, clientA.events())
}

func TestRelayTyping(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientB := connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))
	clientA.events()
	clientB.events()

	c.RelayTyping("user_A", true)
	c.RelayTyping("user_A", false)

	evs := clientB.events()
	require.Len(t, evs, 2)
	assert.Equal(t, models.EventPartnerTyping, evs[0].Event)
	assert.Equal(t, models.EventPartnerStopTyping, evs[1].Event)
	assert.Nil(t, evs[0].Data)
}

func TestStopSearchIdempotentOnIdle(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")

	c.StopSearch("user_A")
	c.StopSearch("user_A")

	evs := clientA.events()
	require.Len(t, evs, 2)
	for _, ev := range evs {
		assert.Equal(t, models.EventSearchStopped, ev.Event)
	}
	p, _ := c.registry.Get("user_A")
	assert.Equal(t, StateIdle, p.State)
}

func TestStopSearchWhileSearching(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	c.StartSearch("user_A", tags("music"))

	c.StopSearch("user_A")

	evs := clientA.events()
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventSearchStopped, evs[0].Event)
	assert.False(t, c.pool.Contains("user_A"))
	p, _ := c.registry.Get("user_A")
	assert.Equal(t, StateIdle, p.State)
}

func TestStopSearchWhilePairedCascades(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientB := connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))
	clientA.events()
	clientB.events()
	pairing, _ := c.pairs.PairingFor("user_A")

	c.StopSearch("user_A")

	evsB := clientB.events()
	require.Len(t, evsB, 1)
	assert.Equal(t, models.EventPartnerDisconnected, evsB[0].Event)

	evsA := clientA.events()
	require.Len(t, evsA, 1)
	assert.Equal(t, models.EventSearchStopped, evsA[0].Event)

	pa, _ := c.registry.Get("user_A")
	pb, _ := c.registry.Get("user_B")
	assert.Equal(t, StateIdle, pa.State)
	assert.Equal(t, StateIdle, pb.State)
	assert.NotNil(t, pairing.EndedAt)
	assert.Zero(t, c.Stats().ActiveChats)
}

func TestDisconnectPartnerNotifiesPartnerOnly(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientB := connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))
	clientA.events()
	clientB.events()

	c.DisconnectPartner("user_A")

	evsB := clientB.events()
	require.Len(t, evsB, 1)
	assert.Equal(t, models.EventPartnerDisconnected, evsB[0].Event)
	assert.Empty(t, clientA.events(), "the initiator already knows")

	pa, _ := c.registry.Get("user_A")
	pb, _ := c.registry.Get("user_B")
	assert.Equal(t, StateIdle, pa.State)
	assert.Equal(t, StateIdle, pb.State)
	assert.Equal(t, 2, c.Stats().OnlineUsers, "both connections stay up")
}

func TestDisconnectCascadesToPartner(t *testing.T) {
	c := newTestCoordinator()
	clientA := connect(t, c, "user_A")
	clientB := connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))
	clientA.events()
	clientB.events()
	pairing, _ := c.pairs.PairingFor("user_A")

	c.Disconnect("user_A")

	evsB := clientB.events()
	require.Len(t, evsB, 1, "exactly one partner-disconnected, addressed to B")
	assert.Equal(t, models.EventPartnerDisconnected, evsB[0].Event)

	_, exists := c.registry.Get("user_A")
	assert.False(t, exists)
	pb, _ := c.registry.Get("user_B")
	assert.Equal(t, StateIdle, pb.State)
	_, paired := c.pairs.PartnerOf("user_B")
	assert.False(t, paired)
	assert.NotNil(t, pairing.EndedAt)
	assert.Equal(t, 1, c.Stats().OnlineUsers)
	assert.True(t, clientA.closed, "hub closes the departing client")
}

func TestDisconnectWhileSearchingLeavesPool(t *testing.T) {
	c := newTestCoordinator()
	connect(t, c, "user_A")
	c.StartSearch("user_A", tags("music"))

	c.Disconnect("user_A")

	assert.Zero(t, c.pool.Len())
	assert.Zero(t, c.Stats().OnlineUsers)
}

func TestStatsSnapshot(t *testing.T) {
	c := newTestCoordinator()
	connect(t, c, "user_A")
	connect(t, c, "user_B")
	connect(t, c, "user_C")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))

	c.Disconnect("user_C")

	stats := c.Stats()
	assert.Equal(t, uint64(3), stats.TotalUsers, "counts everyone ever registered")
	assert.Equal(t, 1, stats.ActiveChats)
	assert.Equal(t, 2, stats.OnlineUsers)
}

func TestPersistenceFlow(t *testing.T) {
	store := new(mockStore)
	store.On("SaveParticipant", mock.Anything).Return(nil)
	store.On("UpdateParticipant", mock.Anything, mock.Anything).Return(nil)
	store.On("DeleteParticipant", "user_A").Return(nil)
	store.On("CreateSession", mock.AnythingOfType("*models.ChatSession")).Return(nil)
	store.On("AppendMessage", mock.AnythingOfType("*models.ChatMessage")).Return(nil)
	store.On("CloseSession", mock.Anything, mock.Anything).Return(nil)
	store.On("AddToSearchQueue", mock.Anything).Return(nil)
	store.On("RemoveFromSearchQueue", mock.Anything).Return(nil)

	c := NewCoordinator(store, 64, discardLogger())
	go c.Run()

	connect(t, c, "user_A")
	connect(t, c, "user_B")
	c.StartSearch("user_A", tags("go"))
	c.StartSearch("user_B", tags("go"))
	c.RelayMessage("user_A", "hello")
	c.Disconnect("user_A")

	c.Close() // drains the queue

	store.AssertNumberOfCalls(t, "SaveParticipant", 2)
	store.AssertNumberOfCalls(t, "CreateSession", 1)
	store.AssertNumberOfCalls(t, "AppendMessage", 1)
	store.AssertNumberOfCalls(t, "CloseSession", 1)
	store.AssertNumberOfCalls(t, "DeleteParticipant", 1)
}
