package chathub

import (
	"time"

	"github.com/stretchr/testify/mock"

	"anonpair/backend/internal/models"
)

// mockStore is a testify double for the storage.Store interface, used
// where a test asserts persistence calls.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveParticipant(p *models.Participant) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *mockStore) UpdateParticipant(id string, fields map[string]any) error {
	args := m.Called(id, fields)
	return args.Error(0)
}

func (m *mockStore) DeleteParticipant(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *mockStore) CreateSession(s *models.ChatSession) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *mockStore) AppendMessage(msg *models.ChatMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *mockStore) CloseSession(sessionID string, endedAt time.Time) error {
	args := m.Called(sessionID, endedAt)
	return args.Error(0)
}

func (m *mockStore) AddToSearchQueue(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *mockStore) RemoveFromSearchQueue(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// nullStore satisfies storage.Store with no-ops for tests that do not
// care about persistence.
type nullStore struct{}

func (nullStore) SaveParticipant(*models.Participant) error { return nil }
func (nullStore) UpdateParticipant(string, map[string]any) error { return nil }
func (nullStore) DeleteParticipant(string) error { return nil }
func (nullStore) CreateSession(*models.ChatSession) error { return nil }
func (nullStore) AppendMessage(*models.ChatMessage) error { return nil }
func (nullStore) CloseSession(string, time.Time) error { return nil }
func (nullStore) AddToSearchQueue(string) error { return nil }
func (nullStore) RemoveFromSearchQueue(string) error { return nil }

// testClient is an in-memory Client that captures emitted events.
type testClient struct {
	id     string
	send   chan models.OutboundEvent
	closed bool
}

func newTestClient(id string) *testClient {
	return &testClient{id: id, send: make(chan models.OutboundEvent, 16)}
}

func (c *testClient) UserID() string { return c.id }
func (c *testClient) SendChannel() chan<- models.OutboundEvent { return c.send }
func (c *testClient) Run() {}

func (c *testClient) Close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// events drains everything currently buffered.
func (c *testClient) events() []models.OutboundEvent {
	var out []models.OutboundEvent
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
