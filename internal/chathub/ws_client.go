package chathub

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"anonpair/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

var validate = validator.New()

// WebSocketClient implements Client on a gorilla/websocket connection.
// The read pump decodes inbound envelopes and dispatches them to the
// hub; the write pump drains the send channel and keeps the connection
// alive with pings.
type WebSocketClient struct {
	id   string
	conn *websocket.Conn
	hub  *Coordinator
	send chan models.OutboundEvent
	log  *slog.Logger
}

func NewWebSocketClient(hub *Coordinator, conn *websocket.Conn, userID string, log *slog.Logger) *WebSocketClient {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketClient{
		id:   userID,
		conn: conn,
		hub:  hub,
		send: make(chan models.OutboundEvent, sendBufferSize),
		log:  log,
	}
}

func (c *WebSocketClient) UserID() string { return c.id }

func (c *WebSocketClient) SendChannel() chan<- models.OutboundEvent { return c.send }

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send channel, which stops the write pump and closes
// the connection. The read pump ends when the connection does.
func (c *WebSocketClient) Close() {
	close(c.send)
}

// readPump delivers inbound events to the hub. The connection closing,
// for whatever reason, ends the participant's whole session.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Disconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "user_id", c.id, "err", err)
			}
			break
		}

		var ev models.InboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Warn("malformed envelope dropped", "user_id", c.id, "err", err)
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch routes one inbound event to the matching hub operation.
// Unknown events are dropped; the remote side never sees an error.
func (c *WebSocketClient) dispatch(ev models.InboundEvent) {
	switch ev.Event {
	case models.EventSetPreferences:
		var criteria models.Criteria
		if !c.decode(ev, &criteria) {
			return
		}
		c.hub.SetPreferences(c.id, criteria)
	case models.EventStartSearch:
		var criteria models.Criteria
		if len(ev.Data) > 0 && !c.decode(ev, &criteria) {
			return
		}
		c.hub.StartSearch(c.id, criteria)
	case models.EventStopSearch:
		c.hub.StopSearch(c.id)
	case models.EventSendMessage:
		var msg models.SendMessagePayload
		if !c.decode(ev, &msg) {
			return
		}
		c.hub.RelayMessage(c.id, msg.Text)
	case models.EventTyping:
		c.hub.RelayTyping(c.id, true)
	case models.EventStopTyping:
		c.hub.RelayTyping(c.id, false)
	case models.EventDisconnectPartner:
		c.hub.DisconnectPartner(c.id)
	default:
		c.log.Warn("unknown event dropped", "user_id", c.id, "event", ev.Event)
	}
}

func (c *WebSocketClient) decode(ev models.InboundEvent, out any) bool {
	if err := json.Unmarshal(ev.Data, out); err != nil {
		c.log.Warn("invalid payload dropped", "user_id", c.id, "event", ev.Event, "err", err)
		return false
	}
	if err := validate.Struct(out); err != nil {
		c.log.Warn("payload validation failed", "user_id", c.id, "event", ev.Event, "err", err)
		return false
	}
	return true
}

// writePump writes events from the send channel to the WebSocket and
// pings on an interval to keep the connection alive.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by the hub.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
			// Flush whatever queued up behind the first event.
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.conn.WriteJSON(next); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
