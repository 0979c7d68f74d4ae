package models

import (
	"encoding/json"
	"time"
)

// Inbound event names carried by the client envelope.
const (
	EventSetPreferences    = "set-preferences"
	EventStartSearch       = "start-search"
	EventStopSearch        = "stop-search"
	EventSendMessage       = "send-message"
	EventTyping            = "typing"
	EventStopTyping        = "stop-typing"
	EventDisconnectPartner = "disconnect-partner"
)

// Outbound event names.
const (
	EventPartnerFound        = "partner-found"
	EventReceiveMessage      = "receive-message"
	EventPartnerTyping       = "partner-typing"
	EventPartnerStopTyping   = "partner-stop-typing"
	EventPartnerDisconnected = "partner-disconnected"
	EventSearchStopped       = "search-stopped"
)

// InboundEvent is the envelope a client sends over the socket.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundEvent is the envelope delivered to a client. Data is omitted
// for payload-less events (partner-typing, partner-disconnected, ...).
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// SendMessagePayload is the body of a send-message event.
type SendMessagePayload struct {
	Text string `json:"text" validate:"required,max=4096"`
}

// PartnerFoundPayload is emitted to both sides of a new pairing.
type PartnerFoundPayload struct {
	PartnerID string `json:"partnerId"`
}

// ReceiveMessagePayload is the relayed message as seen by the partner.
type ReceiveMessagePayload struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// wireTimeLayout matches the JSON serialization of a JavaScript Date,
// which the frontend parses. Millisecond precision, always UTC.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

// WireTimestamp formats t the way the wire contract requires.
func WireTimestamp(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}
