package chathub

import "anonpair/backend/internal/models"

// Client is the transport-side view of one connected participant. It
// abstracts the underlying connection so the coordinator can manage
// different transports uniformly.
type Client interface {
	// UserID returns the identity token bound to the connection.
	UserID() string

	// SendChannel returns the channel the coordinator writes outbound
	// events to. Events for one client are delivered in the order the
	// coordinator processed the operations that produced them.
	SendChannel() chan<- models.OutboundEvent

	// Run starts the client's read and write pumps.
	Run()

	// Close shuts down the outbound side of the client.
	Close()
}
