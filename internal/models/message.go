package models

import "gorm.io/gorm"

// ChatMessage is a saved chat message. The embedded gorm.Model provides
// ID, CreatedAt, UpdatedAt, and DeletedAt, which serve as the message ID
// and timestamps.
type ChatMessage struct {
	gorm.Model

	// SessionID is the identifier of the session the message belongs to.
	SessionID string `gorm:"type:uuid;not null;index:idx_session_msg"`
	// SenderID is the anonymous identity of the sender.
	SenderID string `gorm:"type:uuid;not null;index:idx_session_msg"`
	// Text is the message body.
	Text string `gorm:"type:text;not null"`
}
