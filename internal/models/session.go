package models

import "time"

// ChatSession is the persisted record of a 1-on-1 conversation between
// two matched participants. The pair is unordered; User1/User2 carry no
// meaning beyond storage.
type ChatSession struct {
	// SessionID is the unique identifier for the session (UUID).
	SessionID string `gorm:"primaryKey"`
	User1ID   string `gorm:"type:uuid;index"`
	User2ID   string `gorm:"type:uuid;index"`
	// IsActive is false once either side left the conversation.
	IsActive  bool
	StartedAt time.Time
	// EndedAt is set when the session closes.
	EndedAt *time.Time
}
