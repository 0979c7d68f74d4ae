package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultDisplayName is used until a participant picks a name.
const DefaultDisplayName = "Stranger"

// Defaults applied when set-preferences omits a field.
const (
	DefaultLanguage = "English"
	DefaultGender   = "prefer-not-to-say"
	DefaultCountry  = "Unknown"
)

// Criteria is the matching profile a participant submits with
// set-preferences or start-search. Language, gender and country are
// stored but do not gate matching; only interest tags do.
type Criteria struct {
	Interests []string `json:"interests" validate:"max=32,dive,min=1,max=64"`
	Language  string   `json:"language" validate:"max=64"`
	Gender    string   `json:"gender" validate:"max=32"`
	Country   string   `json:"country" validate:"max=64"`
}

// WithDefaults fills empty fields with the anonymous placeholders the
// frontend expects.
func (c Criteria) WithDefaults() Criteria {
	if c.Interests == nil {
		c.Interests = []string{}
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Gender == "" {
		c.Gender = DefaultGender
	}
	if c.Country == "" {
		c.Country = DefaultCountry
	}
	return c
}

// Participant is the persisted record of one live connection.
// It mirrors the in-memory state held by the chathub registry; the hub
// is authoritative and writes here are best-effort.
type Participant struct {
	// ID is the anonymous identity token (UUID), stable for the
	// lifetime of the connection.
	ID          string `gorm:"primaryKey" json:"id"`
	DisplayName string `gorm:"type:text;default:'Stranger'"`
	// Interests holds the participant's tags for interest-based matching.
	Interests pq.StringArray `gorm:"type:text[]"`
	Language  string         `gorm:"type:text"`
	Gender    string         `gorm:"type:text"`
	Country   string         `gorm:"type:text"`

	// IsSearching / IsAvailable / CurrentPartner mirror the lifecycle
	// state at the last sync point.
	IsSearching    bool
	IsAvailable    bool
	CurrentPartner *string `gorm:"type:uuid"`

	CreatedAt time.Time
}

// BeforeCreate generates an identity token when none was assigned yet.
func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}
