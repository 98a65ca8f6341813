package models

import (
	"time"

	"gorm.io/gorm"
)

// Session is a persisted conversation with the artifacts of its latest turn.
type Session struct {
	ID         string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	UserID     string         `gorm:"index" json:"user_id"`
	LastKey    string         `json:"last_key,omitempty"`
	LastChords []string       `gorm:"serializer:json" json:"last_chords,omitempty"`
	LastNotes  []NoteEvent    `gorm:"serializer:json" json:"last_notes,omitempty"`
	LastMelody []NoteEvent    `gorm:"serializer:json" json:"last_melody,omitempty"`
}

// Message is one committed history entry. Seq orders entries within a session.
type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `gorm:"not null;index:idx_session_seq,unique" json:"session_id"`
	Seq       int       `gorm:"not null;index:idx_session_seq,unique" json:"seq"`
	Role      string    `gorm:"not null" json:"role"`
	Content   string    `gorm:"type:text" json:"content"`
}

// Artifacts are the outputs of a turn saved back onto its session.
// Nil fields leave the stored value unchanged.
type Artifacts struct {
	Key    *string
	Chords []string
	Notes  []NoteEvent
	Melody []NoteEvent
}
