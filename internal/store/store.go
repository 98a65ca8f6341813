package store

import (
	"context"
	"errors"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store persists sessions, their ordered message history and the artifacts
// of their latest turn.
type Store interface {
	CreateSession(ctx context.Context, userID string) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// AppendMessages writes msgs with sequence numbers startSeq, startSeq+1, ...
	AppendMessages(ctx context.Context, sessionID string, startSeq int, msgs []models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	SaveArtifacts(ctx context.Context, sessionID string, artifacts models.Artifacts) error
}

func applyArtifacts(s *models.Session, a models.Artifacts) {
	if a.Key != nil {
		s.LastKey = *a.Key
	}
	if a.Chords != nil {
		s.LastChords = a.Chords
	}
	if a.Notes != nil {
		s.LastNotes = a.Notes
	}
	if a.Melody != nil {
		s.LastMelody = a.Melody
	}
}
