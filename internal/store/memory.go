package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		messages: make(map[string][]models.ChatMessage),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, userID string) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) AppendMessages(_ context.Context, sessionID string, startSeq int, msgs []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	if have := len(s.messages[sessionID]); startSeq != have {
		return fmt.Errorf("sequence gap for session %s: have %d messages, got start %d", sessionID, have, startSeq)
	}
	s.messages[sessionID] = append(s.messages[sessionID], msgs...)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]models.ChatMessage, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *MemoryStore) SaveArtifacts(_ context.Context, sessionID string, artifacts models.Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	applyArtifacts(session, artifacts)
	session.UpdatedAt = time.Now()
	return nil
}
