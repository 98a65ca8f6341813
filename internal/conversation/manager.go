package conversation

import (
	"context"
	"sync"

	"github.com/Conceptual-Machines/melodycomp-api/internal/logger"
	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/store"
)

// Manager owns one orchestrator per session. Sessions are loaded from the
// store on first use and run independently of each other.
type Manager struct {
	deps  Dependencies
	cfg   Config
	store store.Store

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

func NewManager(deps Dependencies, cfg Config, st store.Store) *Manager {
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		store:    st,
		sessions: make(map[string]*Orchestrator),
	}
}

// Create starts a new persisted session.
func (m *Manager) Create(ctx context.Context, userID string) (*models.Session, error) {
	session, err := m.store.CreateSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[session.ID] = NewOrchestrator(m.deps, m.cfg, NewLog(nil, m.journal(session.ID)))
	m.mu.Unlock()
	return session, nil
}

// ActiveSessions is the number of sessions with an orchestrator in memory.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Session returns the stored session row.
func (m *Manager) Session(ctx context.Context, id string) (*models.Session, error) {
	return m.store.GetSession(ctx, id)
}

// Orchestrator returns the session's orchestrator, hydrating its history
// from the store when the session is not in memory yet.
func (m *Manager) Orchestrator(ctx context.Context, id string) (*Orchestrator, error) {
	m.mu.RLock()
	orch, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return orch, nil
	}

	if _, err := m.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	history, err := m.store.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if orch, ok := m.sessions[id]; ok {
		return orch, nil
	}
	orch = NewOrchestrator(m.deps, m.cfg, NewLog(history, m.journal(id)))
	m.sessions[id] = orch
	return orch, nil
}

// Turn runs one turn on a session and saves its artifacts.
func (m *Manager) Turn(ctx context.Context, id, utterance string) (*TurnResult, error) {
	orch, err := m.Orchestrator(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := orch.Turn(ctx, utterance)
	if err != nil {
		return nil, err
	}

	artifacts := models.Artifacts{Chords: result.Chords, Notes: result.Notes, Melody: []models.NoteEvent{}}
	key := ""
	if result.Key != nil {
		key = result.Key.String()
	}
	artifacts.Key = &key
	if err := m.store.SaveArtifacts(ctx, id, artifacts); err != nil {
		logger.Warn("Failed to save turn artifacts", logger.Fields{"session_id": id, "error": err.Error()})
	}
	return result, nil
}

// SaveMelody stores a generated melody on the session.
func (m *Manager) SaveMelody(ctx context.Context, id string, notes []models.NoteEvent) error {
	return m.store.SaveArtifacts(ctx, id, models.Artifacts{Melody: notes})
}

// History returns the committed messages of a session.
func (m *Manager) History(ctx context.Context, id string) ([]models.ChatMessage, error) {
	orch, err := m.Orchestrator(ctx, id)
	if err != nil {
		return nil, err
	}
	return orch.History(), nil
}

func (m *Manager) journal(sessionID string) Journal {
	return func(ctx context.Context, startSeq int, msgs []models.ChatMessage) error {
		return m.store.AppendMessages(ctx, sessionID, startSeq, msgs)
	}
}
