package store

import (
	"context"
	"errors"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore persists sessions in a relational database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateSession inserts a new session with a random id
func (s *GormStore) CreateSession(ctx context.Context, userID string) (*models.Session, error) {
	session := &models.Session{ID: uuid.NewString(), UserID: userID}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads a session by id
func (s *GormStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// AppendMessages inserts the messages in one transaction. The unique
// (session_id, seq) index rejects a write that would reorder history.
func (s *GormStore) AppendMessages(ctx context.Context, sessionID string, startSeq int, msgs []models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		rows := make([]models.Message, len(msgs))
		for i, m := range msgs {
			rows[i] = models.Message{SessionID: sessionID, Seq: startSeq + i, Role: m.Role, Content: m.Content}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).Where("id = ?", sessionID).Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
	})
}

// ListMessages returns the history of a session in sequence order
func (s *GormStore) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var rows []models.Message
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.ChatMessage, len(rows))
	for i, r := range rows {
		out[i] = models.ChatMessage{Role: r.Role, Content: r.Content}
	}
	return out, nil
}

// SaveArtifacts overwrites the non-nil artifacts on the session row
func (s *GormStore) SaveArtifacts(ctx context.Context, sessionID string, artifacts models.Artifacts) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		applyArtifacts(&session, artifacts)
		return tx.Save(&session).Error
	})
}
