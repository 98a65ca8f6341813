package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/api/middleware"
	"github.com/Conceptual-Machines/melodycomp-api/internal/conversation"
	"github.com/Conceptual-Machines/melodycomp-api/internal/logger"
	"github.com/Conceptual-Machines/melodycomp-api/internal/melody"
	"github.com/Conceptual-Machines/melodycomp-api/internal/midiexport"
	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/store"
	"github.com/gin-gonic/gin"
)

const (
	turnTimeoutSecs   = 120
	melodyTimeoutSecs = 180
)

type SessionHandler struct {
	manager *conversation.Manager
	melody  *melody.Service
}

// NewSessionHandler serves the session routes. melodySvc may be nil, in
// which case melody generation answers 503.
func NewSessionHandler(manager *conversation.Manager, melodySvc *melody.Service) *SessionHandler {
	return &SessionHandler{manager: manager, melody: melodySvc}
}

type TurnRequest struct {
	Message string `json:"message" binding:"required"`
}

type TurnResponse struct {
	SessionID string `json:"session_id"`
	*conversation.TurnResult
}

type SessionResponse struct {
	Session *models.Session      `json:"session"`
	History []models.ChatMessage `json:"history"`
}

// Create starts an empty conversation owned by the caller.
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.manager.Create(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		logger.Error("Failed to create session", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{Session: session, History: []models.ChatMessage{}})
}

// Get returns a session with its history and latest artifacts.
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	history, err := h.manager.History(c.Request.Context(), session.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: session, History: history})
}

// Turn runs one conversational turn.
func (h *SessionHandler) Turn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	h.runTurn(c, session.ID, req.Message)
}

// Chat is Turn with the session bound to the browser cookie. A missing or
// foreign session is replaced with a new one.
func (h *SessionHandler) Chat(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	sessionID := middleware.ConversationID(c)
	if sessionID != "" {
		session, err := h.manager.Session(ctx, sessionID)
		if err != nil || session.UserID != userID {
			sessionID = ""
		}
	}
	if sessionID == "" {
		session, err := h.manager.Create(ctx, userID)
		if err != nil {
			h.fail(c, err)
			return
		}
		sessionID = session.ID
		if err := middleware.BindConversation(c, sessionID); err != nil {
			logger.Warn("Failed to save session cookie", logger.WithContext(c).Merge(logger.Fields{"error": err.Error()}))
		}
	}

	h.runTurn(c, sessionID, req.Message)
}

func (h *SessionHandler) runTurn(c *gin.Context, sessionID, message string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), turnTimeoutSecs*time.Second)
	defer cancel()

	log.Printf("🎹 Turn request for session %s from user %s", sessionID, middleware.GetUserID(c))
	result, err := h.manager.Turn(ctx, sessionID, message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TurnResponse{SessionID: sessionID, TurnResult: result})
}

type MelodyRequest struct {
	Chords []string `json:"chords"`
}

// Melody writes a melody over the given chords, or the session's last
// progression, and stores it on the session.
func (h *SessionHandler) Melody(c *gin.Context) {
	if h.melody == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "melody generation is not configured"})
		return
	}
	var req MelodyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	session, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	chords := req.Chords
	if len(chords) == 0 {
		chords = session.LastChords
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), melodyTimeoutSecs*time.Second)
	defer cancel()

	result, err := h.melody.Generate(ctx, chords)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.manager.SaveMelody(ctx, session.ID, result.Notes); err != nil {
		logger.Warn("Failed to save melody", logger.WithContext(c).Merge(logger.Fields{"error": err.Error()}))
	}
	c.JSON(http.StatusOK, result)
}

// MIDI downloads the session's chords, melody or both as a standard MIDI file.
func (h *SessionHandler) MIDI(c *gin.Context) {
	part, err := midiexport.ParsePart(c.Query("part"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}

	data, err := midiexport.Export(part, session.LastNotes, session.LastMelody)
	if err != nil {
		h.fail(c, err)
		return
	}

	filename := fmt.Sprintf("melodycomp-%s-%s.mid", shortID(session.ID), part)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "audio/midi", data)
}

// loadOwned writes a 404 and reports false when the session does not exist
// or belongs to another user.
func (h *SessionHandler) loadOwned(c *gin.Context, id string) (*models.Session, bool) {
	session, err := h.manager.Session(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if session.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": store.ErrNotFound.Error()})
		return nil, false
	}
	return session, true
}

// fail maps domain errors to status codes. Parser and provider details stay
// in the logs.
func (h *SessionHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, conversation.ErrNoProgression):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": conversation.FailureMessage})
	case errors.Is(err, conversation.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, melody.ErrNoChords):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, melody.ErrNoMelody):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, midiexport.ErrNothingToExport):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "generation timed out"})
	default:
		logger.Error("Session request failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "request_id": c.GetString("request_id")})
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
