package handlers

import (
	"net/http"

	"github.com/Conceptual-Machines/melodycomp-api/internal/melody"
	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/render"
	"github.com/gin-gonic/gin"
)

type RenderHandler struct {
	renderer *render.Renderer
}

func NewRenderHandler(renderer *render.Renderer) *RenderHandler {
	return &RenderHandler{renderer: renderer}
}

type RenderRequest struct {
	Chords           []string `json:"chords" binding:"required"`
	DurationPerChord float64  `json:"duration_per_chord"`
}

type NotesResponse struct {
	Notes       []models.NoteEvent  `json:"notes"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

func newNotesResponse(notes []models.NoteEvent, diags []models.Diagnostic) NotesResponse {
	if notes == nil {
		notes = []models.NoteEvent{}
	}
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	return NotesResponse{Notes: notes, Diagnostics: diags}
}

// Render voices a chord list. Unknown chords are reported, not rejected.
func (h *RenderHandler) Render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.renderer.Render(req.Chords, req.DurationPerChord)
	c.JSON(http.StatusOK, newNotesResponse(result.Notes, result.Diagnostics))
}

type DecodeRequest struct {
	Events []models.MelodyNotationEvent `json:"events"`
	ABC    string                       `json:"abc"`
}

// DecodeMelody turns melody events, or an ABC tune, into notes.
func (h *RenderHandler) DecodeMelody(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events := req.Events
	if req.ABC != "" {
		parsed, err := melody.ParseABC(req.ABC)
		if err != nil && len(parsed) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		events = parsed
	}
	if events == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "events or abc is required"})
		return
	}

	notes, diags := melody.Decode(events)
	c.JSON(http.StatusOK, newNotesResponse(notes, diags))
}
