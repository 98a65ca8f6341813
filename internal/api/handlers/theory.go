package handlers

import (
	"net/http"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
	"github.com/gin-gonic/gin"
)

type TheoryHandler struct {
	table    *theory.ModeTable
	resolver *theory.Resolver
	palette  *theory.PaletteGenerator
}

func NewTheoryHandler(table *theory.ModeTable, resolver *theory.Resolver, palette *theory.PaletteGenerator) *TheoryHandler {
	return &TheoryHandler{table: table, resolver: resolver, palette: palette}
}

type ModeInfo struct {
	Name      string     `json:"name"`
	Intervals []int      `json:"intervals"`
	Qualities [][]string `json:"qualities"`
}

// Modes lists the configured modes.
func (h *TheoryHandler) Modes(c *gin.Context) {
	names := h.table.Names()
	modes := make([]ModeInfo, 0, len(names))
	for _, name := range names {
		m, _ := h.table.Mode(name)
		modes = append(modes, ModeInfo{Name: m.Name, Intervals: m.Intervals, Qualities: m.Qualities})
	}
	c.JSON(http.StatusOK, gin.H{"modes": modes})
}

type PaletteRequest struct {
	Text string `json:"text"`
	Root string `json:"root"`
	Mode string `json:"mode"`
}

type PaletteResponse struct {
	Key     *theory.Key `json:"key"`
	Palette []string    `json:"palette"`
}

// Palette resolves a key from free text, or takes root and mode directly,
// and returns its diatonic palette. No key is not an error: the response
// carries a null key and an empty palette.
func (h *TheoryHandler) Palette(c *gin.Context) {
	var req PaletteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := PaletteResponse{Palette: []string{}}
	switch {
	case strings.TrimSpace(req.Text) != "":
		if key, ok := h.resolver.Resolve(req.Text); ok {
			resp.Key = &key
			resp.Palette = h.palette.ForKey(key)
		}
	case req.Root != "" && req.Mode != "":
		resp.Palette = h.palette.Generate(req.Root, req.Mode)
		if root, ok := theory.ParsePitchClass(req.Root); ok && len(resp.Palette) > 0 {
			resp.Key = &theory.Key{
				Root:     root,
				RootName: theory.NormalizeSpelling(req.Root),
				Mode:     strings.ToLower(strings.TrimSpace(req.Mode)),
			}
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either text or root and mode are required"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
