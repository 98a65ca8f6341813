package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports how many conversations are live in this process.
type SessionCounter interface {
	ActiveSessions() int
}

type MetricsHandler struct {
	started  time.Time
	version  string
	info     map[string]interface{}
	sessions SessionCounter
}

// NewMetricsHandler serves process and composer status next to the static
// deployment info (models, output format, store). sessions may be nil.
func NewMetricsHandler(version string, info map[string]interface{}, sessions SessionCounter) *MetricsHandler {
	return &MetricsHandler{
		started:  time.Now(),
		version:  version,
		info:     info,
		sessions: sessions,
	}
}

const bytesPerMB = 1 << 20

type MetricsResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	StartedAt string                 `json:"started_at"`
	Uptime    string                 `json:"uptime"`
	Composer  ComposerMetrics        `json:"composer"`
	API       map[string]interface{} `json:"api"`
}

// ComposerMetrics is the live state of the service process.
type ComposerMetrics struct {
	ActiveSessions int    `json:"active_sessions"`
	Goroutines     int    `json:"goroutines"`
	HeapMB         uint64 `json:"heap_mb"`
	GCRuns         uint32 `json:"gc_runs"`
	GoVersion      string `json:"go_version"`
}

func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	composer := ComposerMetrics{
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     mem.HeapAlloc / bytesPerMB,
		GCRuns:     mem.NumGC,
		GoVersion:  runtime.Version(),
	}
	if h.sessions != nil {
		composer.ActiveSessions = h.sessions.ActiveSessions()
	}

	c.JSON(http.StatusOK, MetricsResponse{
		Status:    "ok",
		Version:   h.version,
		StartedAt: h.started.UTC().Format(time.RFC3339),
		Uptime:    formatUptime(time.Since(h.started)),
		Composer:  composer,
		API:       h.info,
	})
}

// formatUptime renders d as e.g. "1h2m3.50s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := (d % time.Minute).Seconds()
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%.2fs", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%.2fs", m, s)
	default:
		return fmt.Sprintf("%.2fs", s)
	}
}
