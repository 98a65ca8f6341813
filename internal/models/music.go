package models

// Message roles used in conversation history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NoteEvent is a single timed note. Times are in beats (quarter notes).
type NoteEvent struct {
	Pitch     int     `json:"pitch"`
	Velocity  int     `json:"velocity"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// MelodyNotationEvent is one melody token as produced by notation conversion.
// Pitch is scientific pitch notation ("C4", "F#5") or "rest".
type MelodyNotationEvent struct {
	Pitch     string  `json:"pitch"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// Diagnostic records an input element that was skipped during conversion.
type Diagnostic struct {
	Index  int    `json:"index"`
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

// ChatMessage is one (role, text) entry of a conversation log.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
