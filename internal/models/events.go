// Package models defines the wire types of the HTTP API and the Kafka events.
package models

// Event types.
const (
	EventNoteGenerated      = "clinical.note.generated"
	EventExpansionGenerated = "clinical.expansion.generated"
)

// NoteGenerated is emitted after a note has been produced from audio or text.
// It carries metadata only; transcripts and notes never leave the service.
type NoteGenerated struct {
	EventType   string `json:"eventType"`
	RequestID   string `json:"requestId"`
	Timestamp   int64  `json:"timestamp"`
	UserType    string `json:"userType"`
	NoteType    string `json:"noteType"`
	Tier        string `json:"tier,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	CacheSource string `json:"cacheSource,omitempty"`
	Summarizer  string `json:"summarizer"`
	DurationMs  int64  `json:"durationMs"`
}

// ExpansionGenerated is emitted after a brief has been expanded.
type ExpansionGenerated struct {
	EventType        string `json:"eventType"`
	RequestID        string `json:"requestId"`
	Timestamp        int64  `json:"timestamp"`
	Audience         string `json:"audience"`
	Tone             string `json:"tone"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	PIIRemoved       bool   `json:"piiRemoved"`
	DurationMs       int64  `json:"durationMs"`
}
