package models

// ExpandRequest is the JSON body of POST /v1/expand. TargetWords,
// ReadingLevel and IncludeCaliforniaContext are accepted for compatibility
// and ignored. Brief emptiness and length are checked by the expansion
// service after trimming.
type ExpandRequest struct {
	Brief                    string `json:"brief" validate:"max=4000"`
	Audience                 string `json:"audience" validate:"required,oneof=school_staff therapist student parent"`
	Tone                     string `json:"tone" validate:"required,oneof=neutral_clinical supportive plain_language culturally_sensitive formal_report student_friendly parent_friendly crisis_informational"`
	TargetWords              int    `json:"target_words,omitempty"`
	ReadingLevel             string `json:"reading_level,omitempty"`
	IncludeCaliforniaContext *bool  `json:"include_california_context,omitempty"`
}

// TokenUsage reports prompt and completion token counts.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// SafetyFlags are the policy assertions attached to every expansion.
type SafetyFlags struct {
	PIIRemoved      bool `json:"pii_removed"`
	EducationalOnly bool `json:"educational_only"`
	DisclaimerAdded bool `json:"disclaimer_added"`
}

// ExpandResponse is the body returned by POST /v1/expand.
type ExpandResponse struct {
	ExpandedText string      `json:"expanded_text"`
	Model        string      `json:"model"`
	Tokens       TokenUsage  `json:"tokens"`
	Safety       SafetyFlags `json:"safety"`
}

// NoteMetadata echoes the classification of a note.
type NoteMetadata struct {
	UserType string `json:"user_type"`
	NoteType string `json:"note_type"`
}

// TranscribeResponse is returned by the transcription endpoints.
type TranscribeResponse struct {
	OriginalTranscript string       `json:"original_transcript"`
	FormattedText      string       `json:"formatted_text"`
	PromptUsed         string       `json:"prompt_used"`
	Metadata           NoteMetadata `json:"metadata"`
	Fingerprint        string       `json:"fingerprint"`
	CacheHit           bool         `json:"cache_hit"`
}

// SummarizeTextResponse is returned by POST /v1/summarize-text.
type SummarizeTextResponse struct {
	FormattedText string       `json:"formatted_text"`
	PromptUsed    string       `json:"prompt_used"`
	Metadata      NoteMetadata `json:"metadata"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ProbeResponse is returned by liveness and readiness probes.
type ProbeResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}
