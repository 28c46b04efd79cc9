package expand

import "strings"

// Safety holds the policy flags attached to every outcome. They are asserted
// by construction, not verified against the text.
type Safety struct {
	PIIRemoved      bool
	EducationalOnly bool
	DisclaimerAdded bool
}

// Outcome is the post-processed result of one expansion.
type Outcome struct {
	ExpandedText     string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Safety           Safety
}

// PostProcess extracts the continuation after the last priming marker,
// ensures the disclaimer is present and derives token counts.
func PostProcess(raw string, inputTokens, totalTokens int) Outcome {
	text := raw
	if i := strings.LastIndex(raw, PrimingMarker); i >= 0 {
		text = raw[i+len(PrimingMarker):]
	}
	text = strings.TrimSpace(text)

	if !strings.Contains(text, Disclaimer) {
		text += "\n\n*" + Disclaimer + "*"
	}

	return Outcome{
		ExpandedText:     text,
		PromptTokens:     max(inputTokens, 0),
		CompletionTokens: max(totalTokens-inputTokens, 0),
		Safety: Safety{
			PIIRemoved:      true,
			EducationalOnly: true,
			DisclaimerAdded: true,
		},
	}
}
