package summarize

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)`)

// Extractive is a local fallback that keeps the leading sentences of the
// text up to a character budget. It needs no model and never fails.
type Extractive struct {
	MaxChars int
}

// NewExtractive creates an extractive summarizer.
func NewExtractive(maxChars int) *Extractive {
	if maxChars <= 0 {
		maxChars = 1200
	}
	return &Extractive{MaxChars: maxChars}
}

// Name returns the backend name.
func (e *Extractive) Name() string { return "extractive" }

// Summarize ignores the instruction and returns whole leading sentences.
func (e *Extractive) Summarize(ctx context.Context, _ string, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text = CollapseWhitespace(text)
	if len(text) <= e.MaxChars {
		return text, nil
	}

	var b strings.Builder
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[start:loc[1]])
		start = loc[1]
		if b.Len()+len(sentence)+1 > e.MaxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	if b.Len() == 0 {
		// A single overlong sentence is cut at a word boundary.
		end := e.MaxChars
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
		cut := text[:end]
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		return cut, nil
	}
	return b.String(), nil
}
