package generate

import (
	"regexp"
	"strings"
)

// Llama 3 chat template tokens.
const (
	beginOfText = "<|begin_of_text|>"
	startHeader = "<|start_header_id|>"
	endHeader   = "<|end_header_id|>"
	endOfTurn   = "<|eot_id|>"
)

// RenderLlama3 renders messages with the Llama 3 instruct template and opens
// a new assistant turn for the model to continue.
func RenderLlama3(messages []Message) string {
	var b strings.Builder
	b.WriteString(beginOfText)
	for _, m := range messages {
		writeHeader(&b, m.Role)
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString(endOfTurn)
	}
	writeHeader(&b, RoleAssistant)
	return b.String()
}

func writeHeader(b *strings.Builder, role string) {
	b.WriteString(startHeader)
	b.WriteString(role)
	b.WriteString(endHeader)
	b.WriteString("\n\n")
}

var (
	headerBlock  = regexp.MustCompile(`<\|start_header_id\|>[^<]*<\|end_header_id\|>\n*`)
	specialToken = regexp.MustCompile(`<\|[a-z_]+\|>`)
)

// StripSpecialTokens removes role headers and special tokens from a rendered
// prompt, leaving only message contents.
func StripSpecialTokens(s string) string {
	s = headerBlock.ReplaceAllString(s, "")
	return specialToken.ReplaceAllString(s, "")
}
