// Package expand turns short briefs into de-identified educational text.
package expand

import (
	"fmt"
	"strings"

	"clinical-notes-service/internal/service/generate"
	"clinical-notes-service/internal/service/scrub"
)

// SystemPrompt is the fixed policy instruction sent with every expansion.
const SystemPrompt = "You expand short notes into clear, educational text about mental health " +
	"therapy within K–12 schools in California, specifically interactions between mental " +
	"health professionals and students. Avoid diagnosis/treatment advice; do not solicit PHI. " +
	"Explain context (roles, confidentiality limits, mandated reporting basics, " +
	"escalation/referral), and tailor content to the specified audience and tone."

// PrimingMarker opens the assistant turn. The model continues after it.
const PrimingMarker = "Understood. Here is the expanded educational text:"

// Disclaimer is appended to every expansion that does not already contain it.
const Disclaimer = "This expanded text is for illustrative and educational purposes only. " +
	"It is not a substitute for professional mental health advice, diagnosis, or treatment. " +
	"Students and families in California should consult qualified school-based mental health " +
	"professionals or licensed providers for personal guidance. If you or someone you know is " +
	"in immediate distress or at risk of harm, call or text 988 in the U.S. or contact local " +
	"emergency services right away."

// Pinned generation parameters. Request values for these are ignored.
const (
	TargetWords              = 320
	ReadingLevel             = "grade10"
	IncludeCaliforniaContext = true
)

// Audiences accepted by the pipeline.
var Audiences = []string{"school_staff", "therapist", "student", "parent"}

// Tones accepted by the pipeline.
var Tones = []string{
	"neutral_clinical",
	"supportive",
	"plain_language",
	"culturally_sensitive",
	"formal_report",
	"student_friendly",
	"parent_friendly",
	"crisis_informational",
}

// Request is one expansion request. Only Brief, Audience and Tone shape the
// prompt.
type Request struct {
	RequestID string
	Brief     string
	Audience  string
	Tone      string
}

// BuildMessages returns the system, user and priming assistant messages for
// req. The brief is scrubbed before it is embedded.
func BuildMessages(req Request) []generate.Message {
	user := strings.Join([]string{
		"Brief: " + scrub.Text(req.Brief),
		"Audience: " + req.Audience,
		"Tone: " + req.Tone,
		"Reading level: " + ReadingLevel,
		fmt.Sprintf("Target length: ~%d words", TargetWords),
		fmt.Sprintf("California context required: %t", IncludeCaliforniaContext),
		"Output: A cohesive explanation (2–4 paragraphs) that is educational and de-identified. " +
			"Close with a one-line disclaimer.",
	}, "\n")

	return []generate.Message{
		{Role: generate.RoleSystem, Content: SystemPrompt},
		{Role: generate.RoleUser, Content: user},
		{Role: generate.RoleAssistant, Content: PrimingMarker},
	}
}
