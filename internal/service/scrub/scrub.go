// Package scrub removes obvious personal identifiers from free text before it
// reaches a generation backend.
//
// The rules are heuristics: they redact email addresses, ten-digit phone
// numbers and runs of capitalized words. Letters and digits are matched in
// any script. A single capitalized word is never redacted, so one-word names
// ("Jane called") pass through unchanged. This is not a PHI guarantee.
package scrub

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	EmailPlaceholder = "[redacted email]"
	PhonePlaceholder = "[redacted phone]"
	NamePlaceholder  = "the student"
)

// wordStart anchors a match at the start of the text or after a rune that is
// not a letter, digit or underscore. Matches are read from group 1.
const wordStart = `(?:^|[^\p{L}\p{N}_])`

var (
	emailPattern = regexp.MustCompile(`[\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+\.[\p{L}\p{N}_]+`)
	phonePattern = regexp.MustCompile(wordStart + `(\p{Nd}{3}[-.\s]?\p{Nd}{3}[-.\s]?\p{Nd}{4})`)
	// Runs of capitalized words separated by single whitespace.
	capRunPattern = regexp.MustCompile(wordStart + `(\p{Lu}\p{Ll}+(?:\s\p{Lu}\p{Ll}+)*)`)
	wordSplit     = regexp.MustCompile(`\s`)
)

// Text applies email, phone and name redaction in that order. Text without a
// match is returned unchanged.
func Text(s string) string {
	s = emailPattern.ReplaceAllString(s, EmailPlaceholder)
	s = Phone(s)
	return replaceWords(capRunPattern, s, true, redactNameRun)
}

// replaceWords replaces group 1 of every match of re that also ends at a word
// boundary. With trim, a run of words that does not end at a boundary is
// shortened word by word until it does.
func replaceWords(re *regexp.Regexp, s string, trim bool, repl func(string) string) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[2], loc[3]
		for !endsWord(s, end) {
			if !trim {
				end = -1
				break
			}
			seps := wordSplit.FindAllStringIndex(s[start:end], -1)
			if len(seps) == 0 {
				end = -1
				break
			}
			end = start + seps[len(seps)-1][0]
		}
		if end < 0 {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(repl(s[start:end]))
		last = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func endsWord(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// redactNameRun replaces a capitalized run. A lone word is left alone, a pair
// is replaced whole, and longer runs keep their first word so that the output
// never contains a replaceable run.
func redactNameRun(run string) string {
	seps := wordSplit.FindAllStringIndex(run, -1)
	switch len(seps) {
	case 0:
		return run
	case 1:
		return NamePlaceholder
	default:
		cut := seps[0][1]
		return run[:cut] + NamePlaceholder
	}
}

// Email redacts email addresses only.
func Email(s string) string {
	return emailPattern.ReplaceAllString(s, EmailPlaceholder)
}

// Phone redacts ten-digit phone numbers only.
func Phone(s string) string {
	return replaceWords(phonePattern, s, false, func(string) string { return PhonePlaceholder })
}

// Contains reports whether s still holds something Text would redact.
func Contains(s string) bool {
	return Text(s) != s
}
