package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// emailPattern matches email-shaped candidates. The local part may contain
// '.', '+' and '-', the domain '.' and '-'.
var emailPattern = regexp.MustCompile(`[\p{L}\p{N}_.+\-]+@[\p{L}\p{N}_.\-]+`)

// maxKeptPrefix caps how many leading characters of a word run stay visible.
const maxKeptPrefix = 3

// MaskEmails partially masks every email address in text. Text outside the
// matched addresses is left untouched.
func (s *Sanitizer) MaskEmails(text string) string {
	if !strings.Contains(text, "@") {
		return text
	}
	return emailPattern.ReplaceAllStringFunc(text, maskEmail)
}

// maskEmail masks each word-character run of an address and keeps every
// separator as is.
func maskEmail(email string) string {
	var b strings.Builder
	b.Grow(len(email))

	run := make([]rune, 0, len(email))
	flush := func() {
		keep := keptPrefix(len(run))
		for i, r := range run {
			if i < keep {
				b.WriteRune(r)
			} else {
				b.WriteByte('*')
			}
		}
		run = run[:0]
	}

	for _, r := range email {
		if isWordRune(r) {
			run = append(run, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()

	return b.String()
}

// keptPrefix returns clamp(n-2, 0, 3): runs of one or two characters are
// masked entirely, "com" keeps "c", "alice" keeps "ali".
func keptPrefix(n int) int {
	keep := n - 2
	if keep < 0 {
		return 0
	}
	if keep > maxKeptPrefix {
		return maxKeptPrefix
	}
	return keep
}

// isWordRune matches the same class as emailPattern minus its separators.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
