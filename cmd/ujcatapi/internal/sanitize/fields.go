package sanitize

import (
	"regexp"
	"strings"
)

// fieldPattern finds `name = 'value'` style assignments of one field.
//
// The prefix regexp matches the field name (bare, single- or double-quoted),
// the separator and the opening quote of the value. RE2 has no back-references,
// so the end of the value is found by scanValue.
type fieldPattern struct {
	field  string
	prefix *regexp.Regexp
}

func compileFieldPattern(field string) *fieldPattern {
	name := regexp.QuoteMeta(field)
	return &fieldPattern{
		field: field,
		prefix: regexp.MustCompile(
			`(` + name + `|'` + name + `'|"` + name + `")` + // field token
				`(\s*[=:]\s*)` + // separator
				`(['"])`, // opening quote
		),
	}
}

// Redact replaces the values of sensitive fields with the placeholder. Passes
// run once per field, in table order, each over the previous result.
func (s *Sanitizer) Redact(text string) string {
	for _, p := range s.patterns {
		if !strings.Contains(text, p.field) {
			continue
		}
		text = p.replace(text, s.placeholder)
	}
	return text
}

// replace rewrites every non-overlapping match, scanning left to right.
func (p *fieldPattern) replace(text, placeholder string) string {
	var b strings.Builder
	pos := 0

	for pos <= len(text) {
		loc := p.prefix.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}

		start := pos + loc[0]
		token := text[pos+loc[2] : pos+loc[3]]
		sep := text[pos+loc[4] : pos+loc[5]]
		quote := text[pos+loc[6] : pos+loc[7]]
		valueStart := pos + loc[7]

		closing, end := scanValue(text, valueStart, quote[0])

		if b.Len() == 0 {
			b.Grow(len(text))
		}
		b.WriteString(text[pos:start])
		b.WriteString(token)
		b.WriteString(sep)
		b.WriteString(quote)
		b.WriteString(placeholder)
		b.WriteString(closing)

		pos = end
	}

	if pos == 0 {
		return text
	}
	b.WriteString(text[pos:])
	return b.String()
}

// scanValue finds where a quoted value opened just before from ends. It
// returns the closing text (the quote, a newline, or "" at end of input) and
// the offset just past it.
//
// A quote preceded by a backslash does not close the value. A newline always
// does, so truncated output such as a repr followed by a traceback still gets
// its value removed.
func scanValue(text string, from int, quote byte) (string, int) {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case quote:
			if text[i-1] != '\\' {
				return text[i : i+1], i + 1
			}
		case '\n':
			return "\n", i + 1
		}
	}
	return "", len(text)
}
