// Package sanitize removes personally identifiable and secret information from
// text and from structured values before they leave the process.
//
// Two transforms are applied, always in this order: email addresses are
// partially masked, then values assigned to sensitive field names are replaced
// in full by a placeholder. Both are deterministic and never fail.
package sanitize

import (
	"reflect"
	"sync"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
)

// Options configures a Sanitizer.
type Options struct {
	// Fields replaces the default sensitive field table when non-empty.
	Fields []string

	// AdditionalFields are appended after Fields, keeping their order.
	AdditionalFields []string

	// Placeholder replaces redacted values (default: constants.HiddenFieldDisplayValue).
	Placeholder string
}

// Sanitizer holds the sensitive field table and its compiled patterns.
// It is immutable once built and safe for concurrent use.
type Sanitizer struct {
	fields      []string
	fieldSet    map[string]struct{}
	patterns    []*fieldPattern
	placeholder string
}

// New builds a Sanitizer, compiling one pattern per sensitive field.
func New(opts Options) *Sanitizer {
	base := opts.Fields
	if len(base) == 0 {
		base = constants.SensitiveFields
	}

	placeholder := opts.Placeholder
	if placeholder == "" {
		placeholder = constants.HiddenFieldDisplayValue
	}

	s := &Sanitizer{
		fieldSet:    make(map[string]struct{}),
		placeholder: placeholder,
	}

	for _, list := range [][]string{base, opts.AdditionalFields} {
		for _, field := range list {
			if field == "" {
				continue
			}
			if _, dup := s.fieldSet[field]; dup {
				continue
			}
			s.fieldSet[field] = struct{}{}
			s.fields = append(s.fields, field)
			s.patterns = append(s.patterns, compileFieldPattern(field))
		}
	}

	return s
}

var defaultSanitizer = sync.OnceValue(func() *Sanitizer {
	return New(Options{})
})

// Default returns the sanitizer built from the default field table.
func Default() *Sanitizer {
	return defaultSanitizer()
}

// String masks email addresses, then redacts sensitive field values.
func (s *Sanitizer) String(text string) string {
	return s.Redact(s.MaskEmails(text))
}

// Value sanitizes a structured value.
//
// Strings go through String. For maps, a value stored under a sensitive key is
// replaced by the placeholder without being inspected; other values are
// sanitized recursively. Named string and map types are handled the same way
// and keep their type. Every other type is returned unchanged; slices are not
// walked.
func (s *Sanitizer) Value(v any) any {
	switch value := v.(type) {
	case string:
		return s.String(value)
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, item := range value {
			out[key] = s.Field(key, item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(value))
		for key, item := range value {
			if s.IsSensitive(key) {
				out[key] = s.placeholder
			} else {
				out[key] = s.String(item)
			}
		}
		return out
	default:
		return s.reflectValue(v)
	}
}

// reflectValue covers string kinds and maps with string keys whose types are
// not the ones Value switches on. When a sanitized element no longer fits the
// element type, such as the placeholder under a sensitive key of a
// map[string]int, the element becomes the zero value.
func (s *Sanitizer) reflectValue(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return reflect.ValueOf(s.String(rv.String())).Convert(rv.Type()).Interface()
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
	default:
		return v
	}

	elemType := rv.Type().Elem()
	out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		clean := reflect.ValueOf(s.Field(iter.Key().String(), iter.Value().Interface()))
		out.SetMapIndex(iter.Key(), fit(clean, elemType))
	}
	return out.Interface()
}

func fit(v reflect.Value, t reflect.Type) reflect.Value {
	switch {
	case !v.IsValid():
		return reflect.Zero(t)
	case v.Type().AssignableTo(t):
		return v
	case v.Kind() == reflect.String && t.Kind() == reflect.String:
		return v.Convert(t)
	default:
		return reflect.Zero(t)
	}
}

// Field sanitizes a single keyed value.
func (s *Sanitizer) Field(key string, value any) any {
	if s.IsSensitive(key) {
		return s.placeholder
	}
	return s.Value(value)
}

// IsSensitive reports whether name is in the sensitive field table.
func (s *Sanitizer) IsSensitive(name string) bool {
	_, ok := s.fieldSet[name]
	return ok
}

// Placeholder returns the text that replaces redacted values.
func (s *Sanitizer) Placeholder() string {
	return s.placeholder
}

// Fields returns a copy of the sensitive field table in pass order.
func (s *Sanitizer) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}
