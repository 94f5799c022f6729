package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
)

var errTrailingData = errors.New("trailing data after log event")

// sanitizeEvent re-encodes a JSON event with every string value passed
// through the sanitizer. A member whose key is a sensitive field gets the
// placeholder as its value. Member order and number literals are kept, and so
// is a trailing newline.
//
// Strings are sanitized decoded, so quotes and newlines are seen as written
// by the caller and not as their JSON escapes.
func sanitizeEvent(s *sanitize.Sanitizer, event []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(event))
	dec.UseNumber()

	var buf bytes.Buffer
	buf.Grow(len(event) + len(s.Placeholder()))

	if err := copyValue(dec, &buf, s); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}

	if bytes.HasSuffix(event, []byte("\n")) {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func copyValue(dec *json.Decoder, buf *bytes.Buffer, s *sanitize.Sanitizer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			buf.WriteByte('{')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				writeString(buf, key)
				buf.WriteByte(':')

				if s.IsSensitive(key) {
					var skipped json.RawMessage
					if err := dec.Decode(&skipped); err != nil {
						return err
					}
					writeString(buf, s.Placeholder())
					continue
				}
				if err := copyValue(dec, buf, s); err != nil {
					return err
				}
			}
			buf.WriteByte('}')
		case '[':
			buf.WriteByte('[')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := copyValue(dec, buf, s); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
		default:
			return errors.Newf("unexpected delimiter %q in log event", rune(t))
		}
		// closing delimiter
		_, err := dec.Token()
		return err
	case string:
		writeString(buf, s.String(t))
	case json.Number:
		buf.WriteString(t.String())
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case nil:
		buf.WriteString("null")
	}
	return nil
}

// writeString appends v as a JSON string without HTML escaping, as zerolog
// writes them.
func writeString(buf *bytes.Buffer, v string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
}
