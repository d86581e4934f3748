package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Text is a narrative case field. Case files are hand-written, so numbers and
// booleans are accepted wherever prose is expected; nested structures are kept
// as compact JSON.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = Text(buf.String())
	}
	return nil
}

// String returns the trimmed text.
func (t Text) String() string {
	return strings.TrimSpace(string(t))
}

// Or returns the text, or placeholder when it is empty.
func (t Text) Or(placeholder string) string {
	if s := t.String(); s != "" {
		return s
	}
	return placeholder
}

// ID identifies a case or a consultation. Both JSON strings and numbers are accepted.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = ID(t.String())
	return nil
}
