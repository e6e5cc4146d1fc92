package ai

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StringList is a []string that tolerates the shapes models actually return
// for list fields: a JSON array, a single string, or null. Non-string array
// elements are kept as their compact JSON text.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = StringList{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StringList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			return err
		}
		out = append(out, buf.String())
	}
	*l = out
	return nil
}

// Join renders the list with sep.
func (l StringList) Join(sep string) string {
	return strings.Join(l, sep)
}
