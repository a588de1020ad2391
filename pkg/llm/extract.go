package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject means the text holds no well-formed JSON object.
var ErrNoJSONObject = errors.New("no json object found in completion")

// ExtractJSONObject returns the first well-formed JSON object embedded in
// text. Models often wrap JSON in prose or code fences; each '{' is tried in
// turn until one starts a complete object.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	for offset := 0; offset < len(text); {
		idx := strings.IndexByte(text[offset:], '{')
		if idx < 0 {
			break
		}
		start := offset + idx
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil && bytes.HasPrefix(raw, []byte("{")) {
			return raw, nil
		}
		offset = start + 1
	}
	return nil, ErrNoJSONObject
}
