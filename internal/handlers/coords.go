package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexFloat accepts a JSON number or a numeric string. Anything else is
// recorded as malformed instead of failing the whole decode, so the caller
// can answer with a field-specific message.
type flexFloat struct {
	value     *float64
	malformed bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	f.value, f.malformed = nil, false

	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			f.malformed = true
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			f.malformed = true
			return nil
		}
		f.value = &v
	default:
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			f.malformed = true
			return nil
		}
		f.value = &v
	}
	return nil
}
