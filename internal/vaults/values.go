package vaults

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// decodeObject flattens a JSON object secret into string values.
// Strings are kept as is, null members are dropped and every other member
// is kept as compact JSON text.
func decodeObject(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("secret is not a JSON object: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok, err := rawString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", k, err)
		}
		if ok {
			values[k] = s
		}
	}
	return values, nil
}

// rawString renders a JSON value as an env string. ok is false for null.
func rawString(v json.RawMessage) (string, bool, error) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", false, err
	}
	return buf.String(), true, nil
}

// stringify renders SDK values that arrive as interface{}
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
