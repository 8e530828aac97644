// Package jsonx extracts JSON objects embedded in free-form model output.
// Speakers are asked for strict JSON but real completions frequently wrap it
// in markdown fences or surrounding prose; these helpers recover the first
// well-formed object so validation can run on structure, not formatting.
package jsonx

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?})\\s*```")

// ErrNoObject is returned when the text contains no JSON object at all.
var ErrNoObject = errors.New("no JSON object found")

// ExtractObject parses the first JSON object found in text: a fenced
// ```json``` block wins, otherwise the first balanced top-level object.
func ExtractObject(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoObject
	}
	raw := ""
	if m := fencedObject.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else {
		var err error
		raw, err = balancedObject(text)
		if err != nil {
			return nil, err
		}
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errors.New("embedded JSON is not a valid object")
	}
	return payload, nil
}

// Lookup fetches a value by case-insensitive key match.
func Lookup(payload map[string]any, key string) (any, bool) {
	if v, ok := payload[key]; ok {
		return v, true
	}
	lowered := strings.ToLower(key)
	for k, v := range payload {
		if strings.ToLower(k) == lowered {
			return v, true
		}
	}
	return nil, false
}

// balancedObject scans for the first brace-balanced object, honoring string
// literals and escapes.
func balancedObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", ErrNoObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errors.New("unterminated JSON object")
}
