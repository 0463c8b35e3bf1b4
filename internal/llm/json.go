package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON is returned when a response holds no JSON value.
var ErrNoJSON = errors.New("no JSON found in response")

// ExtractJSON returns the JSON value embedded in text. Models often wrap
// structured output in prose or code fences, and the prose may itself hold
// brackets. Objects are preferred: the first one that decodes wins, else
// the widest object span is returned for repair. Arrays are tried only when
// text holds no object.
func ExtractJSON(text string) (string, error) {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, pair[0])
		if start == -1 {
			continue
		}
		if raw, ok := firstDecodable(text[start:], pair[0]); ok {
			return raw, nil
		}
		end := strings.LastIndexByte(text, pair[1])
		if end < start {
			// Truncated output: hand the tail to the repairer.
			return text[start:], nil
		}
		return text[start : end+1], nil
	}
	return "", ErrNoJSON
}

// firstDecodable returns the first value starting at an open byte that
// decodes as complete JSON.
func firstDecodable(text string, open byte) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err == nil {
			return string(raw), true
		}
	}
	return "", false
}

// DecodeJSON extracts, repairs when needed, and unmarshals the structured
// part of a model response into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("repair JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}
