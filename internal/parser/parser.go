// Package parser turns the model's raw answer into a validated task.
//
// Parsing is three separate steps so each can be tested alone:
// Decode (text → JSON value), Normalize (canonicalize entity/action) and
// Validate (schema check → domain.Task). All are pure.
package parser

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// Parse runs Decode, Normalize and Validate.
func Parse(raw string) (domain.Task, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return Validate(Normalize(v))
}

// Decode parses raw as exactly one JSON value. Surrounding whitespace and a
// Markdown code fence around the value are tolerated; any other text is not.
func Decode(raw string) (any, error) {
	text := stripFence(strings.TrimSpace(raw))

	dec := json.NewDecoder(strings.NewReader(text))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &domain.MalformedResponseError{Raw: raw, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, &domain.MalformedResponseError{Raw: raw, Err: err}
	}
	return v, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := s[3 : len(s)-3]
	// Drop an info string such as "json".
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		if info := strings.TrimSpace(body[:i]); !strings.ContainsAny(info, "{[") {
			body = body[i+1:]
		}
	}
	return strings.TrimSpace(body)
}

// Normalize lower-cases and trims entity and action when they are strings.
// Every other key is returned untouched. The input is not modified.
func Normalize(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(obj))
	for k, val := range obj {
		if s, isStr := val.(string); isStr && (k == "entity" || k == "action") {
			val = strings.ToLower(strings.TrimSpace(s))
		}
		out[k] = val
	}
	return out
}
