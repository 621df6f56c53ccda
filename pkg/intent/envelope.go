// Package intent turns the loosely-typed envelope produced by the language
// model into a closed set of strictly-typed actions. Validation happens once,
// here; nothing downstream looks at raw params again.
package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEnvelope means the model output had the wrong shape or types.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrUnparseableTime means a time field could not be read as an instant.
	ErrUnparseableTime = errors.New("unparseable time")
)

// TimeError names the field whose value could not be parsed.
type TimeError struct {
	Field string
	Value string
}

func (e *TimeError) Error() string {
	return fmt.Sprintf("unparseable time in %s: %q", e.Field, e.Value)
}

func (e *TimeError) Unwrap() error { return ErrUnparseableTime }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedEnvelope, fmt.Sprintf(format, args...))
}

// Envelope is the raw {action, params, message} record from the model.
type Envelope struct {
	Action  string         `json:"action"`
	Params  map[string]any `json:"params"`
	Message string         `json:"message"`
}

// ParseEnvelope decodes model output. A surrounding markdown code fence is
// tolerated; anything that is not a JSON object with an action is malformed.
func ParseEnvelope(raw string) (Envelope, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return Envelope{}, malformed("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, malformed("decode: %v", err)
	}
	if env.Action == "" {
		return Envelope{}, malformed("missing action")
	}
	if env.Params == nil {
		env.Params = map[string]any{}
	}
	return env, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	var body []string
	for _, line := range lines[1:] {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			break
		}
		body = append(body, line)
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}
