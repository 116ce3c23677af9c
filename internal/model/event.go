// Package model defines the hook event envelope, the tool detail
// variants derived from it, and the decision types shared by the
// policy, action, and audit packages.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// TimestampFormat is the UTC timestamp layout used on the wire and in
// audit entries.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// EventType identifies the hook lifecycle point. Unrecognized values
// are preserved verbatim so rules can target event kinds this binary
// predates.
type EventType string

const (
	EventPreToolUse        EventType = "PreToolUse"
	EventPostToolUse       EventType = "PostToolUse"
	EventSessionStart      EventType = "SessionStart"
	EventPermissionRequest EventType = "PermissionRequest"
	EventUserPromptSubmit  EventType = "UserPromptSubmit"
)

// Event is the envelope the agent host delivers, one per invocation.
type Event struct {
	EventType      EventType       `json:"hook_event_name"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	SessionID      string          `json:"session_id"`
	Timestamp      string          `json:"timestamp,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	PermissionMode string          `json:"permission_mode,omitempty"`
	ToolUseID      string          `json:"tool_use_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`

	inputFields map[string]any
}

// DecodeEvent reads one JSON event from r. A payload that does not
// decode, or that lacks the event type, is a transport error; every
// other gap is tolerated.
func DecodeEvent(r io.Reader) (*Event, error) {
	var ev Event
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("cannot decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ev.Normalize()
	return &ev, nil
}

// ParseEvent decodes a single event from raw bytes.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("cannot decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ev.Normalize()
	return &ev, nil
}

// Validate checks the fields the engine cannot proceed without.
func (e *Event) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event is missing hook_event_name")
	}
	if e.SessionID == "" {
		return fmt.Errorf("event is missing session_id")
	}
	return nil
}

// Normalize fills the timestamp when the host omitted it.
func (e *Event) Normalize() {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
}

// InputFields returns tool_input decoded as a map. Non-object or
// absent input yields an empty map. The decode result is cached.
func (e *Event) InputFields() map[string]any {
	if e.inputFields != nil {
		return e.inputFields
	}
	fields := map[string]any{}
	if len(e.ToolInput) > 0 {
		// A non-object tool_input is not an error; it just has no fields.
		_ = json.Unmarshal(e.ToolInput, &fields)
	}
	e.inputFields = fields
	return fields
}

// InputString returns the named tool_input field as a string. The
// second result reports whether the field is present and a string.
func (e *Event) InputString(name string) (string, bool) {
	v, ok := e.InputFields()[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// HasInputField reports whether the named tool_input field is present
// and non-null.
func (e *Event) HasInputField(name string) bool {
	v, ok := e.InputFields()[name]
	return ok && v != nil
}
