// Package audit is the append-only JSON Lines decision log with
// SHA-256 hash chaining. Each entry's prev_hash is the hash of the
// previous line, forming a tamper-evident chain per log file.
package audit

import (
	"github.com/oklog/ulid/v2"

	"github.com/ppiankov/hookgate/internal/model"
)

// Entry is one line in the audit log. Consumers must tolerate unknown
// or absent optional fields; the schema only grows.
type Entry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	PrevHash  string `json:"prev_hash"`

	SessionID string `json:"session_id"`
	EventType string `json:"event_type"`
	ToolName  string `json:"tool_name,omitempty"`
	Cwd       string `json:"cwd,omitempty"`

	Details model.EventDetails `json:"details"`

	RulesMatched []string `json:"rules_matched,omitempty"`
	RuleName     string   `json:"rule_name,omitempty"`
	Mode         string   `json:"mode,omitempty"`

	Decision     string `json:"decision"`
	Reason       string `json:"reason,omitempty"`
	ContextBytes int    `json:"context_bytes,omitempty"`

	// Failure records a recovered action failure, such as an
	// unreadable inject file, when the decision stayed allowed.
	Failure string `json:"failure,omitempty"`

	Validator *ValidatorRecord `json:"validator,omitempty"`
	Timing    model.Timing     `json:"timing"`

	ConfigHash string       `json:"config_hash,omitempty"`
	Debug      *DebugRecord `json:"debug,omitempty"`
}

// ValidatorRecord captures an external validator run.
type ValidatorRecord struct {
	Program    string `json:"program"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Failed     bool   `json:"failed,omitempty"`
	Failure    string `json:"failure,omitempty"`
	Output     string `json:"output,omitempty"`
}

// DebugRecord holds the verbose fields written only with debug logging
// on: the raw wire event and the per-rule evaluation trace.
type DebugRecord struct {
	RawEvent    map[string]any         `json:"raw_event,omitempty"`
	Evaluations []model.RuleEvaluation `json:"evaluations,omitempty"`
}

// NewEntryID returns a fresh time-ordered entry ID.
func NewEntryID() string {
	return "evt_" + ulid.Make().String()
}
