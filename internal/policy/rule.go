// Package policy defines rules, their match predicates, the compiled
// rule set, and the resolver that picks the single governing rule for
// an event.
package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rule is one declarative policy statement: match conditions paired
// with exactly one action.
type Rule struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Events      []string    `yaml:"events,omitempty" json:"events,omitempty"`
	Matchers    Matchers    `yaml:"matchers" json:"matchers"`
	Actions     Actions     `yaml:"actions" json:"actions"`
	Mode        string      `yaml:"mode,omitempty" json:"mode,omitempty"`
	Priority    *int        `yaml:"priority,omitempty" json:"priority,omitempty"`
	Governance  *Governance `yaml:"governance,omitempty" json:"governance,omitempty"`
	Metadata    *Metadata   `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Matchers are the independent predicates of a rule. All present
// predicates must hold (AND); an absent predicate is vacuously true.
type Matchers struct {
	Tools        []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	Extensions   []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Directories  []string `yaml:"directories,omitempty" json:"directories,omitempty"`
	Operations   []string `yaml:"operations,omitempty" json:"operations,omitempty"`
	CommandMatch string   `yaml:"command_match,omitempty" json:"command_match,omitempty"`
	PromptMatch  string   `yaml:"prompt_match,omitempty" json:"prompt_match,omitempty"`
	Condition    string   `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Actions holds the rule's action. Exactly one of the five must be
// set; validation rejects rules with zero or several.
type Actions struct {
	Inject        *InjectSpec `yaml:"inject,omitempty" json:"inject,omitempty"`
	Run           *RunSpec    `yaml:"run,omitempty" json:"run,omitempty"`
	Block         bool        `yaml:"block,omitempty" json:"block,omitempty"`
	Reason        string      `yaml:"reason,omitempty" json:"reason,omitempty"`
	BlockIfMatch  *FieldMatch `yaml:"block_if_match,omitempty" json:"block_if_match,omitempty"`
	RequireFields []string    `yaml:"require_fields,omitempty" json:"require_fields,omitempty"`
}

// Count returns how many actions are populated.
func (a Actions) Count() int {
	n := 0
	if a.Inject != nil {
		n++
	}
	if a.Run != nil {
		n++
	}
	if a.Block {
		n++
	}
	if a.BlockIfMatch != nil {
		n++
	}
	if len(a.RequireFields) > 0 {
		n++
	}
	return n
}

// Kind names the populated action for logs and errors.
func (a Actions) Kind() string {
	switch {
	case a.Block:
		return "block"
	case a.Inject != nil:
		return "inject"
	case a.Run != nil:
		return "run"
	case a.BlockIfMatch != nil:
		return "block_if_match"
	case len(a.RequireFields) > 0:
		return "require_fields"
	default:
		return "none"
	}
}

// InjectSpec names one context source: a file path, inline text, or a
// command whose stdout becomes the context. The YAML form is either a
// bare string (a file path) or a mapping with exactly one key.
type InjectSpec struct {
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	Text    string `yaml:"text,omitempty" json:"text,omitempty"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
}

// UnmarshalYAML accepts both the bare-string and mapping forms.
func (s *InjectSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var path string
		if err := value.Decode(&path); err != nil {
			return err
		}
		s.File = path
		return nil
	}
	type plain InjectSpec
	return value.Decode((*plain)(s))
}

// sources returns how many of the three sources are set.
func (s InjectSpec) sources() int {
	n := 0
	if s.File != "" {
		n++
	}
	if s.Text != "" {
		n++
	}
	if s.Command != "" {
		n++
	}
	return n
}

// RunSpec names an external validator. The YAML form is either a bare
// string (the program path) or a mapping with script and an optional
// informational trust level.
type RunSpec struct {
	Script string `yaml:"script" json:"script"`
	Trust  string `yaml:"trust,omitempty" json:"trust,omitempty"`
}

// UnmarshalYAML accepts both the bare-string and mapping forms.
func (s *RunSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var path string
		if err := value.Decode(&path); err != nil {
			return err
		}
		s.Script = path
		return nil
	}
	type plain RunSpec
	return value.Decode((*plain)(s))
}

// FieldMatch blocks when a named tool_input field matches a pattern.
// The YAML form is either a bare string (a pattern applied to the
// command field) or a mapping.
type FieldMatch struct {
	Field   string `yaml:"field,omitempty" json:"field,omitempty"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Reason  string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// UnmarshalYAML accepts both the bare-string and mapping forms.
func (m *FieldMatch) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var pattern string
		if err := value.Decode(&pattern); err != nil {
			return err
		}
		m.Pattern = pattern
		m.Field = "command"
		return nil
	}
	type plain FieldMatch
	if err := value.Decode((*plain)(m)); err != nil {
		return err
	}
	if m.Field == "" {
		m.Field = "command"
	}
	return nil
}

// Governance is rule provenance. It never affects evaluation.
type Governance struct {
	Author       string   `yaml:"author,omitempty" json:"author,omitempty"`
	CreatedBy    string   `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	Reason       string   `yaml:"reason,omitempty" json:"reason,omitempty"`
	Confidence   string   `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	LastReviewed string   `yaml:"last_reviewed,omitempty" json:"last_reviewed,omitempty"`
	Ticket       string   `yaml:"ticket,omitempty" json:"ticket,omitempty"`
	Tags         []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Metadata is the legacy per-rule settings block.
type Metadata struct {
	Priority int   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Timeout  int   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Enabled  *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// EffectivePriority prefers the top-level priority over the legacy
// metadata field. Default 0.
func (r *Rule) EffectivePriority() int {
	if r.Priority != nil {
		return *r.Priority
	}
	if r.Metadata != nil {
		return r.Metadata.Priority
	}
	return 0
}

// TimeoutSeconds returns the per-rule subprocess budget, 0 meaning
// "use the settings default".
func (r *Rule) TimeoutSeconds() int {
	if r.Metadata != nil {
		return r.Metadata.Timeout
	}
	return 0
}

// Enabled reports whether the rule participates in evaluation.
func (r *Rule) Enabled() bool {
	if r.Metadata != nil && r.Metadata.Enabled != nil {
		return *r.Metadata.Enabled
	}
	return true
}

// BlockReason is the reason string used when this rule blocks.
func (r *Rule) BlockReason() string {
	if r.Actions.Reason != "" {
		return r.Actions.Reason
	}
	if r.Actions.BlockIfMatch != nil && r.Actions.BlockIfMatch.Reason != "" {
		return r.Actions.BlockIfMatch.Reason
	}
	if r.Description != "" {
		return fmt.Sprintf("blocked by rule %q: %s", r.Name, r.Description)
	}
	return fmt.Sprintf("blocked by rule %q", r.Name)
}

// AppliesTo reports whether the rule's optional event-kind
// restriction admits the given kind. No restriction admits all.
func (r *Rule) AppliesTo(kind string) bool {
	if len(r.Events) == 0 {
		return true
	}
	for _, e := range r.Events {
		if e == kind {
			return true
		}
	}
	return false
}
