package policy

import (
	"testing"

	"github.com/ppiankov/hookgate/internal/model"
)

func blockRule(name string, priority int) Rule {
	p := priority
	return Rule{
		Name:     name,
		Matchers: Matchers{Tools: []string{"Bash"}},
		Actions:  Actions{Block: true},
		Priority: &p,
	}
}

func TestNewRuleSetSorting(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		blockRule("low", 10),
		blockRule("high", 200),
		blockRule("mid-a", 50),
		blockRule("mid-b", 50),
		blockRule("default-prio", 0),
	})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	want := []string{"high", "mid-a", "mid-b", "low", "default-prio"}
	got := rs.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestNewRuleSetDropsDisabled(t *testing.T) {
	off := false
	disabled := blockRule("disabled", 500)
	disabled.Metadata = &Metadata{Enabled: &off}

	rs, err := NewRuleSet([]Rule{disabled, blockRule("active", 1)})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	if rs.Len() != 1 || rs.Names()[0] != "active" {
		t.Errorf("expected only active rule, got %v", rs.Names())
	}
}

func TestNewRuleSetValidation(t *testing.T) {
	valid := func() Rule { return blockRule("ok", 0) }

	tests := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"empty name", func(r *Rule) { r.Name = "" }},
		{"bad name charset", func(r *Rule) { r.Name = "no spaces" }},
		{"unknown mode", func(r *Rule) { r.Mode = "strict" }},
		{"no action", func(r *Rule) { r.Actions = Actions{} }},
		{"two actions", func(r *Rule) { r.Actions.Inject = &InjectSpec{Text: "x"} }},
		{"bad command regex", func(r *Rule) { r.Matchers.CommandMatch = "(" }},
		{"bad prompt regex", func(r *Rule) { r.Matchers.PromptMatch = "[" }},
		{"bad condition", func(r *Rule) { r.Matchers.Condition = "tool.name ==" }},
		{"unknown condition path", func(r *Rule) { r.Matchers.Condition = `totally.bogus == "x"` }},
		{"empty inject", func(r *Rule) { r.Actions = Actions{Inject: &InjectSpec{}} }},
		{"two inject sources", func(r *Rule) {
			r.Actions = Actions{Inject: &InjectSpec{File: "a", Text: "b"}}
		}},
		{"empty run", func(r *Rule) { r.Actions = Actions{Run: &RunSpec{}} }},
		{"block_if_match no pattern", func(r *Rule) {
			r.Actions = Actions{BlockIfMatch: &FieldMatch{Field: "command"}}
		}},
		{"bad block_if_match regex", func(r *Rule) {
			r.Actions = Actions{BlockIfMatch: &FieldMatch{Field: "command", Pattern: "("}}
		}},
	}
	for _, tt := range tests {
		r := valid()
		tt.mutate(&r)
		if _, err := NewRuleSet([]Rule{r}); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	if _, err := NewRuleSet([]Rule{valid(), valid()}); err == nil {
		t.Error("duplicate names: expected validation error")
	}
}

func TestDisabledRuleStillReservesName(t *testing.T) {
	off := false
	disabled := blockRule("dup", 0)
	disabled.Metadata = &Metadata{Enabled: &off}

	if _, err := NewRuleSet([]Rule{disabled, blockRule("dup", 1)}); err == nil {
		t.Error("expected duplicate-name error even when one rule is disabled")
	}
}

func TestForEvent(t *testing.T) {
	pre := blockRule("pre-only", 10)
	pre.Events = []string{"PreToolUse"}
	session := blockRule("session-only", 20)
	session.Events = []string{"SessionStart"}
	all := blockRule("everywhere", 5)

	rs, err := NewRuleSet([]Rule{pre, session, all})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	got := rs.ForEvent(model.EventPreToolUse)
	if len(got) != 2 || got[0].Name != "pre-only" || got[1].Name != "everywhere" {
		names := make([]string, len(got))
		for i, r := range got {
			names[i] = r.Name
		}
		t.Errorf("PreToolUse rules = %v", names)
	}

	if got := rs.ForEvent("FutureHook"); len(got) != 1 || got[0].Name != "everywhere" {
		t.Errorf("unrestricted rule should admit unknown kinds, got %d rules", len(got))
	}
}

func TestExtensionNormalization(t *testing.T) {
	r := Rule{
		Name:     "exts",
		Matchers: Matchers{Extensions: []string{"py", ".ts"}},
		Actions:  Actions{Block: true},
	}
	rs, err := NewRuleSet([]Rule{r})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	cr := rs.Rules()[0]
	if cr.extensions[0] != ".py" || cr.extensions[1] != ".ts" {
		t.Errorf("expected leading dots, got %v", cr.extensions)
	}
}

func TestNormalizeDirPrefix(t *testing.T) {
	tests := []struct{ in, want string }{
		{"src/**", "src"},
		{"src/*", "src"},
		{"src/", "src"},
		{"/etc/app", "/etc/app"},
		{`config\secrets`, "config/secrets"},
	}
	for _, tt := range tests {
		if got := normalizeDirPrefix(tt.in); got != tt.want {
			t.Errorf("normalizeDirPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
