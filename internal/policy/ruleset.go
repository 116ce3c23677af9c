package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/hookgate/internal/expr"
	"github.com/ppiankov/hookgate/internal/model"
)

// ruleNameRe constrains rule names to a safe identifier charset.
var ruleNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// CompiledRule is a rule with its regexes and condition compiled and
// its matcher lists normalized. Read-only after NewRuleSet.
type CompiledRule struct {
	Rule

	Mode        model.PolicyMode
	CommandRe   *regexp.Regexp
	PromptRe    *regexp.Regexp
	BlockIfRe   *regexp.Regexp
	Condition   *expr.Expr
	extensions  []string
	directories []string
	index       int
}

// RuleSet holds enabled rules sorted by priority descending, stable by
// declaration order, so evaluation order is reproducible across runs.
type RuleSet struct {
	rules []*CompiledRule
}

// NewRuleSet validates, compiles and sorts rules. Every configuration
// defect (duplicate or invalid names, bad regex or condition syntax,
// zero or multiple actions, unknown mode) is reported here so that no
// per-event evaluation can fail later. Disabled rules are dropped.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	seen := make(map[string]bool, len(rules))
	compiled := make([]*CompiledRule, 0, len(rules))

	for i := range rules {
		r := rules[i]
		if r.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		if !ruleNameRe.MatchString(r.Name) {
			return nil, fmt.Errorf("rule %q: name must match %s", r.Name, ruleNameRe)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true

		if !r.Enabled() {
			continue
		}

		cr, err := compile(r, len(compiled))
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cr)
	}

	// Priority descending; SliceStable keeps declaration order for ties.
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].EffectivePriority() > compiled[j].EffectivePriority()
	})

	return &RuleSet{rules: compiled}, nil
}

func compile(r Rule, index int) (*CompiledRule, error) {
	cr := &CompiledRule{Rule: r, index: index}

	mode, err := model.ParseMode(r.Mode)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}
	cr.Mode = mode

	switch n := r.Actions.Count(); {
	case n == 0:
		return nil, fmt.Errorf("rule %q: needs exactly one action (block, inject, run, block_if_match or require_fields)", r.Name)
	case n > 1:
		return nil, fmt.Errorf("rule %q: has %d actions, needs exactly one", r.Name, n)
	}
	if r.Actions.Inject != nil && r.Actions.Inject.sources() != 1 {
		return nil, fmt.Errorf("rule %q: inject needs exactly one of file, text or command", r.Name)
	}
	if r.Actions.Run != nil && r.Actions.Run.Script == "" {
		return nil, fmt.Errorf("rule %q: run needs a script path", r.Name)
	}

	if p := r.Matchers.CommandMatch; p != "" {
		if cr.CommandRe, err = regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("rule %q: invalid command_match: %w", r.Name, err)
		}
	}
	if p := r.Matchers.PromptMatch; p != "" {
		if cr.PromptRe, err = regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("rule %q: invalid prompt_match: %w", r.Name, err)
		}
	}
	if m := r.Actions.BlockIfMatch; m != nil {
		if m.Pattern == "" {
			return nil, fmt.Errorf("rule %q: block_if_match needs a pattern", r.Name)
		}
		if cr.BlockIfRe, err = regexp.Compile(m.Pattern); err != nil {
			return nil, fmt.Errorf("rule %q: invalid block_if_match pattern: %w", r.Name, err)
		}
	}
	if c := r.Matchers.Condition; c != "" {
		if cr.Condition, err = expr.Compile(c); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}

	for _, ext := range r.Matchers.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cr.extensions = append(cr.extensions, ext)
	}
	for _, dir := range r.Matchers.Directories {
		cr.directories = append(cr.directories, normalizeDirPrefix(dir))
	}

	return cr, nil
}

// normalizeDirPrefix turns a configured directory pattern into a plain
// forward-slash prefix: backslashes are normalized and trailing glob
// suffixes ("/**", "/*", "/") are stripped.
func normalizeDirPrefix(dir string) string {
	dir = strings.ReplaceAll(dir, "\\", "/")
	dir = strings.TrimSuffix(dir, "/**")
	dir = strings.TrimSuffix(dir, "/*")
	return strings.TrimSuffix(dir, "/")
}

// Len returns the number of enabled rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rules returns all enabled rules in evaluation order.
func (rs *RuleSet) Rules() []*CompiledRule { return rs.rules }

// ForEvent returns the rules whose event restriction admits kind,
// preserving evaluation order.
func (rs *RuleSet) ForEvent(kind model.EventType) []*CompiledRule {
	out := make([]*CompiledRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if r.AppliesTo(string(kind)) {
			out = append(out, r)
		}
	}
	return out
}

// Names returns rule names in evaluation order.
func (rs *RuleSet) Names() []string {
	names := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		names[i] = r.Name
	}
	return names
}
