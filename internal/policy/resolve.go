package policy

import "github.com/ppiankov/hookgate/internal/model"

// Resolution names the single governing rule for an event, or none.
type Resolution struct {
	Rule     *CompiledRule
	Mode     model.PolicyMode
	Governed bool
}

// Resolve picks the governing rule from the rules whose matchers
// succeeded, in evaluation order (priority descending, stable).
//
// Mode dominance is checked before priority (must not be changed):
//  1. Any enforce match → the first enforce rule governs, full effect.
//  2. Else any warn match → the first warn rule governs; the executor
//     downgrades a blocking outcome to an injected warning.
//  3. Else any audit match → the first audit rule governs; no action
//     runs, the decision is audited.
//  4. Else no rule governs and the event is allowed.
//
// Because the input preserves RuleSet order, "first within a mode" is
// exactly "highest priority, ties by declaration order".
func Resolve(matched []*CompiledRule) Resolution {
	for _, mode := range []model.PolicyMode{model.ModeEnforce, model.ModeWarn, model.ModeAudit} {
		for _, r := range matched {
			if r.Mode == mode {
				return Resolution{Rule: r, Mode: mode, Governed: true}
			}
		}
	}
	return Resolution{}
}
