package policy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/hookgate/internal/expr"
	"github.com/ppiankov/hookgate/internal/model"
)

// EventView bundles an event with its extracted details and the lazily
// built expression context, so per-rule matching does not repeat the
// derivation work.
type EventView struct {
	Event   *model.Event
	Details model.EventDetails

	exprCtx *expr.Context
}

// NewEventView extracts details for ev and prepares it for matching.
func NewEventView(ev *model.Event) *EventView {
	return &EventView{Event: ev, Details: model.ExtractDetails(ev)}
}

// ExprContext returns the condition-language view of the event.
// session.project is the base name of the event working directory.
func (v *EventView) ExprContext() *expr.Context {
	if v.exprCtx == nil {
		project := ""
		if v.Event.Cwd != "" {
			project = filepath.Base(strings.ReplaceAll(v.Event.Cwd, "\\", "/"))
		}
		v.exprCtx = &expr.Context{
			ToolName:       v.Event.ToolName,
			ToolInput:      v.Event.InputFields(),
			SessionID:      v.Event.SessionID,
			SessionProject: project,
			LookupEnv:      os.LookupEnv,
		}
	}
	return v.exprCtx
}

// promptText returns the text prompt-oriented predicates inspect: the
// tool_input prompt when present, else the session reason.
func (v *EventView) promptText() string {
	if p, ok := v.Event.InputString("prompt"); ok {
		return p
	}
	return v.Details.Unwrap().Reason
}

// Match evaluates every present predicate of r against the event and
// returns the AND of them, plus the per-predicate results for debug
// traces. A rule with no predicates matches unconditionally. A
// predicate whose subject the event lacks (extension matcher on a
// command event, say) fails rather than holding vacuously.
func Match(r *CompiledRule, v *EventView) (bool, map[string]bool) {
	results := make(map[string]bool)
	matched := true

	record := func(name string, ok bool) {
		results[name] = ok
		if !ok {
			matched = false
		}
	}

	if len(r.Matchers.Tools) > 0 {
		record("tools", containsString(r.Matchers.Tools, v.Event.ToolName))
	}
	if len(r.extensions) > 0 {
		ext := filepath.Ext(v.Details.FilePath())
		record("extensions", ext != "" && containsString(r.extensions, ext))
	}
	if len(r.directories) > 0 {
		record("directories", matchesDirPrefix(r.directories, v.Details.FilePath()))
	}
	if len(r.Matchers.Operations) > 0 {
		record("operations", containsString(r.Matchers.Operations, firstToken(v.Details.CommandText())))
	}
	if r.CommandRe != nil {
		cmd := v.Details.CommandText()
		record("command_match", cmd != "" && r.CommandRe.MatchString(cmd))
	}
	if r.PromptRe != nil {
		prompt := v.promptText()
		record("prompt_match", prompt != "" && r.PromptRe.MatchString(prompt))
	}
	if r.Condition != nil {
		record("condition", r.Condition.Eval(v.ExprContext()))
	}

	return matched, results
}

func containsString(set []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// firstToken returns the operation of a shell command: its first
// whitespace-separated token.
func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// matchesDirPrefix reports whether the forward-slash-normalized path
// sits under any of the configured directory prefixes.
func matchesDirPrefix(prefixes []string, path string) bool {
	if path == "" {
		return false
	}
	norm := strings.ReplaceAll(path, "\\", "/")
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if norm == p || strings.HasPrefix(norm, p+"/") {
			return true
		}
		// Relative prefixes also match anywhere below an absolute path,
		// so "src" covers both "src/main.go" and "/repo/src/main.go".
		if !strings.HasPrefix(p, "/") && strings.Contains(norm, "/"+p+"/") {
			return true
		}
	}
	return false
}
