// Package engine runs the per-invocation decision pipeline: extract,
// match, resolve, execute one action, log. One event in, one response
// and one audit entry out.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/hookgate/internal/action"
	"github.com/ppiankov/hookgate/internal/audit"
	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/model"
	"github.com/ppiankov/hookgate/internal/policy"
)

// Options are the per-invocation switches, fixed at construction.
type Options struct {
	// Debug adds the raw event and per-rule trace to the log entry
	// and timing to the response.
	Debug bool
	// DryRun evaluates the full pipeline but writes no audit entry.
	DryRun bool
}

// Engine evaluates events against a compiled rule set. Read-only after
// New; safe to reuse across events within one process.
type Engine struct {
	rules      *policy.RuleSet
	exec       *action.Executor
	log        *audit.Log
	configHash string
	opts       Options
}

// BlockedError is returned by callers that need the block surfaced as
// an error, mapped to exit 77 at the CLI boundary.
type BlockedError struct {
	Rule   string
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("blocked by rule %q: %s", e.Rule, e.Reason)
	}
	return fmt.Sprintf("blocked: %s", e.Reason)
}

// New compiles the configured rules and wires the executor and audit
// log from settings. All configuration defects surface here.
func New(cfg *config.Config, configHash string, opts Options) (*Engine, error) {
	rules, err := policy.NewRuleSet(cfg.Rules)
	if err != nil {
		return nil, err
	}

	exec := action.NewExecutor()
	exec.FailOpen = cfg.Settings.FailOpen
	if cfg.Settings.ScriptTimeout > 0 {
		exec.Timeout = time.Duration(cfg.Settings.ScriptTimeout) * time.Second
	}
	if cfg.Settings.MaxContextSize > 0 {
		exec.MaxContext = cfg.Settings.MaxContextSize
	}

	log := audit.New(cfg.Settings.ResolvedLogPath(), audit.Options{
		MaxSizeMB: cfg.Settings.MaxLogSizeMB,
		MaxFiles:  cfg.Settings.MaxLogFiles,
	})

	return &Engine{
		rules:      rules,
		exec:       exec,
		log:        log,
		configHash: configHash,
		opts:       opts,
	}, nil
}

// Rules exposes the compiled rule set for inspection commands.
func (e *Engine) Rules() *policy.RuleSet { return e.rules }

// LogPath is where decisions are recorded.
func (e *Engine) LogPath() string { return e.log.Path() }

// Evaluate runs matching and resolution only: no action executes and
// nothing is logged. Replay and simulation build on this.
func (e *Engine) Evaluate(ev *model.Event) (policy.Resolution, []model.RuleEvaluation, []string) {
	view := policy.NewEventView(ev)
	candidates := e.rules.ForEvent(ev.EventType)

	evaluations := make([]model.RuleEvaluation, 0, len(candidates))
	var matched []*policy.CompiledRule
	var matchedNames []string

	for _, rule := range candidates {
		ok, predicates := policy.Match(rule, view)
		evaluations = append(evaluations, model.RuleEvaluation{
			RuleName:   rule.Name,
			Matched:    ok,
			Predicates: predicates,
		})
		if ok {
			matched = append(matched, rule)
			matchedNames = append(matchedNames, rule.Name)
		}
	}

	return policy.Resolve(matched), evaluations, matchedNames
}

// Process runs the whole pipeline for one event and returns the host
// response together with the audit entry it recorded. A log-write
// failure is reported on stderr and never changes the decision.
func (e *Engine) Process(ctx context.Context, ev *model.Event) (model.Response, audit.Entry) {
	start := time.Now()

	resolution, evaluations, matchedNames := e.Evaluate(ev)

	var resp model.Response
	var outcome action.Outcome
	var warnReason string
	switch {
	case !resolution.Governed:
		resp = model.Allow()
	case resolution.Mode == model.ModeAudit:
		// Log-only: no subprocess, no injection.
		resp = model.Allow()
	default:
		resp, outcome = e.exec.Execute(ctx, resolution.Rule, ev)
		if resolution.Mode == model.ModeWarn && !resp.Continue {
			warnReason = resp.Reason
			resp = warnResponse(resolution.Rule.Name, warnReason)
		}
	}

	decision := model.DeriveDecision(resp, resolution.Mode, resolution.Governed)

	timing := model.Timing{
		ProcessingMS:   time.Since(start).Milliseconds(),
		RulesEvaluated: len(evaluations),
	}
	if e.opts.Debug {
		resp.Timing = &timing
	}

	entry := e.buildEntry(ev, resolution, resp, outcome, decision, warnReason, matchedNames, evaluations, timing)

	if !e.opts.DryRun {
		if err := e.log.Record(entry); err != nil {
			slog.Warn("audit log write failed", "path", e.log.Path(), "error", err)
		}
	}

	return resp, entry
}

// warnResponse downgrades a blocking outcome to an injected warning.
func warnResponse(rule, reason string) model.Response {
	return model.Response{
		Continue: true,
		Context: fmt.Sprintf(
			"[WARNING] Rule '%s' would block this operation: %s\nThis rule is in 'warn' mode - operation will proceed.",
			rule, reason),
	}
}

func (e *Engine) buildEntry(
	ev *model.Event,
	resolution policy.Resolution,
	resp model.Response,
	outcome action.Outcome,
	decision model.Decision,
	warnReason string,
	matchedNames []string,
	evaluations []model.RuleEvaluation,
	timing model.Timing,
) audit.Entry {
	entry := audit.Entry{
		SessionID:    ev.SessionID,
		EventType:    string(ev.EventType),
		ToolName:     ev.ToolName,
		Cwd:          ev.Cwd,
		Details:      model.ExtractDetails(ev),
		RulesMatched: matchedNames,
		Decision:     string(decision),
		Reason:       resp.Reason,
		ContextBytes: len(resp.Context),
		Failure:      outcome.Failure,
		Timing:       timing,
		ConfigHash:   e.configHash,
	}
	if resolution.Governed {
		entry.RuleName = resolution.Rule.Name
		entry.Mode = string(resolution.Mode)
	}
	if warnReason != "" {
		// The warning text went out as context; keep the underlying
		// block reason queryable.
		entry.Reason = warnReason
	}
	if v := outcome.Validator; v != nil {
		entry.Validator = &audit.ValidatorRecord{
			Program:    v.Program,
			ExitCode:   v.ExitCode,
			DurationMS: v.Duration.Milliseconds(),
			Failed:     v.Failed,
			Failure:    v.Failure,
			Output:     v.Output,
		}
	}
	if e.opts.Debug {
		entry.Debug = &audit.DebugRecord{
			RawEvent:    eventAsMap(ev),
			Evaluations: evaluations,
		}
	}
	return entry
}

// eventAsMap round-trips the event through JSON for the debug record.
func eventAsMap(ev *model.Event) map[string]any {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
