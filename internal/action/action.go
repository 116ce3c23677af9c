// Package action executes the single governing action of a resolved
// rule: block, inject context, run an external validator, match a
// tool input field against a pattern, or require fields.
//
// Action failures never abort the invocation. Inject failures degrade
// to allow with the failure recorded; validator failures follow the
// fail-open setting.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/hookgate/internal/model"
	"github.com/ppiankov/hookgate/internal/policy"
)

// Executor limits and defaults.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxOutput  = 64 * 1024
	DefaultMaxContext = 1 << 20
)

// Executor runs rule actions.
type Executor struct {
	// FailOpen allows the operation when a validator fails. When
	// false a validator failure blocks.
	FailOpen bool

	// Timeout is the subprocess budget used when a rule carries none.
	Timeout time.Duration

	// MaxOutput caps captured subprocess stdout and stderr.
	MaxOutput int

	// MaxContext caps injected context size.
	MaxContext int
}

// NewExecutor returns an executor with the default limits and
// fail-open behavior.
func NewExecutor() *Executor {
	return &Executor{
		FailOpen:   true,
		Timeout:    DefaultTimeout,
		MaxOutput:  DefaultMaxOutput,
		MaxContext: DefaultMaxContext,
	}
}

// Outcome reports action side effects for the audit record.
type Outcome struct {
	// Validator is set when the action ran an external validator.
	Validator *Report

	// Failure records a non-validator action failure, such as an
	// unreadable inject file. The response is still a normal allow.
	Failure string
}

// Execute runs the governing rule's action against the event. The
// returned response carries the decision; the outcome carries what
// happened for the audit record.
func (x *Executor) Execute(ctx context.Context, rule *policy.CompiledRule, ev *model.Event) (model.Response, Outcome) {
	switch rule.Actions.Kind() {
	case "block":
		return model.Response{Continue: false, Reason: rule.BlockReason()}, Outcome{}
	case "inject":
		return x.executeInject(ctx, rule, ev)
	case "run":
		return x.executeRun(ctx, rule, ev)
	case "block_if_match":
		return x.executeBlockIfMatch(rule, ev), Outcome{}
	case "require_fields":
		return x.executeRequireFields(rule, ev), Outcome{}
	default:
		return model.Allow(), Outcome{}
	}
}

func (x *Executor) executeInject(ctx context.Context, rule *policy.CompiledRule, ev *model.Event) (model.Response, Outcome) {
	spec := rule.Actions.Inject
	switch {
	case spec.Text != "":
		return x.inject(spec.Text), Outcome{}
	case spec.File != "":
		content, err := readContextFile(spec.File, ev.Cwd)
		if err != nil {
			return model.Allow(), Outcome{Failure: fmt.Sprintf("inject %s: %v", spec.File, err)}
		}
		return x.inject(content), Outcome{}
	default:
		out, err := x.captureCommand(ctx, spec.Command, rule.TimeoutSeconds())
		if err != nil {
			return model.Allow(), Outcome{Failure: fmt.Sprintf("inject command: %v", err)}
		}
		return x.inject(strings.TrimSpace(out)), Outcome{}
	}
}

func (x *Executor) inject(content string) model.Response {
	if x.MaxContext > 0 && len(content) > x.MaxContext {
		content = content[:x.MaxContext]
	}
	return model.Response{Continue: true, Context: content}
}

// readContextFile resolves a relative path against the event's working
// directory before falling back to the process working directory.
func readContextFile(path, cwd string) (string, error) {
	if filepath.IsAbs(path) {
		b, err := os.ReadFile(path)
		return string(b), err
	}
	if cwd != "" {
		if b, err := os.ReadFile(filepath.Join(cwd, path)); err == nil {
			return string(b), nil
		}
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

// captureCommand runs a shell command with a bounded timeout and
// returns its captured stdout.
func (x *Executor) captureCommand(ctx context.Context, command string, ruleSeconds int) (string, error) {
	timeout := x.timeoutFor(ruleSeconds)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	stdout := newLimitedWriter(x.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = io.Discard
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s", timeout)
		}
		return "", err
	}
	return stdout.String(), nil
}

func (x *Executor) executeRun(ctx context.Context, rule *policy.CompiledRule, ev *model.Event) (model.Response, Outcome) {
	timeout := x.timeoutFor(rule.TimeoutSeconds())
	report := x.runValidator(ctx, rule.Actions.Run.Script, ev, timeout)
	out := Outcome{Validator: report}

	if report.Failed {
		if x.FailOpen {
			return model.Allow(), out
		}
		return model.Response{
			Continue: false,
			Reason:   fmt.Sprintf("validator for rule %q failed: %s", rule.Name, report.Failure),
		}, out
	}

	resp := model.Response{Continue: report.verdict.Continue, Reason: report.verdict.Reason}
	if c := report.verdict.Context; c != "" {
		resp.Context = x.inject(c).Context
	}
	if !resp.Continue && resp.Reason == "" {
		resp.Reason = fmt.Sprintf("blocked by validator %q", report.Program)
	}
	return resp, out
}

func (x *Executor) executeBlockIfMatch(rule *policy.CompiledRule, ev *model.Event) model.Response {
	fm := rule.Actions.BlockIfMatch
	value, ok := ev.InputString(fm.Field)
	if !ok || !rule.BlockIfRe.MatchString(value) {
		return model.Allow()
	}
	reason := rule.BlockReason()
	if rule.Actions.Reason == "" && fm.Reason == "" {
		reason = fmt.Sprintf("blocked by rule %q: %s matches %q", rule.Name, fm.Field, fm.Pattern)
	}
	return model.Response{Continue: false, Reason: reason}
}

func (x *Executor) executeRequireFields(rule *policy.CompiledRule, ev *model.Event) model.Response {
	var missing []string
	for _, f := range rule.Actions.RequireFields {
		if !ev.HasInputField(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return model.Allow()
	}
	reason := rule.Actions.Reason
	if reason == "" {
		reason = fmt.Sprintf("rule %q requires tool input fields: %s", rule.Name, strings.Join(missing, ", "))
	}
	return model.Response{Continue: false, Reason: reason}
}

func (x *Executor) timeoutFor(ruleSeconds int) time.Duration {
	if ruleSeconds > 0 {
		return time.Duration(ruleSeconds) * time.Second
	}
	if x.Timeout > 0 {
		return x.Timeout
	}
	return DefaultTimeout
}
