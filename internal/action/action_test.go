package action

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/hookgate/internal/model"
	"github.com/ppiankov/hookgate/internal/policy"
)

func testEvent(tool string, input map[string]any) *model.Event {
	raw, _ := json.Marshal(input)
	return &model.Event{
		EventType: model.EventPreToolUse,
		ToolName:  tool,
		ToolInput: json.RawMessage(raw),
		SessionID: "session-xyz",
	}
}

func compileRule(t *testing.T, r policy.Rule) *policy.CompiledRule {
	t.Helper()
	if r.Name == "" {
		r.Name = "test-rule"
	}
	rs, err := policy.NewRuleSet([]policy.Rule{r})
	if err != nil {
		t.Fatalf("compile rule: %v", err)
	}
	return rs.Rules()[0]
}

func TestExecuteBlock(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Name:        "no-force-push",
		Description: "force pushes rewrite shared history",
		Actions:     policy.Actions{Block: true},
	})

	resp, out := NewExecutor().Execute(context.Background(), rule, testEvent("Bash", nil))
	if resp.Continue {
		t.Fatal("expected block")
	}
	if !strings.Contains(resp.Reason, "no-force-push") {
		t.Errorf("reason should name the rule, got %q", resp.Reason)
	}
	if out.Validator != nil || out.Failure != "" {
		t.Errorf("block has no side effects, got %+v", out)
	}
}

func TestExecuteBlockCustomReason(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Name:    "no-rm",
		Actions: policy.Actions{Block: true, Reason: "use trash instead"},
	})

	resp, _ := NewExecutor().Execute(context.Background(), rule, testEvent("Bash", nil))
	if resp.Reason != "use trash instead" {
		t.Errorf("reason = %q, want the configured one", resp.Reason)
	}
}

func TestExecuteInjectText(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{Text: "remember the style guide"}},
	})

	resp, out := NewExecutor().Execute(context.Background(), rule, testEvent("Write", nil))
	if !resp.Continue {
		t.Fatal("inject must not block")
	}
	if resp.Context != "remember the style guide" {
		t.Errorf("context = %q", resp.Context)
	}
	if out.Failure != "" {
		t.Errorf("unexpected failure %q", out.Failure)
	}
}

func TestExecuteInjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context.md")
	if err := os.WriteFile(path, []byte("project conventions\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{File: path}},
	})

	resp, _ := NewExecutor().Execute(context.Background(), rule, testEvent("Write", nil))
	if resp.Context != "project conventions\n" {
		t.Errorf("context = %q", resp.Context)
	}
}

func TestExecuteInjectFileRelativeToEventCwd(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs", "ctx.md"), []byte("local notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{File: "docs/ctx.md"}},
	})
	ev := testEvent("Write", nil)
	ev.Cwd = dir

	resp, out := NewExecutor().Execute(context.Background(), rule, ev)
	if resp.Context != "local notes" {
		t.Errorf("context = %q, failure = %q", resp.Context, out.Failure)
	}
}

func TestExecuteInjectFileMissing(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{File: filepath.Join(t.TempDir(), "absent.md")}},
	})

	resp, out := NewExecutor().Execute(context.Background(), rule, testEvent("Write", nil))
	if !resp.Continue {
		t.Fatal("a missing inject file must not block")
	}
	if resp.Context != "" {
		t.Errorf("no context expected, got %q", resp.Context)
	}
	if out.Failure == "" {
		t.Error("the read failure must be recorded")
	}
}

func TestExecuteInjectCommand(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{Command: "echo generated context"}},
	})

	resp, out := NewExecutor().Execute(context.Background(), rule, testEvent("Bash", nil))
	if resp.Context != "generated context" {
		t.Errorf("context = %q, failure = %q", resp.Context, out.Failure)
	}
}

func TestExecuteInjectCommandFailure(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{Command: "exit 3"}},
	})

	resp, out := NewExecutor().Execute(context.Background(), rule, testEvent("Bash", nil))
	if !resp.Continue || resp.Context != "" {
		t.Error("a failing inject command degrades to plain allow")
	}
	if out.Failure == "" {
		t.Error("the command failure must be recorded")
	}
}

func TestExecuteInjectContextCap(t *testing.T) {
	x := NewExecutor()
	x.MaxContext = 5

	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{Inject: &policy.InjectSpec{Text: "1234567890"}},
	})

	resp, _ := x.Execute(context.Background(), rule, testEvent("Write", nil))
	if resp.Context != "12345" {
		t.Errorf("context = %q, want capped to 5 bytes", resp.Context)
	}
}

func TestExecuteBlockIfMatch(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Name: "no-debugger",
		Actions: policy.Actions{
			BlockIfMatch: &policy.FieldMatch{Field: "content", Pattern: `debugger;`},
		},
	})
	x := NewExecutor()

	resp, _ := x.Execute(context.Background(), rule, testEvent("Write", map[string]any{
		"file_path": "app.js",
		"content":   "function f() { debugger; }",
	}))
	if resp.Continue {
		t.Fatal("matching content must block")
	}
	if !strings.Contains(resp.Reason, "no-debugger") {
		t.Errorf("reason should name the rule, got %q", resp.Reason)
	}

	resp, _ = x.Execute(context.Background(), rule, testEvent("Write", map[string]any{
		"content": "function f() {}",
	}))
	if !resp.Continue {
		t.Error("non-matching content must pass")
	}

	resp, _ = x.Execute(context.Background(), rule, testEvent("Bash", map[string]any{
		"command": "ls",
	}))
	if !resp.Continue {
		t.Error("an absent field never matches")
	}
}

func TestExecuteBlockIfMatchCustomReason(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Actions: policy.Actions{
			BlockIfMatch: &policy.FieldMatch{Field: "content", Pattern: "eval\\(", Reason: "no dynamic eval"},
		},
	})

	resp, _ := NewExecutor().Execute(context.Background(), rule, testEvent("Write", map[string]any{
		"content": "eval(code)",
	}))
	if resp.Reason != "no dynamic eval" {
		t.Errorf("reason = %q", resp.Reason)
	}
}

func TestExecuteRequireFields(t *testing.T) {
	rule := compileRule(t, policy.Rule{
		Name:    "need-path",
		Actions: policy.Actions{RequireFields: []string{"file_path", "content"}},
	})
	x := NewExecutor()

	resp, _ := x.Execute(context.Background(), rule, testEvent("Write", map[string]any{
		"file_path": "a.txt",
		"content":   "",
	}))
	if !resp.Continue {
		t.Error("empty string still counts as present")
	}

	resp, _ = x.Execute(context.Background(), rule, testEvent("Write", map[string]any{
		"file_path": "a.txt",
	}))
	if resp.Continue {
		t.Fatal("missing field must block")
	}
	if !strings.Contains(resp.Reason, "content") {
		t.Errorf("reason should list the missing field, got %q", resp.Reason)
	}

	resp, _ = x.Execute(context.Background(), rule, testEvent("Write", map[string]any{
		"file_path": "a.txt",
		"content":   nil,
	}))
	if resp.Continue {
		t.Error("null does not count as present")
	}
}
