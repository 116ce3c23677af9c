package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/engine"
	"github.com/ppiankov/hookgate/internal/model"
	"github.com/ppiankov/hookgate/internal/policy"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func dryRunEngine(t *testing.T, rules []policy.Rule) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Settings.LogPath = filepath.Join(t.TempDir(), "hookgate.log")
	cfg.Rules = rules
	eng, err := engine.New(cfg, "", engine.Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func blockForcePush() policy.Rule {
	return policy.Rule{
		Name: "no-force-push",
		Matchers: policy.Matchers{
			Tools:        []string{"Bash"},
			CommandMatch: `git push.*--force`,
		},
		Actions: policy.Actions{Block: true},
	}
}

func TestAllCasesPass(t *testing.T) {
	eng := dryRunEngine(t, []policy.Rule{blockForcePush()})

	s := &Scenario{
		Name: "force push policy",
		Cases: []Case{
			{Tool: "Bash", Command: "git push --force origin main", Expect: "blocked"},
			{Tool: "Bash", Command: "git push origin main", Expect: "allowed"},
		},
	}

	result := Run(s, eng)
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 2 {
		t.Errorf("expected 2 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	eng := dryRunEngine(t, []policy.Rule{blockForcePush()})

	s := &Scenario{
		Name: "wrong expectation",
		Cases: []Case{
			{Tool: "Bash", Command: "git push origin main", Expect: "blocked"},
		},
	}

	result := Run(s, eng)
	if result.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", result.Failed)
	}
	if result.Cases[0].Actual != "allowed" {
		t.Errorf("actual = %s, want allowed", result.Cases[0].Actual)
	}
}

func TestExpectedRuleChecked(t *testing.T) {
	eng := dryRunEngine(t, []policy.Rule{blockForcePush()})

	s := &Scenario{
		Name: "rule identity",
		Cases: []Case{
			{Tool: "Bash", Command: "git push --force", Expect: "blocked", Rule: "some-other-rule"},
		},
	}

	result := Run(s, eng)
	if result.Failed != 1 {
		t.Errorf("expected rule mismatch to fail the case, got %+v", result.Cases)
	}
}

func TestBuildEventShapesInput(t *testing.T) {
	ev := BuildEvent(Case{
		Tool:  "Write",
		Path:  "/work/main.go",
		Input: map[string]any{"content": "package main"},
		Cwd:   "/work",
	}, "scenario-1")

	if ev.EventType != model.EventPreToolUse {
		t.Errorf("default event = %s, want PreToolUse", ev.EventType)
	}
	if ev.ToolName != "Write" {
		t.Errorf("tool = %s", ev.ToolName)
	}
	if p, ok := ev.InputString("file_path"); !ok || p != "/work/main.go" {
		t.Errorf("file_path = %q", p)
	}
	if c, ok := ev.InputString("content"); !ok || c != "package main" {
		t.Errorf("content = %q", c)
	}
	if ev.Timestamp == "" {
		t.Error("expected a filled timestamp")
	}
}

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "policy.yaml", `
version: "1.0"
rules:
  - name: no-force-push
    matchers:
      tools: [Bash]
      command_match: "git push.*--force"
    actions:
      block: true
`)
	path := writeFile(t, dir, "cases.yaml", `
name: force push
config: policy.yaml
cases:
  - tool: Bash
    command: git push --force
    expect: blocked
    rule: no-force-push
  - tool: Bash
    command: git status
    expect: allowed
`)

	result, err := LoadAndRun(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Cases)
	}
	if result.File != path {
		t.Errorf("expected file path set, got %q", result.File)
	}
}

func TestInvalidScenarioYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", ":::not yaml\x00")

	if _, err := LoadAndRun(path, ""); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEmptyCasesList(t *testing.T) {
	eng := dryRunEngine(t, nil)

	result := Run(&Scenario{Name: "empty"}, eng)
	if result.Total != 0 || result.Failed != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestCaseResultFieldsPopulated(t *testing.T) {
	eng := dryRunEngine(t, []policy.Rule{blockForcePush()})

	s := &Scenario{
		Name: "fields check",
		Cases: []Case{
			{Name: "blocks force push", Tool: "Bash", Command: "git push --force", Expect: "blocked"},
		},
	}

	result := Run(s, eng)
	if len(result.Cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(result.Cases))
	}
	c := result.Cases[0]
	if c.Index != 1 || c.Name != "blocks force push" {
		t.Errorf("identity fields: %+v", c)
	}
	if c.Subject != "git push --force" {
		t.Errorf("subject = %s", c.Subject)
	}
	if c.Rule != "no-force-push" {
		t.Errorf("rule = %s", c.Rule)
	}
	if !c.Passed || c.Reason == "" {
		t.Errorf("expected pass with a block reason, got %+v", c)
	}
}

func TestFormatTextReportsFailures(t *testing.T) {
	results := []*RunResult{{
		Name: "demo", Total: 2, Passed: 1, Failed: 1,
		Cases: []CaseResult{
			{Index: 1, Passed: true, Subject: "git status", Expected: "allowed", Actual: "allowed"},
			{Index: 2, Passed: false, Subject: "git push --force", Expected: "blocked", Actual: "allowed"},
		},
	}}

	out := FormatText(results)
	if !strings.Contains(out, "FAIL  demo (1/2)") {
		t.Errorf("missing scenario failure line:\n%s", out)
	}
	if !strings.Contains(out, "expected blocked, got allowed") {
		t.Errorf("missing case failure detail:\n%s", out)
	}
	if !strings.Contains(out, "1 of 2 cases passed") {
		t.Errorf("missing summary:\n%s", out)
	}
}
