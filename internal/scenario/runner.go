// Package scenario runs policy assertions from YAML fixture files:
// each case builds a synthetic event, pushes it through the full
// pipeline in dry-run, and compares the decision.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/engine"
	"github.com/ppiankov/hookgate/internal/model"
)

// BuildEvent turns a case fixture into a wire event. The simulate
// command uses the same construction.
func BuildEvent(c Case, session string) *model.Event {
	input := make(map[string]any, len(c.Input)+3)
	for k, v := range c.Input {
		input[k] = v
	}
	if c.Command != "" {
		input["command"] = c.Command
	}
	if c.Path != "" {
		input["file_path"] = c.Path
	}
	if c.Prompt != "" {
		input["prompt"] = c.Prompt
	}

	kind := c.Event
	if kind == "" {
		kind = string(model.EventPreToolUse)
	}

	ev := &model.Event{
		EventType: model.EventType(kind),
		ToolName:  c.Tool,
		SessionID: session,
		Cwd:       c.Cwd,
	}
	if len(input) > 0 {
		raw, _ := json.Marshal(input)
		ev.ToolInput = raw
	}
	ev.Normalize()
	return ev
}

// Run evaluates all cases against the engine. Cases are independent;
// the engine must be constructed in dry-run mode so nothing is logged.
func Run(s *Scenario, eng *engine.Engine) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		ev := BuildEvent(c, fmt.Sprintf("scenario-%d", i+1))
		resp, entry := eng.Process(context.Background(), ev)

		expected := strings.ToLower(strings.TrimSpace(c.Expect))
		cr := CaseResult{
			Index:    i + 1,
			Name:     c.Name,
			Subject:  caseSubject(c),
			Expected: expected,
			Actual:   entry.Decision,
			Rule:     entry.RuleName,
			Reason:   resp.Reason,
		}

		cr.Passed = cr.Actual == expected && (c.Rule == "" || c.Rule == entry.RuleName)
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

// LoadAndRun loads one scenario file, builds a dry-run engine from the
// scenario's config (or the given fallback path) and runs every case.
func LoadAndRun(path, configPath string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	cfgPath := configPath
	if s.Config != "" {
		cfgPath = s.Config
		if !filepath.IsAbs(cfgPath) {
			cfgPath = filepath.Join(filepath.Dir(path), cfgPath)
		}
	}

	cfg, hash, err := config.LoadWithHash(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	eng, err := engine.New(cfg, hash, engine.Options{DryRun: true})
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	result := Run(&s, eng)
	result.File = path
	return result, nil
}

func caseSubject(c Case) string {
	switch {
	case c.Command != "":
		return c.Command
	case c.Path != "":
		return c.Path
	case c.Prompt != "":
		return c.Prompt
	case c.Tool != "":
		return c.Tool
	default:
		return c.Event
	}
}
