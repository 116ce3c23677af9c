package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/engine"
	"github.com/ppiankov/hookgate/internal/scenario"
)

var (
	simEvent   string
	simTool    string
	simCommand string
	simPath    string
	simPrompt  string
	simCwd     string
	simInput   []string
	simVerbose bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simEvent, "event", "PreToolUse", "Hook event kind")
	simulateCmd.Flags().StringVar(&simTool, "tool", "", "Tool name (Bash, Write, ...)")
	simulateCmd.Flags().StringVar(&simCommand, "command", "", "Shell command for the tool_input")
	simulateCmd.Flags().StringVar(&simPath, "path", "", "File path for the tool_input")
	simulateCmd.Flags().StringVar(&simPrompt, "prompt", "", "Prompt text for the tool_input")
	simulateCmd.Flags().StringVar(&simCwd, "cwd", "", "Working directory of the event")
	simulateCmd.Flags().StringArrayVar(&simInput, "input", nil, "Extra tool_input field as key=value (repeatable)")
	simulateCmd.Flags().BoolVarP(&simVerbose, "verbose", "v", false, "Show the per-rule evaluation trace")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic event through the policy pipeline",
	Long: "Builds an event from flags, runs the full pipeline (matching,\n" +
		"resolution, actions including validators) in dry-run and prints\n" +
		"the decision. Nothing is logged.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadWithHash(flagConfig)
	if err != nil {
		return &configError{err}
	}
	eng, err := engine.New(cfg, hash, engine.Options{Debug: simVerbose, DryRun: true})
	if err != nil {
		return &configError{err}
	}

	input := map[string]any{}
	for _, kv := range simInput {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --input %q: want key=value", kv)
		}
		input[k] = v
	}

	c := scenario.Case{
		Event:   simEvent,
		Tool:    simTool,
		Command: simCommand,
		Path:    simPath,
		Prompt:  simPrompt,
		Input:   input,
		Cwd:     simCwd,
	}
	ev := scenario.BuildEvent(c, "simulate")

	resp, entry := eng.Process(cmd.Context(), ev)

	fmt.Printf("Event: %s", ev.EventType)
	if ev.ToolName != "" {
		fmt.Printf(" (%s)", ev.ToolName)
	}
	fmt.Println()
	for _, k := range sortedKeys(ev.InputFields()) {
		fmt.Printf("  %s: %v\n", k, ev.InputFields()[k])
	}
	fmt.Println()

	fmt.Printf("Decision: %s", entry.Decision)
	if entry.RuleName != "" {
		fmt.Printf(" (rule %s, mode %s)", entry.RuleName, entry.Mode)
	}
	fmt.Println()
	if resp.Reason != "" {
		fmt.Printf("Reason: %s\n", resp.Reason)
	}
	if entry.Failure != "" {
		fmt.Printf("Recovered failure: %s\n", entry.Failure)
	}

	if simVerbose && entry.Debug != nil {
		fmt.Println("\nRule evaluation:")
		if len(entry.Debug.Evaluations) == 0 {
			fmt.Printf("  no rules apply to %s events\n", ev.EventType)
		}
		for _, re := range entry.Debug.Evaluations {
			mark := "✗"
			if re.Matched {
				mark = "✓"
			}
			fmt.Printf("  %s %-28s %s\n", mark, re.RuleName, predicateList(re.Predicates))
		}
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Println("\nResponse:")
	fmt.Println(string(out))
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func predicateList(preds map[string]bool) string {
	if len(preds) == 0 {
		return ""
	}
	keys := make([]string, 0, len(preds))
	for k := range preds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%t", k, preds[k]))
	}
	return strings.Join(parts, " ")
}
