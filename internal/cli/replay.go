package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/audit"
	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/engine"
	"github.com/ppiankov/hookgate/internal/model"
	"github.com/ppiankov/hookgate/internal/policy"
)

var (
	replaySince  string
	replayLimit  int
	replayFormat string
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replaySince, "since", "", "Only entries at or after this RFC3339 time")
	replayCmd.Flags().IntVarP(&replayLimit, "limit", "n", 0, "Max entries to replay (0 = all)")
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run logged events against the current rules and report drift",
	Long: "Rebuilds each logged event from its audit entry, evaluates it\n" +
		"against the current policy without executing actions, and reports\n" +
		"entries whose decision would change. Validator-governed entries\n" +
		"cannot be compared without running the validator and are counted\n" +
		"separately. Secrets were redacted at write time, so rules matching\n" +
		"on secret material may not reproduce.",
	RunE: runReplay,
}

// driftReport is the replay outcome for both output formats.
type driftReport struct {
	Policy        string      `json:"policy"`
	ConfigHash    string      `json:"config_hash"`
	Replayed      int         `json:"replayed"`
	Drifted       int         `json:"drifted"`
	Indeterminate int         `json:"indeterminate"`
	Unchanged     int         `json:"unchanged"`
	Drifts        []driftLine `json:"drifts,omitempty"`
}

type driftLine struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Tool      string `json:"tool,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Was       string `json:"was"`
	WasRule   string `json:"was_rule,omitempty"`
	Now       string `json:"now"`
	NowRule   string `json:"now_rule,omitempty"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadWithHash(flagConfig)
	if err != nil {
		return &configError{err}
	}
	eng, err := engine.New(cfg, hash, engine.Options{DryRun: true})
	if err != nil {
		return &configError{err}
	}

	filter := audit.Filter{Limit: replayLimit}
	if replaySince != "" {
		since, err := time.Parse(time.RFC3339, replaySince)
		if err != nil {
			return fmt.Errorf("invalid --since time %q: %w", replaySince, err)
		}
		filter.Since = since
	}
	entries, err := audit.QueryAll(cfg.Settings.ResolvedLogPath(), filter)
	if err != nil {
		return err
	}

	policyName := cfg.Source
	if policyName == "" {
		policyName = "built-in defaults"
	}
	report := &driftReport{Policy: policyName, ConfigHash: hash}

	// Oldest first, so the drift list reads as a timeline.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		ev := reconstructEvent(e)
		res, _, _ := eng.Evaluate(ev)
		now, exact := classify(res, ev)

		report.Replayed++
		switch {
		case !exact:
			report.Indeterminate++
		case now == e.Decision:
			report.Unchanged++
		default:
			report.Drifted++
			line := driftLine{
				ID:        e.ID,
				Timestamp: e.Timestamp,
				Tool:      e.ToolName,
				Subject:   subjectOf(e),
				Was:       e.Decision,
				WasRule:   e.RuleName,
				Now:       now,
			}
			if res.Governed {
				line.NowRule = res.Rule.Name
			}
			report.Drifts = append(report.Drifts, line)
		}
	}

	if replayFormat == "json" {
		out, err := audit.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Printf("Replayed %d entries against %s\n", report.Replayed, report.Policy)
	for _, d := range report.Drifts {
		fmt.Println()
		fmt.Printf("DRIFT  %s  %s  %s\n", d.ID, d.Timestamp, d.Tool)
		if d.Subject != "" {
			fmt.Printf("       %s\n", d.Subject)
		}
		was := d.Was
		if d.WasRule != "" {
			was += fmt.Sprintf(" (rule %s)", d.WasRule)
		}
		now := d.Now
		if d.NowRule != "" {
			now += fmt.Sprintf(" (rule %s)", d.NowRule)
		}
		fmt.Printf("       was %s, now %s\n", was, now)
	}
	fmt.Println()
	fmt.Printf("%d drifted, %d validator-governed (not comparable), %d unchanged.\n",
		report.Drifted, report.Indeterminate, report.Unchanged)
	return nil
}

// reconstructEvent rebuilds a wire event from a log entry. Debug
// entries carry the raw event and replay exactly; others are rebuilt
// from the extracted details.
func reconstructEvent(e audit.Entry) *model.Event {
	if e.Debug != nil && e.Debug.RawEvent != nil {
		if data, err := json.Marshal(e.Debug.RawEvent); err == nil {
			if ev, err := model.ParseEvent(data); err == nil {
				return ev
			}
		}
	}

	ev := &model.Event{
		EventType: model.EventType(e.EventType),
		ToolName:  e.ToolName,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Cwd:       e.Cwd,
	}
	if e.Details.Type == model.DetailPermission {
		ev.PermissionMode = e.Details.PermissionMode
	}

	input := map[string]any{}
	d := e.Details.Unwrap()
	switch d.Type {
	case model.DetailCommand:
		if d.Command != "" {
			input["command"] = d.Command
		}
	case model.DetailFile:
		if d.Path != "" {
			input["file_path"] = d.Path
		}
	case model.DetailSearch:
		if d.Pattern != "" {
			input["pattern"] = d.Pattern
		}
		if d.Path != "" {
			input["path"] = d.Path
		}
	case model.DetailSession:
		if d.Source != "" {
			input["source"] = d.Source
		}
		if d.Reason != "" {
			input["reason"] = d.Reason
		}
	}
	if len(input) > 0 {
		raw, _ := json.Marshal(input)
		ev.ToolInput = raw
	}
	return ev
}

// classify derives the decision a resolution would produce without
// executing any action. The second result is false when the governing
// action is an external validator, whose verdict cannot be known
// statically.
func classify(res policy.Resolution, ev *model.Event) (string, bool) {
	if !res.Governed {
		return string(model.DecisionAllowed), true
	}
	if res.Mode == model.ModeAudit {
		return string(model.DecisionAudited), true
	}

	blocking, exact := wouldBlock(res.Rule, ev)
	if !exact {
		return "validator", false
	}
	if res.Mode == model.ModeWarn {
		if blocking || res.Rule.Actions.Inject != nil {
			return string(model.DecisionWarned), true
		}
		return string(model.DecisionAllowed), true
	}
	if blocking {
		return string(model.DecisionBlocked), true
	}
	return string(model.DecisionAllowed), true
}

// wouldBlock statically decides whether the rule's action denies the
// event. Run actions are not static; the second result is false.
func wouldBlock(r *policy.CompiledRule, ev *model.Event) (bool, bool) {
	switch {
	case r.Actions.Block:
		return true, true
	case r.Actions.BlockIfMatch != nil:
		v, _ := ev.InputString(r.Actions.BlockIfMatch.Field)
		return r.BlockIfRe.MatchString(v), true
	case len(r.Actions.RequireFields) > 0:
		for _, f := range r.Actions.RequireFields {
			if !ev.HasInputField(f) {
				return true, true
			}
		}
		return false, true
	case r.Actions.Run != nil:
		return false, false
	default:
		return false, true
	}
}

// subjectOf picks the most telling detail text of an entry.
func subjectOf(e audit.Entry) string {
	d := e.Details.Unwrap()
	switch {
	case d.Command != "":
		return d.Command
	case d.Path != "":
		return d.Path
	case d.Pattern != "":
		return d.Pattern
	default:
		return ""
	}
}
