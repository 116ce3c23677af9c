package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/audit"
	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/policy"
)

var recommendSince string

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringVar(&recommendSince, "since", "", "Only analyze entries at or after this RFC3339 time")
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Analyze the decision log and suggest policy adjustments",
	Long: "Aggregates the decision log: per-rule match and block counts,\n" +
		"enabled rules that never matched, frequently blocked commands and\n" +
		"validator failures.",
	RunE: runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.LoadWithHash(flagConfig)
	if err != nil {
		return &configError{err}
	}
	rules, err := policy.NewRuleSet(cfg.Rules)
	if err != nil {
		return &configError{err}
	}

	filter := audit.Filter{}
	if recommendSince != "" {
		since, err := time.Parse(time.RFC3339, recommendSince)
		if err != nil {
			return fmt.Errorf("invalid --since time %q: %w", recommendSince, err)
		}
		filter.Since = since
	}

	stats, err := audit.Collect(cfg.Settings.ResolvedLogPath(), filter)
	if err != nil {
		return err
	}
	fmt.Print(observations(stats, rules))
	return nil
}

// observations renders the aggregated log against the enabled rules.
func observations(stats *audit.Stats, rules *policy.RuleSet) string {
	var b strings.Builder

	if stats.Total == 0 {
		b.WriteString("No log entries to analyze.\n")
		b.WriteString("The log fills as the agent host invokes hookgate; check the\n")
		b.WriteString("registration with 'hookgate doctor'.\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Observations from %d events (%s to %s)\n\n",
		stats.Total, stats.FirstTimestamp, stats.LastTimestamp))

	parts := []string{}
	for _, d := range []string{"allowed", "blocked", "warned", "audited"} {
		if n := stats.Decisions[d]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, d))
		}
	}
	b.WriteString("Decisions: " + strings.Join(parts, ", ") + "\n")

	var active, idle []*policy.CompiledRule
	for _, r := range rules.Rules() {
		if stats.MatchesByRule[r.Name] > 0 {
			active = append(active, r)
		} else {
			idle = append(idle, r)
		}
	}

	if len(active) > 0 {
		b.WriteString("\nRule activity:\n")
		for _, r := range active {
			line := fmt.Sprintf("  %-28s matched %d", r.Name, stats.MatchesByRule[r.Name])
			if n := stats.BlocksByRule[r.Name]; n > 0 {
				line += fmt.Sprintf(", blocked %d", n)
			}
			b.WriteString(line + "\n")
		}
	}

	if len(idle) > 0 {
		b.WriteString("\nEnabled rules that never matched:\n")
		for _, r := range idle {
			b.WriteString(fmt.Sprintf("  %s (%s, priority %d)\n", r.Name, r.Mode, r.EffectivePriority()))
		}
		b.WriteString("Consider tightening their matchers or removing them.\n")
	}

	if len(stats.CommandsBlocked) > 0 {
		type hit struct {
			name  string
			count int
		}
		hits := make([]hit, 0, len(stats.CommandsBlocked))
		for name, count := range stats.CommandsBlocked {
			hits = append(hits, hit{name, count})
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].count != hits[j].count {
				return hits[i].count > hits[j].count
			}
			return hits[i].name < hits[j].name
		})
		b.WriteString("\nFrequently blocked commands:\n")
		for _, h := range hits {
			b.WriteString(fmt.Sprintf("  %s (%d)\n", h.name, h.count))
		}
	}

	if stats.ValidatorFailures > 0 {
		b.WriteString(fmt.Sprintf("\n%d validator failures recorded; inspect with 'hookgate logs --json'.\n",
			stats.ValidatorFailures))
	}

	return b.String()
}
