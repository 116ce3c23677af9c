package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/policy"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the policy file and print the rule inventory",
	Long: "Loads the policy file, compiles every rule (names, regexes,\n" +
		"conditions, action counts) and prints the enabled rules in\n" +
		"evaluation order. Exit code 78 on any configuration defect.",
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadWithHash(flagConfig)
	if err != nil {
		return &configError{err}
	}
	rules, err := policy.NewRuleSet(cfg.Rules)
	if err != nil {
		return &configError{err}
	}

	source := cfg.Source
	if source == "" {
		source = "built-in defaults (no policy file found)"
	}
	fmt.Printf("Policy: %s\n", source)
	fmt.Printf("Hash:   %s\n", hash)
	fmt.Println()

	if rules.Len() == 0 {
		fmt.Println("No enabled rules. Every event will be allowed.")
	} else {
		fmt.Printf("%-6s %-8s %-15s %-28s %s\n", "PRIO", "MODE", "ACTION", "RULE", "EVENTS")
		for _, r := range rules.Rules() {
			events := "all"
			if len(r.Events) > 0 {
				events = strings.Join(r.Events, ",")
			}
			fmt.Printf("%-6d %-8s %-15s %-28s %s\n",
				r.EffectivePriority(), r.Mode, r.Actions.Kind(), r.Name, events)
		}
	}
	fmt.Println()

	disabled := len(cfg.Rules) - rules.Len()
	if disabled > 0 {
		fmt.Printf("OK: %d rules valid (%d disabled).\n", rules.Len(), disabled)
	} else {
		fmt.Printf("OK: %d rules valid.\n", rules.Len())
	}
	return nil
}
