package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/audit"
	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/install"
	"github.com/ppiankov/hookgate/internal/policy"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment and diagnose configuration issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// 1. Binary location and version.
	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{
			label:  "hookgate binary",
			ok:     true,
			detail: fmt.Sprintf("%s (v%s)", execPath, version),
		})
	} else {
		checks = append(checks, checkResult{
			label:  "hookgate binary",
			ok:     false,
			detail: "cannot determine executable path",
		})
	}

	// 2. Policy file loads and validates.
	cfg, _, cfgErr := config.LoadWithHash(flagConfig)
	if cfgErr != nil {
		checks = append(checks, checkResult{
			label:  "policy file",
			ok:     false,
			detail: cfgErr.Error(),
			fix:    "hookgate validate",
		})
	} else if cfg.Source == "" {
		checks = append(checks, checkResult{
			label:  "policy file",
			ok:     true,
			detail: "built-in defaults (no rules)",
			fix:    "hookgate init",
		})
	} else {
		checks = append(checks, checkResult{
			label:  "policy file",
			ok:     true,
			detail: cfg.Source,
		})
	}

	// 3. Rules compile.
	var rules *policy.RuleSet
	if cfgErr == nil {
		compiled, err := policy.NewRuleSet(cfg.Rules)
		if err != nil {
			checks = append(checks, checkResult{
				label:  "rules",
				ok:     false,
				detail: err.Error(),
				fix:    "hookgate validate",
			})
		} else {
			rules = compiled
			checks = append(checks, checkResult{
				label:  "rules",
				ok:     true,
				detail: fmt.Sprintf("%d enabled", rules.Len()),
			})
		}
	}

	// 4. Log directory is writable.
	if cfgErr == nil {
		logDir := filepath.Dir(cfg.Settings.ResolvedLogPath())
		if err := probeWritable(logDir); err != nil {
			checks = append(checks, checkResult{
				label:  "log directory",
				ok:     false,
				detail: err.Error(),
			})
		} else {
			checks = append(checks, checkResult{
				label:  "log directory",
				ok:     true,
				detail: logDir,
			})
		}
	}

	// 5. Decision log hash chain.
	if cfgErr == nil {
		logFile := cfg.Settings.ResolvedLogPath()
		result := audit.Verify(logFile)
		switch {
		case result.Valid && result.Lines == 0:
			checks = append(checks, checkResult{
				label:  "decision log",
				ok:     true,
				detail: "no entries yet",
			})
		case result.Valid:
			checks = append(checks, checkResult{
				label:  "decision log",
				ok:     true,
				detail: fmt.Sprintf("%d entries, chain intact", result.Lines),
			})
		default:
			checks = append(checks, checkResult{
				label:  "decision log",
				ok:     false,
				detail: fmt.Sprintf("line %d: %s", result.ErrorLine, result.Error),
				fix:    "hookgate logs verify",
			})
		}
	}

	// 6. Host registration, project then global.
	projectPath, _ := install.SettingsPath(false)
	globalPath, globalErr := install.SettingsPath(true)
	switch {
	case projectPath != "" && install.Installed(projectPath):
		checks = append(checks, checkResult{
			label:  "host registration",
			ok:     true,
			detail: projectPath,
		})
	case globalErr == nil && install.Installed(globalPath):
		checks = append(checks, checkResult{
			label:  "host registration",
			ok:     true,
			detail: globalPath,
		})
	default:
		checks = append(checks, checkResult{
			label:  "host registration",
			ok:     false,
			detail: "not registered",
			fix:    "hookgate install",
		})
	}

	// 7. Validator scripts exist and are executable.
	if rules != nil {
		for _, r := range rules.Rules() {
			run := r.Actions.Run
			if run == nil {
				continue
			}
			label := fmt.Sprintf("validator (%s)", r.Name)
			info, err := os.Stat(run.Script)
			switch {
			case err != nil:
				checks = append(checks, checkResult{
					label:  label,
					ok:     false,
					detail: fmt.Sprintf("%s: not found", run.Script),
				})
			case info.Mode()&0o111 == 0:
				checks = append(checks, checkResult{
					label:  label,
					ok:     false,
					detail: fmt.Sprintf("%s: not executable", run.Script),
					fix:    "chmod +x " + run.Script,
				})
			default:
				checks = append(checks, checkResult{
					label:  label,
					ok:     true,
					detail: run.Script,
				})
			}
		}
	}

	// Print results.
	hasFailures := false
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}

// probeWritable creates the directory if needed and verifies a file
// can be written in it.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
