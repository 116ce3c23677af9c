package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/config"
)

var (
	initForce    bool
	initExamples bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initExamples, "examples", false, "Also write an example context file, validator script and scenario")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a policy file in the current project",
	Long: `Creates .hookgate/policy.yaml from a commented starter template.

With --examples it also creates:
  .hookgate/context/git-workflow.md     an inject source
  .hookgate/validators/check-secrets.sh an external validator
  .hookgate/scenarios/force-push.yaml   assertions for 'hookgate check'`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	var created []string

	policyPath := filepath.Join(config.ConfigDir, config.ConfigFile)
	if wrote, err := writeIfMissing(policyPath, config.DefaultConfigYAML(), 0o644); err != nil {
		return err
	} else if wrote {
		created = append(created, policyPath)
	}

	if initExamples {
		files := []struct {
			path    string
			content string
			perm    os.FileMode
		}{
			{filepath.Join(config.ConfigDir, "context", "git-workflow.md"), exampleContextMD, 0o644},
			{filepath.Join(config.ConfigDir, "validators", "check-secrets.sh"), exampleValidatorSh, 0o755},
			{filepath.Join(config.ConfigDir, "scenarios", "force-push.yaml"), exampleScenarioYAML, 0o644},
		}
		for _, f := range files {
			if wrote, err := writeIfMissing(f.path, f.content, f.perm); err != nil {
				return err
			} else if wrote {
				created = append(created, f.path)
			}
		}
	}

	fmt.Println("hookgate init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Verify:")
	fmt.Println("  hookgate validate")
	fmt.Println()
	fmt.Println("Register with the agent host:")
	fmt.Println("  hookgate install")
	if initExamples {
		fmt.Println()
		fmt.Println("Run the example scenario:")
		fmt.Printf("  hookgate check %s\n", filepath.Join(config.ConfigDir, "scenarios", "force-push.yaml"))
	}
	return nil
}

// writeIfMissing writes content to path unless it exists and --force is
// unset. Returns true if the file was written.
func writeIfMissing(path, content string, perm os.FileMode) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

const exampleContextMD = `# Git workflow reminders

- Prefer ` + "`git push --force-with-lease`" + ` over ` + "`--force`" + ` on personal branches.
- Never force-push shared branches.
- Squash noisy WIP commits before opening a pull request.
`

const exampleValidatorSh = `#!/bin/sh
# hookgate validator: receives the event JSON on stdin and must print
# exactly one JSON object: {"continue": true|false, "reason": "..."}.
# Environment: HOOKGATE_EVENT_TYPE, HOOKGATE_TOOL_NAME,
# HOOKGATE_SESSION_ID, HOOKGATE_CWD.

event=$(cat)

if printf '%s' "$event" | grep -Eq 'AKIA[A-Z0-9]{16}'; then
  printf '{"continue": false, "reason": "event carries an AWS access key id"}'
  exit 0
fi

printf '{"continue": true}'
`

const exampleScenarioYAML = `name: force-push policy
config: ../policy.yaml
cases:
  - name: force push is blocked
    tool: Bash
    command: git push --force
    expect: blocked
    rule: block-force-push

  - name: regular push is allowed
    tool: Bash
    command: git push origin main
    expect: allowed
`
