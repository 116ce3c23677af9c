package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/install"
)

var (
	installGlobal bool
	installBinary string
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	installCmd.Flags().BoolVar(&installGlobal, "global", false, "Register in ~/.claude/settings.json instead of the project settings")
	installCmd.Flags().StringVar(&installBinary, "binary", "", "Hook command to register (default: hookgate on PATH, then this executable)")
	uninstallCmd.Flags().BoolVar(&installGlobal, "global", false, "Unregister from ~/.claude/settings.json instead of the project settings")
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register hookgate as a hook in the agent host settings",
	Long: "Appends a hookgate entry to every hook event list in the host\n" +
		"settings JSON. Unknown settings keys are preserved; a second\n" +
		"install is a no-op.",
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove hookgate entries from the agent host settings",
	Long: "Drops every hook entry whose command mentions hookgate. Other\n" +
		"registrations stay untouched.",
	RunE: runUninstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	path, err := install.SettingsPath(installGlobal)
	if err != nil {
		return err
	}
	binary, err := install.ResolveBinary(installBinary)
	if err != nil {
		return err
	}

	res, err := install.Install(path, binary)
	if err != nil {
		return err
	}
	if res.AlreadyInstalled {
		fmt.Printf("hookgate is already registered in %s\n", res.Path)
		return nil
	}

	fmt.Printf("Registered hookgate in %s\n", res.Path)
	fmt.Printf("  command: %s (timeout %dms)\n", res.Binary, install.DefaultTimeoutMS)
	fmt.Printf("  events:  %s\n", strings.Join(install.Events, ", "))
	fmt.Println()
	fmt.Println("The host picks the hooks up on its next session start.")
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	path, err := install.SettingsPath(installGlobal)
	if err != nil {
		return err
	}

	res, err := install.Uninstall(path)
	if err != nil {
		return err
	}
	if res.Removed == 0 {
		fmt.Printf("No hookgate entries in %s\n", res.Path)
		return nil
	}
	fmt.Printf("Removed %d hookgate entries from %s\n", res.Removed, res.Path)
	return nil
}
