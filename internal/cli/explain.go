package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/audit"
)

var explainLimit int

func init() {
	rootCmd.AddCommand(explainCmd)
	explainCmd.Flags().IntVarP(&explainLimit, "limit", "n", 50, "Max session entries to show")
}

var explainCmd = &cobra.Command{
	Use:   "explain <session-or-entry-id>",
	Short: "Show why a decision was made",
	Long: "Looks up one log entry by ID (evt_...) or all entries of a session\n" +
		"and prints the provenance: matched rules, governing rule, decision,\n" +
		"reason, validator output and timing.",
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	path, err := logPath()
	if err != nil {
		return err
	}
	key := args[0]

	entries, err := audit.QueryAll(path, audit.Filter{})
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.ID == key {
			fmt.Print(audit.FormatEntry(e))
			return nil
		}
	}

	var session []audit.Entry
	for _, e := range entries {
		if e.SessionID == key {
			session = append(session, e)
		}
	}
	if len(session) == 0 {
		return fmt.Errorf("no entry or session %q in %s", key, path)
	}
	if explainLimit > 0 && len(session) > explainLimit {
		session = session[:explainLimit]
	}

	fmt.Printf("Session %s\n\n", key)
	fmt.Print(audit.FormatEntries(session))

	shown := false
	for _, e := range session {
		if e.Decision == "allowed" {
			continue
		}
		if !shown {
			fmt.Println("\nDetails:")
			shown = true
		}
		fmt.Println()
		fmt.Print(audit.FormatEntry(e))
	}
	return nil
}
