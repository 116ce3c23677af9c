package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/audit"
	"github.com/ppiankov/hookgate/internal/config"
)

var (
	logsLimit    int
	logsSession  string
	logsTool     string
	logsRule     string
	logsDecision string
	logsSince    string
	logsJSON     bool
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsFollowCmd)
	logsCmd.AddCommand(logsVerifyCmd)

	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "Number of entries to show (0 = all)")
	logsCmd.Flags().StringVar(&logsSession, "session", "", "Filter by session ID")
	logsCmd.Flags().StringVar(&logsTool, "tool", "", "Filter by tool name")
	logsCmd.Flags().StringVar(&logsRule, "rule", "", "Filter by governing rule name")
	logsCmd.Flags().StringVar(&logsDecision, "decision", "", "Filter by decision (allowed|blocked|warned|audited)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Only entries at or after this RFC3339 time; searches rotated files too")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Output entries as JSON")
	logsFollowCmd.Flags().BoolVar(&logsJSON, "json", false, "Output entries as JSON")
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the decision log",
	Long: "Reads the hash-chained JSONL decision log and prints matching\n" +
		"entries, newest first. With --since the rotated generations are\n" +
		"searched as well.",
	RunE: runLogs,
}

var logsFollowCmd = &cobra.Command{
	Use:   "follow",
	Short: "Stream new decision log entries as they are written",
	RunE:  runLogsFollow,
}

var logsVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify the hash chain of the decision log",
	Long: "Walks each JSONL log file and validates that every entry's\n" +
		"prev_hash matches the SHA-256 of the previous line. Without a path\n" +
		"the configured log and all rotated generations are checked.\n" +
		"Exits 0 if valid, 1 if tampered.",
	Args: cobra.MaximumNArgs(1),
	RunE: runLogsVerify,
}

// logPath resolves the decision log location from the active config.
func logPath() (string, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return "", &configError{err}
	}
	return cfg.Settings.ResolvedLogPath(), nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	path, err := logPath()
	if err != nil {
		return err
	}

	filter := audit.Filter{
		SessionID: logsSession,
		Tool:      logsTool,
		Rule:      logsRule,
		Decision:  logsDecision,
		Limit:     logsLimit,
	}

	var entries []audit.Entry
	if logsSince != "" {
		since, err := time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since time %q: %w", logsSince, err)
		}
		filter.Since = since
		entries, err = audit.QueryAll(path, filter)
		if err != nil {
			return err
		}
	} else {
		entries, err = audit.Query(path, filter)
		if err != nil {
			return err
		}
	}

	if logsJSON {
		out, err := audit.FormatJSON(entries)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(audit.FormatEntries(entries))
	return nil
}

func runLogsFollow(cmd *cobra.Command, args []string) error {
	path, err := logPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Following %s (Ctrl-C to stop)\n", path)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	follower := audit.NewFollower(path, func(line []byte) {
		if logsJSON {
			fmt.Println(string(line))
			return
		}
		var e audit.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			fmt.Println(string(line))
			return
		}
		fmt.Print(audit.FormatEntryLine(e))
	})
	return follower.Run(ctx)
}

func runLogsVerify(cmd *cobra.Command, args []string) error {
	var paths []string
	if len(args) == 1 {
		paths = []string{args[0]}
	} else {
		path, err := logPath()
		if err != nil {
			return err
		}
		paths = audit.Generations(path)
	}

	failed := false
	total := 0
	for _, p := range paths {
		result := audit.Verify(p)
		if result.Valid {
			total += result.Lines
			continue
		}
		failed = true
		fmt.Fprintf(os.Stderr, "FAILED: %s at line %d: %s\n", p, result.ErrorLine, result.Error)
	}
	if failed {
		os.Exit(1)
	}
	fmt.Printf("OK: %d entries verified across %d file(s)\n", total, len(paths))
	return nil
}
