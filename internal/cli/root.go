// Package cli wires the hookgate commands. The bare root command is
// the hook entrypoint itself: the agent host pipes one event JSON to
// stdin and reads one decision JSON from stdout; the exit status says
// whether the operation may proceed.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookgate/internal/config"
	"github.com/ppiankov/hookgate/internal/engine"
	"github.com/ppiankov/hookgate/internal/model"
)

// Exit statuses, fixed wire contract with the agent host.
const (
	exitBlocked = 77 // EX_NOPERM: operation blocked by policy
	exitConfig  = 78 // EX_CONFIG: configuration problem
)

var (
	flagConfig string
	flagDebug  bool
	flagDryRun bool
)

var rootCmd = &cobra.Command{
	Use:   "hookgate",
	Short: "Policy gate for AI coding agent tool calls",
	Long: `hookgate sits between an AI coding agent and its tools. The host
invokes it once per hook event with the event JSON on stdin; hookgate
evaluates the configured rules and answers with a decision JSON on
stdout.

Exit status:
  0   operation may continue (allowed, warned, audited, or fail-open)
  77  operation blocked by policy
  78  configuration error
  1   transport or other fatal error`,
	Args:          cobra.NoArgs,
	RunE:          runHook,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to policy YAML (default: ./.hookgate/policy.yaml, then ~/.hookgate/policy.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Record the raw event and per-rule trace, return timing")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Evaluate and print the decision without logging; always exits 0")
}

// Execute runs the root command and maps errors to the exit contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var blocked *engine.BlockedError
	if errors.As(err, &blocked) {
		return exitBlocked
	}
	var cfg *configError
	if errors.As(err, &cfg) {
		return exitConfig
	}
	return 1
}

// configError marks a failure that must exit with EX_CONFIG.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func runHook(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadWithHash(flagConfig)
	if err != nil {
		return &configError{err}
	}
	setupLogging(cfg.Settings)

	ev, err := model.DecodeEvent(cmd.InOrStdin())
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, hash, engine.Options{
		Debug:  flagDebug || cfg.Settings.DebugLogs,
		DryRun: flagDryRun,
	})
	if err != nil {
		return &configError{err}
	}

	resp, entry := eng.Process(cmd.Context(), ev)

	out, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !resp.Continue && !flagDryRun {
		return &engine.BlockedError{Rule: entry.RuleName, Reason: resp.Reason}
	}
	return nil
}

// setupLogging points slog at stderr so stdout stays a pure protocol
// channel.
func setupLogging(s config.Settings) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(s.LogLevel),
	}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
