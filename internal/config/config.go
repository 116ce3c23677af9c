// Package config loads the hookgate policy file: YAML over built-in
// defaults, then HOOKGATE_* environment overrides. A missing file in
// the search path is not an error; a malformed or invalid one is.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookgate/internal/policy"
)

const (
	// ConfigDir is the per-project and per-user directory name.
	ConfigDir = ".hookgate"
	// ConfigFile is the policy file name inside ConfigDir.
	ConfigFile = "policy.yaml"

	// EnvPrefix namespaces environment overrides (HOOKGATE_LOG_LEVEL etc).
	EnvPrefix = "HOOKGATE"
)

var versionRe = regexp.MustCompile(`^\d+\.\d+$`)

// Settings holds engine-wide knobs. YAML overlays the defaults, then
// environment variables overlay the YAML.
type Settings struct {
	LogLevel       string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	DebugLogs      bool   `yaml:"debug_logs" envconfig:"DEBUG_LOGS"`
	FailOpen       bool   `yaml:"fail_open" envconfig:"FAIL_OPEN"`
	ScriptTimeout  int    `yaml:"script_timeout" envconfig:"SCRIPT_TIMEOUT"`
	MaxContextSize int    `yaml:"max_context_size" envconfig:"MAX_CONTEXT_SIZE"`
	MaxLogSizeMB   int    `yaml:"max_log_size_mb" envconfig:"MAX_LOG_SIZE_MB"`
	MaxLogFiles    int    `yaml:"max_log_files" envconfig:"MAX_LOG_FILES"`
	LogPath        string `yaml:"log_path" envconfig:"LOG_PATH"`
}

// Config is the full policy file.
type Config struct {
	Version  string        `yaml:"version"`
	Settings Settings      `yaml:"settings"`
	Rules    []policy.Rule `yaml:"rules"`

	// Source is the file the config was loaded from, empty when the
	// built-in defaults were used.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration: no rules, permissive
// settings.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Settings: Settings{
			LogLevel:       "info",
			FailOpen:       true,
			ScriptTimeout:  30,
			MaxContextSize: 1 << 20,
			MaxLogSizeMB:   10,
			MaxLogFiles:    5,
		},
	}
}

// ResolvePath returns the policy file to load. An explicit path wins;
// otherwise ./.hookgate/policy.yaml, then ~/.hookgate/policy.yaml.
// Empty means no file exists and defaults apply.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	local := filepath.Join(ConfigDir, ConfigFile)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	user := filepath.Join(home, ConfigDir, ConfigFile)
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

// Load loads the policy file per ResolvePath. See LoadWithHash.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads the policy file and returns the SHA-256 of its
// raw bytes, for stamping into audit entries. When defaults are used
// the hash is the SHA-256 of empty input. An explicitly given path
// must exist; search-path misses fall through to defaults.
func LoadWithHash(path string) (*Config, string, error) {
	resolved := ResolvePath(path)

	cfg := Default()
	var raw []byte
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			if os.IsNotExist(err) && path == "" {
				resolved = ""
			} else {
				return nil, "", fmt.Errorf("read policy config %s: %w", resolved, err)
			}
		} else {
			raw = data
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, "", fmt.Errorf("parse policy config %s: %w", resolved, err)
			}
		}
	}
	cfg.Source = resolved

	if err := envconfig.Process(EnvPrefix, &cfg.Settings); err != nil {
		return nil, "", fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		if resolved != "" {
			return nil, "", fmt.Errorf("%s: %w", resolved, err)
		}
		return nil, "", err
	}

	h := sha256.Sum256(raw)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}

// Validate checks the version shape and settings ranges. Rule-level
// validation (names, regexes, expressions, action counts) happens in
// policy.NewRuleSet.
func (c *Config) Validate() error {
	if !versionRe.MatchString(c.Version) {
		return fmt.Errorf("version %q must look like \"1.0\"", c.Version)
	}
	s := c.Settings
	switch s.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be debug, info, warn or error", s.LogLevel)
	}
	if s.ScriptTimeout < 0 {
		return fmt.Errorf("script_timeout %d must not be negative", s.ScriptTimeout)
	}
	if s.MaxContextSize <= 0 {
		return fmt.Errorf("max_context_size %d must be positive", s.MaxContextSize)
	}
	if s.MaxLogSizeMB <= 0 {
		return fmt.Errorf("max_log_size_mb %d must be positive", s.MaxLogSizeMB)
	}
	if s.MaxLogFiles < 1 {
		return fmt.Errorf("max_log_files %d must be at least 1", s.MaxLogFiles)
	}
	return nil
}

// ResolvedLogPath is the audit log location: the configured path, or
// ~/.hookgate/logs/hookgate.log.
func (s Settings) ResolvedLogPath() string {
	if s.LogPath != "" {
		return s.LogPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(ConfigDir, "logs", "hookgate.log")
	}
	return filepath.Join(home, ConfigDir, "logs", "hookgate.log")
}

// DefaultConfigYAML returns a commented starter policy for init.
func DefaultConfigYAML() string {
	return `# hookgate policy configuration
# Generated by: hookgate init
#
# Rules are evaluated against every hook event. When several rules
# match, enforce beats warn beats audit, then higher priority wins,
# then declaration order. Exactly one rule governs each event.

version: "1.0"

settings:
  log_level: info
  debug_logs: false
  # Validator failures (timeout, crash, bad output) allow the
  # operation and record the failure. Set false to block instead.
  fail_open: true
  # Default validator budget in seconds. Override per rule with
  # metadata.timeout.
  script_timeout: 30
  max_context_size: 1048576
  max_log_size_mb: 10
  max_log_files: 5
  # Audit log location. Default: ~/.hookgate/logs/hookgate.log
  log_path: ""

# Rule fields:
#   name: unique, [a-zA-Z0-9_-]
#   events: hook kinds the rule applies to (default: all)
#   matchers: all present predicates must hold
#     tools, extensions, directories, operations,
#     command_match (regex), prompt_match (regex), condition (expression)
#   actions: exactly one of
#     block: true            deny the operation
#     inject: {file|text|command}   add context, never deny
#     run: {script, trust}   external validator decides
#     block_if_match: {field, pattern, reason}
#     require_fields: [field, ...]
#   mode: enforce | warn | audit (default enforce)
#   metadata: {priority, timeout, enabled}
rules:
  - name: block-force-push
    description: Prevent force push to protected branches
    events: [PreToolUse]
    matchers:
      tools: [Bash]
      command_match: "git push.*(--force|-f)"
    actions:
      block: true
      reason: "Force pushes are blocked. Use a regular push or ask a human."
    mode: enforce
    metadata:
      priority: 100
`
}
