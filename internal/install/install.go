// Package install registers hookgate with the agent host by editing
// its settings JSON. Unknown settings keys are preserved byte for
// byte; only the hooks block is touched.
package install

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultTimeoutMS is the per-hook budget written into the host
// settings, in milliseconds.
const DefaultTimeoutMS = 10000

// marker identifies our entries when checking for prior installs and
// when uninstalling.
const marker = "hookgate"

// Entry is one registered hook command.
type Entry struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// Hooks is the host's hook registration block, one entry list per
// event kind.
type Hooks struct {
	PreToolUse        []Entry `json:"pre_tool_use,omitempty"`
	PostToolUse       []Entry `json:"post_tool_use,omitempty"`
	SessionStart      []Entry `json:"session_start,omitempty"`
	PermissionRequest []Entry `json:"permission_request,omitempty"`
}

// Events names the hook kinds an install registers.
var Events = []string{"PreToolUse", "PostToolUse", "SessionStart", "PermissionRequest"}

// Result reports what an install or uninstall changed.
type Result struct {
	Path             string
	Binary           string
	Installed        bool
	AlreadyInstalled bool
	Removed          int
}

// SettingsPath returns the host settings file: the project-local one,
// or the global one under the user's home.
func SettingsPath(global bool) (string, error) {
	if !global {
		return filepath.Join(".claude", "settings.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

// ResolveBinary picks the hook command to register: an explicit path
// (which must exist), hookgate on PATH, or the running executable.
func ResolveBinary(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("binary not found: %s", explicit)
		}
		return abs, nil
	}
	if path, err := exec.LookPath(marker); err == nil {
		return path, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate the hookgate binary; pass --binary")
	}
	return self, nil
}

// Install adds the binary to every hook event list in the settings
// file, creating the file if needed. A second install is a no-op.
func Install(settingsPath, binary string) (*Result, error) {
	doc, hooks, err := load(settingsPath)
	if err != nil {
		return nil, err
	}

	result := &Result{Path: settingsPath, Binary: binary}
	if installed(hooks) {
		result.AlreadyInstalled = true
		return result, nil
	}

	entry := Entry{Command: binary, Timeout: DefaultTimeoutMS}
	hooks.PreToolUse = append(hooks.PreToolUse, entry)
	hooks.PostToolUse = append(hooks.PostToolUse, entry)
	hooks.SessionStart = append(hooks.SessionStart, entry)
	hooks.PermissionRequest = append(hooks.PermissionRequest, entry)

	if err := save(settingsPath, doc, hooks); err != nil {
		return nil, err
	}
	result.Installed = true
	return result, nil
}

// Uninstall removes every entry whose command mentions hookgate.
// Other registrations stay untouched.
func Uninstall(settingsPath string) (*Result, error) {
	result := &Result{Path: settingsPath}

	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return result, nil
	}

	doc, hooks, err := load(settingsPath)
	if err != nil {
		return nil, err
	}

	before := count(hooks)
	hooks.PreToolUse = drop(hooks.PreToolUse)
	hooks.PostToolUse = drop(hooks.PostToolUse)
	hooks.SessionStart = drop(hooks.SessionStart)
	hooks.PermissionRequest = drop(hooks.PermissionRequest)
	result.Removed = before - count(hooks)

	if result.Removed == 0 {
		return result, nil
	}
	if err := save(settingsPath, doc, hooks); err != nil {
		return nil, err
	}
	return result, nil
}

// Installed reports whether the settings file already registers
// hookgate. Doctor uses this.
func Installed(settingsPath string) bool {
	_, hooks, err := load(settingsPath)
	if err != nil {
		return false
	}
	return installed(hooks)
}

func installed(h *Hooks) bool {
	for _, e := range h.PreToolUse {
		if strings.Contains(e.Command, marker) {
			return true
		}
	}
	return false
}

func drop(entries []Entry) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		if !strings.Contains(e.Command, marker) {
			kept = append(kept, e)
		}
	}
	return kept
}

func count(h *Hooks) int {
	return len(h.PreToolUse) + len(h.PostToolUse) + len(h.SessionStart) + len(h.PermissionRequest)
}

// load reads the settings file as a raw key map plus the decoded hooks
// block. A missing file yields an empty document.
func load(path string) (map[string]json.RawMessage, *Hooks, error) {
	doc := map[string]json.RawMessage{}
	hooks := &Hooks{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, hooks, nil
		}
		return nil, nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if raw, ok := doc["hooks"]; ok {
		if err := json.Unmarshal(raw, hooks); err != nil {
			return nil, nil, fmt.Errorf("parse settings %s: hooks: %w", path, err)
		}
	}
	return doc, hooks, nil
}

// save writes the document back with the hooks block replaced, or
// removed when empty.
func save(path string, doc map[string]json.RawMessage, hooks *Hooks) error {
	if count(hooks) == 0 {
		delete(doc, "hooks")
	} else {
		raw, err := json.Marshal(hooks)
		if err != nil {
			return err
		}
		doc["hooks"] = raw
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
