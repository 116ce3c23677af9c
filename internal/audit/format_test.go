package audit

import (
	"strings"
	"testing"

	"github.com/ppiankov/hookgate/internal/model"
)

func TestFormatEntriesTable(t *testing.T) {
	entries := []Entry{
		{
			Timestamp: "2026-08-25T10:30:00.000Z",
			ToolName:  "Bash",
			RuleName:  "no-force-push",
			Decision:  "blocked",
			Details:   model.EventDetails{Type: model.DetailCommand, Command: "git push --force"},
		},
		{
			Timestamp: "2026-08-25T10:31:00.000Z",
			ToolName:  "Write",
			Decision:  "allowed",
			Details:   model.EventDetails{Type: model.DetailFile, Path: "/work/main.go"},
		},
	}

	out := FormatEntries(entries)
	if !strings.Contains(out, "BLOCKED") {
		t.Error("expected uppercase decision in table")
	}
	if !strings.Contains(out, "no-force-push") {
		t.Error("expected rule name in table")
	}
	if !strings.Contains(out, "git push --force") {
		t.Error("expected command subject in table")
	}
	if !strings.Contains(out, "/work/main.go") {
		t.Error("expected file subject in table")
	}
	if !strings.Contains(out, "2 entries") {
		t.Errorf("expected count footer, got:\n%s", out)
	}
	if !strings.Contains(out, "1 blocked") {
		t.Errorf("expected decision counts in footer, got:\n%s", out)
	}
}

func TestFormatEntriesEmpty(t *testing.T) {
	out := FormatEntries(nil)
	if !strings.Contains(out, "No log entries") {
		t.Errorf("expected empty notice, got %q", out)
	}
}

func TestFormatEntryDetail(t *testing.T) {
	entry := Entry{
		ID:        "evt_01HTEST",
		Timestamp: "2026-08-25T10:30:00.000Z",
		SessionID: "sess-1",
		EventType: "PreToolUse",
		ToolName:  "Bash",
		Details:   model.EventDetails{Type: model.DetailCommand, Command: "rm -rf /tmp/x"},
		RuleName:  "no-rm",
		Mode:      "enforce",
		Decision:  "blocked",
		Reason:    "destructive command",
		Validator: &ValidatorRecord{Program: "/v.sh", ExitCode: 0, DurationMS: 14},
		Timing:    model.Timing{ProcessingMS: 3, RulesEvaluated: 5},
	}

	out := FormatEntry(entry)
	for _, want := range []string{"evt_01HTEST", "PreToolUse", "Bash", "rm -rf /tmp/x", "no-rm", "enforce", "blocked", "destructive command", "/v.sh", "sess-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail output missing %q:\n%s", want, out)
		}
	}
}

func TestEntrySubjectUnwrapsPermission(t *testing.T) {
	entry := Entry{
		Details: model.EventDetails{
			Type:    model.DetailPermission,
			Wrapped: &model.EventDetails{Type: model.DetailCommand, Command: "curl example.com"},
		},
	}
	if got := entrySubject(entry); got != "curl example.com" {
		t.Errorf("subject = %q, want the wrapped command", got)
	}
}

func TestTruncateLongSubjects(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := truncate(long, 40)
	if len(got) != 40 {
		t.Errorf("len = %d, want 40", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis, got %q", got)
	}
}
