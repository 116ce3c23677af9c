package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatEntries renders query results as a readable timeline, one
// line per entry, with a decision summary footer.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No log entries found.\n"
	}

	var b strings.Builder
	counts := make(map[string]int)

	for _, e := range entries {
		b.WriteString(FormatEntryLine(e))
		counts[e.Decision]++
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatCounts(len(entries), counts))
	return b.String()
}

// FormatEntryLine renders one entry as a single timeline line.
func FormatEntryLine(e Entry) string {
	tool := e.ToolName
	if tool == "" {
		tool = "-"
	}
	rule := e.RuleName
	if rule == "" {
		rule = "-"
	}
	return fmt.Sprintf("%-15s %-8s %-12s %-24s %s\n",
		formatTimeOnly(e.Timestamp), strings.ToUpper(e.Decision),
		truncate(tool, 12), truncate(rule, 24),
		truncate(entrySubject(e), 60))
}

// FormatEntry renders one entry in full for detail views.
func FormatEntry(e Entry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s  %s\n", e.ID, e.Timestamp))
	b.WriteString(fmt.Sprintf("  event:    %s", e.EventType))
	if e.ToolName != "" {
		b.WriteString(fmt.Sprintf(" (%s)", e.ToolName))
	}
	b.WriteString("\n")
	if s := entrySubject(e); s != "" {
		b.WriteString(fmt.Sprintf("  subject:  %s\n", s))
	}
	b.WriteString(fmt.Sprintf("  session:  %s\n", e.SessionID))
	b.WriteString(fmt.Sprintf("  decision: %s", e.Decision))
	if e.RuleName != "" {
		b.WriteString(fmt.Sprintf(" (rule %s, mode %s)", e.RuleName, e.Mode))
	}
	b.WriteString("\n")
	if e.Reason != "" {
		b.WriteString(fmt.Sprintf("  reason:   %s\n", e.Reason))
	}
	if len(e.RulesMatched) > 0 {
		b.WriteString(fmt.Sprintf("  matched:  %s\n", strings.Join(e.RulesMatched, ", ")))
	}
	if e.ContextBytes > 0 {
		b.WriteString(fmt.Sprintf("  context:  %d bytes injected\n", e.ContextBytes))
	}
	if v := e.Validator; v != nil {
		status := "ok"
		if v.Failed {
			status = "failed: " + v.Failure
		}
		b.WriteString(fmt.Sprintf("  validator: %s exit=%d %dms %s\n",
			v.Program, v.ExitCode, v.DurationMS, status))
	}
	b.WriteString(fmt.Sprintf("  timing:   %dms, %d rules evaluated\n",
		e.Timing.ProcessingMS, e.Timing.RulesEvaluated))
	return b.String()
}

// FormatJSON renders entries as indented JSON.
func FormatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}

// entrySubject picks the most telling detail text for a one-line view.
func entrySubject(e Entry) string {
	d := e.Details
	if d.Wrapped != nil {
		d = *d.Wrapped
	}
	switch {
	case d.Command != "":
		return d.Command
	case d.Path != "":
		return d.Path
	case d.Pattern != "":
		return d.Pattern
	case d.Reason != "":
		return d.Reason
	default:
		return ""
	}
}

func formatCounts(total int, counts map[string]int) string {
	parts := []string{}
	for _, d := range []string{"blocked", "warned", "audited", "allowed"} {
		if counts[d] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[d], d))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d entries\n", total)
	}
	return fmt.Sprintf("%d entries: %s\n", total, strings.Join(parts, ", "))
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("01-02 15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
