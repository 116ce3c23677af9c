package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter selects entries when querying the log.
type Filter struct {
	SessionID string
	Tool      string
	Rule      string
	Decision  string
	Since     time.Time // zero value = no lower bound
	Limit     int       // 0 = all; otherwise the newest N
}

// Query reads the live log file and returns matching entries, newest
// first. Malformed lines are skipped; a missing file yields nothing.
func Query(path string, filter Filter) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := newLineScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		if !filter.admits(entry) {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[len(entries)-filter.Limit:]
	}

	// Newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Generations lists the log files newest first: the live file, then
// rotated generations path.1, path.2 and so on.
func Generations(path string) []string {
	out := []string{path}
	for n := 1; ; n++ {
		p := fmt.Sprintf("%s.%d", path, n)
		if _, err := os.Stat(p); err != nil {
			break
		}
		out = append(out, p)
	}
	return out
}

// QueryAll queries the live log and every rotated generation, for
// time-bounded queries that reach past the newest rotation. Entries
// come back newest first across all files.
func QueryAll(path string, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	filter.Limit = 0

	var out []Entry
	for _, p := range Generations(path) {
		entries, err := Query(p, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f Filter) admits(e Entry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Tool != "" && e.ToolName != f.Tool {
		return false
	}
	if f.Rule != "" && e.RuleName != f.Rule {
		return false
	}
	if f.Decision != "" && e.Decision != f.Decision {
		return false
	}
	if !f.Since.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return false
		}
		if ts.Before(f.Since) {
			return false
		}
	}
	return true
}

// Stats aggregates the log for recommendations and doctor checks.
type Stats struct {
	Total             int            `json:"total"`
	Decisions         map[string]int `json:"decisions"`
	MatchesByRule     map[string]int `json:"matches_by_rule"`
	BlocksByRule      map[string]int `json:"blocks_by_rule"`
	EventsByTool      map[string]int `json:"events_by_tool"`
	CommandsBlocked   map[string]int `json:"commands_blocked"`
	ValidatorFailures int            `json:"validator_failures"`
	FirstTimestamp    string         `json:"first_timestamp,omitempty"`
	LastTimestamp     string         `json:"last_timestamp,omitempty"`
}

// Collect walks the live log and aggregates counters over the entries
// the filter admits.
func Collect(path string, filter Filter) (*Stats, error) {
	entries, err := Query(path, filter)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Decisions:       make(map[string]int),
		MatchesByRule:   make(map[string]int),
		BlocksByRule:    make(map[string]int),
		EventsByTool:    make(map[string]int),
		CommandsBlocked: make(map[string]int),
	}
	for _, e := range entries {
		stats.Total++
		stats.Decisions[e.Decision]++
		for _, name := range e.RulesMatched {
			stats.MatchesByRule[name]++
		}
		if e.ToolName != "" {
			stats.EventsByTool[e.ToolName]++
		}
		if e.Decision == "blocked" {
			if e.RuleName != "" {
				stats.BlocksByRule[e.RuleName]++
			}
			if op := firstWord(e.Details.Command); op != "" {
				stats.CommandsBlocked[op]++
			}
		}
		if e.Validator != nil && e.Validator.Failed {
			stats.ValidatorFailures++
		}
	}

	// Query returns newest first.
	if len(entries) > 0 {
		stats.FirstTimestamp = entries[len(entries)-1].Timestamp
		stats.LastTimestamp = entries[0].Timestamp
	}
	return stats, nil
}

func firstWord(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := start
	for end < len(s) && s[end] != ' ' && s[end] != '\t' {
		end++
	}
	return s[start:end]
}
