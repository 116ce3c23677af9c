// Package redact removes secret material from text before it is written
// to the audit log. Detection is pattern-based: credential assignments,
// bearer tokens, cloud access keys, well-known API token shapes, and PEM
// private key blocks.
package redact

import (
	"regexp"
	"sort"
)

// Mask replaces every redacted span.
const Mask = "[REDACTED]"

// PatternType identifies the category of secret detected.
type PatternType string

const (
	PatternCred       PatternType = "CRED"
	PatternBearer     PatternType = "BEARER"
	PatternAWSKey     PatternType = "AWS_KEY"
	PatternAPIToken   PatternType = "API_TOKEN"
	PatternPrivateKey PatternType = "PRIVATE_KEY"
)

// Match is a single occurrence of secret material in text.
type Match struct {
	Type  PatternType
	Value string
	Start int
	End   int
}

// Compiled patterns for secret detection.
var (
	// key=value or key: value assignments where the key suggests a secret.
	// No leading boundary so prefixed names like DB_PASSWORD still hit.
	// Group 1 is the value; the key stays visible in scrubbed output.
	credKVRe = regexp.MustCompile(`(?i)(?:password|passwd|secret|token|api[_-]?key|apikey|access[_-]?key|secret[_-]?key|auth|credentials?)[ \t]*[=:][ \t]*["']?([^\s"']+)`)

	// Bearer and Basic authorization values.
	bearerRe = regexp.MustCompile(`(?i)\b(?:bearer|basic)[ \t]+([A-Za-z0-9+/._=\-]{8,})`)

	// AWS access key IDs (long-term and temporary).
	awsKeyRe = regexp.MustCompile(`\b((?:AKIA|ASIA)[A-Z0-9]{16})\b`)

	// Vendor token shapes: OpenAI sk-, GitHub ghp_/gho_/ghs_/ghu_/ghr_,
	// Slack xox, GitLab glpat-.
	apiTokenRe = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{16,}|gh[pousr]_[A-Za-z0-9]{20,}|xox[baprs]-[A-Za-z0-9\-]{10,}|glpat-[A-Za-z0-9_\-]{16,})\b`)

	// PEM private key blocks, including the delimiters.
	pemRe = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)
)

// Scan finds all secret spans in text, sorted by position (earliest first).
// Spans from group-capturing patterns cover only the secret value, not the
// surrounding key or scheme.
func Scan(text string) []Match {
	var matches []Match

	add := func(typ PatternType, start, end int) {
		if start < 0 || end <= start {
			return
		}
		matches = append(matches, Match{Type: typ, Value: text[start:end], Start: start, End: end})
	}

	for _, sub := range credKVRe.FindAllStringSubmatchIndex(text, -1) {
		add(PatternCred, sub[2], sub[3])
	}
	for _, sub := range bearerRe.FindAllStringSubmatchIndex(text, -1) {
		add(PatternBearer, sub[2], sub[3])
	}
	for _, loc := range awsKeyRe.FindAllStringIndex(text, -1) {
		add(PatternAWSKey, loc[0], loc[1])
	}
	for _, loc := range apiTokenRe.FindAllStringIndex(text, -1) {
		add(PatternAPIToken, loc[0], loc[1])
	}
	for _, loc := range pemRe.FindAllStringIndex(text, -1) {
		add(PatternPrivateKey, loc[0], loc[1])
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})

	return matches
}

// Scrub replaces every secret span in text with the mask. Overlapping
// spans collapse into a single mask.
func Scrub(text string) string {
	matches := Scan(text)
	if len(matches) == 0 {
		return text
	}

	var out []byte
	pos := 0
	for _, m := range matches {
		if m.Start < pos {
			if m.End > pos {
				pos = m.End
			}
			continue
		}
		out = append(out, text[pos:m.Start]...)
		out = append(out, Mask...)
		pos = m.End
	}
	out = append(out, text[pos:]...)
	return string(out)
}
