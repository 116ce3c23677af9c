package model

import "fmt"

// Decision is the policy outcome for one event.
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionBlocked Decision = "blocked"
	DecisionWarned  Decision = "warned"
	DecisionAudited Decision = "audited"
)

// PolicyMode governs the enforcement strength of a matched rule.
type PolicyMode string

const (
	ModeEnforce PolicyMode = "enforce"
	ModeWarn    PolicyMode = "warn"
	ModeAudit   PolicyMode = "audit"
)

// ModeRank orders modes by dominance. Enforce outranks warn outranks
// audit regardless of rule priority values.
var ModeRank = map[PolicyMode]int{
	ModeEnforce: 3,
	ModeWarn:    2,
	ModeAudit:   1,
}

// ParseMode validates a configured mode string. Empty defaults to
// enforce; anything else unknown is a configuration error.
func ParseMode(s string) (PolicyMode, error) {
	switch PolicyMode(s) {
	case "":
		return ModeEnforce, nil
	case ModeEnforce, ModeWarn, ModeAudit:
		return PolicyMode(s), nil
	default:
		return "", fmt.Errorf("unknown policy mode %q", s)
	}
}
