package model

// Response is the decision object written to stdout for the host.
type Response struct {
	Continue bool    `json:"continue"`
	Context  string  `json:"context,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Timing   *Timing `json:"timing,omitempty"`
}

// Timing reports how the decision was reached, for hosts that surface
// hook latency.
type Timing struct {
	ProcessingMS   int64 `json:"processing_ms"`
	RulesEvaluated int   `json:"rules_evaluated"`
}

// Allow is the response for events no rule acts on.
func Allow() Response {
	return Response{Continue: true}
}

// DeriveDecision classifies a response under the governing rule's
// mode. Audit never acts, warn never blocks, enforce blocks when the
// response says stop.
func DeriveDecision(resp Response, mode PolicyMode, governed bool) Decision {
	if !governed {
		return DecisionAllowed
	}
	switch mode {
	case ModeAudit:
		return DecisionAudited
	case ModeWarn:
		if resp.Context != "" {
			return DecisionWarned
		}
		return DecisionAllowed
	default:
		if !resp.Continue {
			return DecisionBlocked
		}
		return DecisionAllowed
	}
}

// RuleEvaluation records one rule's match outcome for debug traces.
type RuleEvaluation struct {
	RuleName   string          `json:"rule_name"`
	Matched    bool            `json:"matched"`
	Predicates map[string]bool `json:"predicates,omitempty"`
}
