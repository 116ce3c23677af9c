package policy

import (
	"testing"

	"github.com/ppiankov/hookgate/internal/model"
)

func mustRuleSet(t *testing.T, rules []Rule) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	return rs
}

func TestResolveModeDominatesPriority(t *testing.T) {
	p100, p200 := 100, 200
	rs := mustRuleSet(t, []Rule{
		{Name: "enforce-low", Mode: "enforce", Priority: &p100, Actions: Actions{Block: true}},
		{Name: "warn-high", Mode: "warn", Priority: &p200, Actions: Actions{Block: true}},
	})

	res := Resolve(rs.Rules())
	if !res.Governed {
		t.Fatal("expected a governing rule")
	}
	if res.Rule.Name != "enforce-low" {
		t.Errorf("governing rule = %q, want enforce-low", res.Rule.Name)
	}
	if res.Mode != model.ModeEnforce {
		t.Errorf("mode = %q, want enforce", res.Mode)
	}
}

func TestResolvePriorityWithinMode(t *testing.T) {
	p50, p100 := 50, 100
	rs := mustRuleSet(t, []Rule{
		{Name: "weak", Mode: "enforce", Priority: &p50, Actions: Actions{Block: true}},
		{Name: "strong", Mode: "enforce", Priority: &p100, Actions: Actions{Block: true}},
	})

	res := Resolve(rs.Rules())
	if res.Rule.Name != "strong" {
		t.Errorf("governing rule = %q, want strong", res.Rule.Name)
	}
}

func TestResolveTieBreaksByDeclarationOrder(t *testing.T) {
	p := 10
	rs := mustRuleSet(t, []Rule{
		{Name: "first", Mode: "enforce", Priority: &p, Actions: Actions{Block: true}},
		{Name: "second", Mode: "enforce", Priority: &p, Actions: Actions{Block: true}},
	})

	res := Resolve(rs.Rules())
	if res.Rule.Name != "first" {
		t.Errorf("governing rule = %q, want first", res.Rule.Name)
	}
}

func TestResolveFallsThroughTiers(t *testing.T) {
	tests := []struct {
		name     string
		rules    []Rule
		wantRule string
		wantMode model.PolicyMode
	}{
		{
			"warn only",
			[]Rule{{Name: "w", Mode: "warn", Actions: Actions{Block: true}}},
			"w", model.ModeWarn,
		},
		{
			"audit only",
			[]Rule{{Name: "a", Mode: "audit", Actions: Actions{Block: true}}},
			"a", model.ModeAudit,
		},
		{
			"warn beats audit",
			[]Rule{
				{Name: "a", Mode: "audit", Actions: Actions{Block: true}},
				{Name: "w", Mode: "warn", Actions: Actions{Block: true}},
			},
			"w", model.ModeWarn,
		},
	}

	for _, tt := range tests {
		rs := mustRuleSet(t, tt.rules)
		res := Resolve(rs.Rules())
		if !res.Governed {
			t.Errorf("%s: expected a governing rule", tt.name)
			continue
		}
		if res.Rule.Name != tt.wantRule || res.Mode != tt.wantMode {
			t.Errorf("%s: got (%q, %q), want (%q, %q)",
				tt.name, res.Rule.Name, res.Mode, tt.wantRule, tt.wantMode)
		}
	}
}

func TestResolveNoMatches(t *testing.T) {
	res := Resolve(nil)
	if res.Governed {
		t.Error("empty slice must not govern")
	}
	if res.Rule != nil {
		t.Error("rule must be nil when nothing governs")
	}

	res = Resolve([]*CompiledRule{})
	if res.Governed {
		t.Error("zero-length slice must not govern")
	}
}

func TestResolveDefaultModeIsEnforce(t *testing.T) {
	p200 := 200
	rs := mustRuleSet(t, []Rule{
		{Name: "implicit", Actions: Actions{Block: true}},
		{Name: "loud-warn", Mode: "warn", Priority: &p200, Actions: Actions{Block: true}},
	})

	res := Resolve(rs.Rules())
	if res.Rule.Name != "implicit" {
		t.Errorf("governing rule = %q, want implicit (unset mode is enforce)", res.Rule.Name)
	}
	if res.Mode != model.ModeEnforce {
		t.Errorf("mode = %q, want enforce", res.Mode)
	}
}
