package scenario

// Case is one policy assertion: a synthetic event and the decision it
// must produce.
type Case struct {
	Name    string         `yaml:"name,omitempty"`
	Event   string         `yaml:"event,omitempty"` // default PreToolUse
	Tool    string         `yaml:"tool,omitempty"`
	Command string         `yaml:"command,omitempty"`
	Path    string         `yaml:"path,omitempty"`
	Prompt  string         `yaml:"prompt,omitempty"`
	Input   map[string]any `yaml:"input,omitempty"` // extra tool_input fields
	Cwd     string         `yaml:"cwd,omitempty"`

	Expect string `yaml:"expect"`         // allowed | blocked | warned | audited
	Rule   string `yaml:"rule,omitempty"` // expected governing rule, optional
}

// Scenario is a named collection of policy test cases.
type Scenario struct {
	Name   string `yaml:"name"`
	Config string `yaml:"config,omitempty"` // policy file, relative to the scenario file
	Cases  []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Name     string `json:"name,omitempty"`
	Passed   bool   `json:"passed"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Rule     string `json:"rule,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
