package expr

import "testing"

func testContext() *Context {
	env := map[string]string{"CI": "true", "HOME": "/home/dev"}
	return &Context{
		ToolName: "Bash",
		ToolInput: map[string]any{
			"command": "git push --force",
			"timeout": float64(30),
			"dry_run": true,
			"nested":  map[string]any{"x": 1},
		},
		SessionID:      "sess-42",
		SessionProject: "hookgate",
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{`tool.name == "Bash"`, true},
		{`tool.name == "Write"`, false},
		{`tool.name != "Write"`, true},
		{`tool.input.command =~ "push.*--force"`, true},
		{`tool.input.command =~ "pull"`, false},
		{`env.CI == "true"`, true},
		{`env.MISSING == ""`, true},
		{`session.id == "sess-42"`, true},
		{`session.project == "hookgate"`, true},
		{`tool.name == "Bash" && env.CI == "true"`, true},
		{`tool.name == "Write" || env.CI == "true"`, true},
		{`tool.name == "Write" && env.CI == "true"`, false},
		{`!(tool.name == "Write")`, true},
		{`!tool.name == "Bash"`, false},
		{`(tool.name == "Bash" || tool.name == "Write") && session.project == "hookgate"`, true},
		// Scalar coercion of non-string input fields.
		{`tool.input.timeout == "30"`, true},
		{`tool.input.dry_run == "true"`, true},
		// Objects and missing fields resolve empty.
		{`tool.input.nested == ""`, true},
		{`tool.input.absent == ""`, true},
		// Literal on the left.
		{`"Bash" == tool.name`, true},
	}

	ctx := testContext()
	for _, tt := range tests {
		e, err := Compile(tt.src)
		if err != nil {
			t.Errorf("Compile(%q): %v", tt.src, err)
			continue
		}
		if got := e.Eval(ctx); got != tt.want {
			t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	bad := []string{
		``,
		`tool.name =`,
		`tool.name == `,
		`tool.name ~= "Bash"`,
		`tool.name == "Bash" &&`,
		`(tool.name == "Bash"`,
		`tool.name == "unterminated`,
		`bogus.path == "x"`,
		`tool.input. == "x"`,
		`tool.input.a.b == "x"`,
		`env. == "x"`,
		`tool.input.command =~ "("`,
		`tool.name == "Bash" extra`,
		`tool.name =~ session.id`,
		`tool.name & "Bash"`,
		`tool.name | "Bash"`,
	}
	for _, src := range bad {
		if _, err := Compile(src); err == nil {
			t.Errorf("Compile(%q): expected error", src)
		}
	}
}

func TestShortCircuit(t *testing.T) {
	calls := 0
	ctx := testContext()
	ctx.LookupEnv = func(k string) (string, bool) {
		calls++
		return "", false
	}

	e, err := Compile(`tool.name == "Bash" || env.NEVER == "x"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !e.Eval(ctx) {
		t.Fatal("expected true")
	}
	if calls != 0 {
		t.Errorf("env lookup ran despite short circuit (%d calls)", calls)
	}
}

func TestEvalNilEnv(t *testing.T) {
	e, err := Compile(`env.ANY == ""`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !e.Eval(&Context{}) {
		t.Error("nil LookupEnv should resolve empty")
	}
}

func TestEscapes(t *testing.T) {
	e, err := Compile(`tool.input.command == "say \"hi\""`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ctx := &Context{ToolInput: map[string]any{"command": `say "hi"`}}
	if !e.Eval(ctx) {
		t.Error("escaped quote literal did not match")
	}
}
