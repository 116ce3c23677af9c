package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ppiankov/hookgate/internal/model"
)

// Verdict is the one JSON object a validator must print on stdout.
// Anything else on stdout is a validator failure.
type Verdict struct {
	Continue bool   `json:"continue"`
	Context  string `json:"context,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Report captures a validator run for the audit record.
type Report struct {
	Program  string
	ExitCode int
	Duration time.Duration
	Failed   bool
	Failure  string
	Output   string

	verdict Verdict
}

// runValidator spawns the validator with the event JSON on stdin and
// event fields in the environment, awaits it under the timeout, and
// decodes its verdict. On timeout the process is killed and reaped.
// All failure modes (spawn, timeout, non-zero exit, bad output) are
// reported in the Report, never as an error.
func (x *Executor) runValidator(parent context.Context, program string, ev *model.Event, timeout time.Duration) *Report {
	report := &Report{Program: program, ExitCode: -1}

	eventJSON, err := json.Marshal(ev)
	if err != nil {
		report.Failed = true
		report.Failure = fmt.Sprintf("encode event: %v", err)
		return report
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, program)
	cmd.Stdin = bytes.NewReader(eventJSON)
	stdout := newLimitedWriter(x.MaxOutput)
	stderr := newLimitedWriter(x.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(),
		"HOOKGATE_EVENT_TYPE="+string(ev.EventType),
		"HOOKGATE_TOOL_NAME="+ev.ToolName,
		"HOOKGATE_SESSION_ID="+ev.SessionID,
		"HOOKGATE_CWD="+ev.Cwd,
	)
	// Unblocks Wait if a grandchild inherits the pipes and outlives
	// the kill.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	report.Duration = time.Since(start)
	report.Output = stdout.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		report.Failed = true
		report.Failure = fmt.Sprintf("timeout after %s", timeout)
		return report
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			report.ExitCode = exitErr.ExitCode()
			report.Failed = true
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				report.Failure = fmt.Sprintf("exit status %d: %s", report.ExitCode, msg)
			} else {
				report.Failure = fmt.Sprintf("exit status %d", report.ExitCode)
			}
			return report
		}
		report.Failed = true
		report.Failure = fmt.Sprintf("spawn: %v", runErr)
		return report
	}

	report.ExitCode = 0
	verdict, err := decodeVerdict(stdout.String())
	if err != nil {
		report.Failed = true
		report.Failure = fmt.Sprintf("output: %v", err)
		return report
	}
	report.verdict = verdict
	return report
}

// decodeVerdict requires stdout to hold exactly one JSON object with a
// "continue" field. Unknown fields are tolerated.
func decodeVerdict(output string) (Verdict, error) {
	dec := json.NewDecoder(strings.NewReader(output))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Verdict{}, errors.New("expected one JSON object on stdout")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return Verdict{}, errors.New("expected exactly one JSON object on stdout")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Verdict{}, errors.New("stdout is not a JSON object")
	}
	if _, ok := probe["continue"]; !ok {
		return Verdict{}, errors.New(`verdict is missing "continue"`)
	}

	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %v", err)
	}
	return v, nil
}
