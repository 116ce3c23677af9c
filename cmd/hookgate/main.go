// Hookgate is a local policy engine for AI coding agent hooks.
//
// The host agent invokes it once per tool-use event: the event arrives
// as JSON on stdin, the decision leaves as JSON on stdout, and the exit
// status tells the host what to do (0 allow, 77 block, 78 bad config).
// Declarative YAML rules decide which operations are blocked, annotated
// with extra context, or handed to an external validator.
//
// Usage:
//
//	# Scaffold a starter policy in ./.hookgate/
//	hookgate init
//
//	# Register hookgate in the host agent's settings
//	hookgate install
//
//	# Check the policy file and list enabled rules
//	hookgate validate
//
//	# Try an event against the policy without side effects
//	hookgate simulate --tool Bash --command "git push --force"
//
//	# Inspect and verify the decision log
//	hookgate logs
//	hookgate logs verify
//
// For the rule reference, see README.md or the comments in the
// generated policy.yaml.
package main

import "github.com/ppiankov/hookgate/internal/cli"

func main() {
	cli.Execute()
}
