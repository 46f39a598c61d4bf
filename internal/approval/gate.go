// Package approval gates critical tool operations behind synchronous
// human decisions. The gate is always active; there is no configuration
// switch that disables it.
package approval

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Decision is a human verdict on a critical operation.
type Decision int

const (
	ApproveOnce Decision = iota
	ApproveAlways
	Deny
)

func (d Decision) String() string {
	switch d {
	case ApproveOnce:
		return "approve-once"
	case ApproveAlways:
		return "approve-always"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// DeniedError marks a tool call rejected by the human. It is a
// permanent failure and is never retried.
type DeniedError struct {
	Tool    string
	Pattern string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("operation denied by user: %s (%s)", e.Tool, e.Pattern)
}

// Request describes the operation awaiting a verdict.
type Request struct {
	Tool    string
	Summary string // human-readable operation description
	Pattern string // the matched criticality pattern
	Reason  string // why the pattern is considered critical
}

// Prompter supplies decisions. Implementations block until the human
// answers; they must re-prompt on invalid input rather than defaulting.
type Prompter interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// rule is one (pattern, reason) criticality matcher.
type rule struct {
	re     *regexp.Regexp
	label  string
	reason string
}

// Destructive shell command patterns.
var commandRules = []rule{
	{regexp.MustCompile(`\brm\s+-`), "rm -", "Delete files with 'rm' command"},
	{regexp.MustCompile(`\brm\s+/`), "rm /", "Delete files with 'rm' command"},
	{regexp.MustCompile(`\bdd\s+if=`), "dd if=", "Low-level disk read/write with 'dd'"},
	{regexp.MustCompile(`\bdd\s+of=`), "dd of=", "Low-level disk write with 'dd'"},
	{regexp.MustCompile(`\bmkfs\b`), "mkfs", "Format filesystem"},
	{regexp.MustCompile(`\bfdisk\b`), "fdisk", "Partition disk"},
	{regexp.MustCompile(`\bparted\b`), "parted", "Partition disk"},
}

// Sensitive filesystem locations.
var pathRules = []rule{
	{regexp.MustCompile(`(^|/)etc(/|$)`), "/etc", "System configuration"},
	{regexp.MustCompile(`(^|/)sys(/|$)`), "/sys", "System kernel interface"},
	{regexp.MustCompile(`(^|/)proc(/|$)`), "/proc", "Process information"},
	{regexp.MustCompile(`\.ssh(/|$)`), "~/.ssh", "SSH keys"},
	{regexp.MustCompile(`\.aws(/|$)`), "~/.aws", "AWS credentials"},
	{regexp.MustCompile(`(^|/)\.env`), ".env", "Environment variables (may contain secrets)"},
}

// Key and certificate file extensions.
var sensitiveExtensions = []string{".key", ".pem", ".p12", ".pfx"}

// Gate classifies operations and blocks critical ones on a Prompter.
// approve-always verdicts are remembered per matched pattern for the
// process lifetime.
type Gate struct {
	prompter Prompter
	always   map[string]bool
}

// New creates a gate backed by the given prompter.
func New(prompter Prompter) *Gate {
	return &Gate{
		prompter: prompter,
		always:   make(map[string]bool),
	}
}

// Classify reports whether a tool call is critical. For bash the
// command is matched against destructive patterns; for file tools the
// path is matched against sensitive locations and extensions.
func Classify(tool string, args map[string]interface{}) (critical bool, pattern, reason string) {
	switch tool {
	case "bash":
		command, _ := args["command"].(string)
		lower := strings.ToLower(command)
		for _, r := range commandRules {
			if r.re.MatchString(lower) {
				return true, r.label, r.reason
			}
		}
	case "write", "edit":
		path, _ := args["path"].(string)
		lower := strings.ToLower(path)
		for _, r := range pathRules {
			if r.re.MatchString(lower) {
				return true, r.label, "Write to sensitive path: " + r.reason
			}
		}
		for _, ext := range sensitiveExtensions {
			if strings.HasSuffix(lower, ext) {
				return true, "*" + ext, "Write to key/certificate file"
			}
		}
	}
	return false, "", ""
}

// Check gates one proposed tool call. Non-critical calls pass through.
// Critical calls block on the prompter unless their pattern was
// previously approved with approve-always. Deny returns a DeniedError.
func (g *Gate) Check(ctx context.Context, tool string, args map[string]interface{}) error {
	critical, pattern, reason := Classify(tool, args)
	if !critical {
		return nil
	}
	if g.always[pattern] {
		return nil
	}

	decision, err := g.prompter.Decide(ctx, Request{
		Tool:    tool,
		Summary: summarize(tool, args),
		Pattern: pattern,
		Reason:  reason,
	})
	if err != nil {
		return err
	}

	switch decision {
	case ApproveAlways:
		g.always[pattern] = true
		return nil
	case ApproveOnce:
		return nil
	default:
		return &DeniedError{Tool: tool, Pattern: pattern}
	}
}

// DenyAll denies every request. It is the gate's prompter when no
// interactive front end is attached.
type DenyAll struct{}

func (DenyAll) Decide(_ context.Context, _ Request) (Decision, error) {
	return Deny, nil
}

// Remembered reports whether a pattern holds an approve-always verdict.
func (g *Gate) Remembered(pattern string) bool {
	return g.always[pattern]
}

// summarize builds the human-facing operation description.
func summarize(tool string, args map[string]interface{}) string {
	switch tool {
	case "bash":
		command, _ := args["command"].(string)
		return fmt.Sprintf("%s: %s", tool, command)
	case "write", "edit":
		path, _ := args["path"].(string)
		return fmt.Sprintf("%s: %s", tool, path)
	default:
		return tool
	}
}
