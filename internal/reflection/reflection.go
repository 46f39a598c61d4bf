// Package reflection classifies failed tool output and produces a
// corrective hint for the model. It is a pure keyword trigger, not a
// diagnosis, and never calls the model itself.
package reflection

import (
	"fmt"
	"strings"
)

// Category is the likely failure cause class.
type Category string

const (
	CategoryMissing    Category = "missing-resource"
	CategoryPermission Category = "permission"
	CategoryBadInput   Category = "bad-input"
	CategoryTimeout    Category = "timeout"
	CategoryGeneric    Category = "generic-failure"
)

// Hint is the structured reflection output injected into the model's
// context as an observation.
type Hint struct {
	Tool        string
	Category    Category
	Suggestions []string
}

// Observation renders the hint as a context message for the model.
func (h Hint) Observation() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reflection on failed %s call (likely cause: %s). Consider:\n", h.Tool, h.Category)
	for i, s := range h.Suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// triggerKeywords are the substrings that mark output as a failure
// worth reflecting on.
var triggerKeywords = []string{
	"error",
	"failed",
	"traceback",
	"exception",
	"not found",
	"no such",
	"permission denied",
	"access denied",
	"invalid",
	"malformed",
	"timeout",
}

// categoryKeywords maps cause categories to their indicator substrings,
// checked in order; the first category with a hit wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryMissing, []string{"not found", "no such", "does not exist", "missing"}},
	{CategoryPermission, []string{"permission denied", "access denied", "forbidden", "unauthorized"}},
	{CategoryBadInput, []string{"invalid", "malformed", "bad argument", "syntax error", "unexpected"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
}

// categorySuggestions holds 1-3 suggested next actions per category.
var categorySuggestions = map[Category][]string{
	CategoryMissing: {
		"Verify the path or resource name exists before using it",
		"List the parent directory or search for the correct name",
		"Create the missing resource first if it is expected to exist",
	},
	CategoryPermission: {
		"Choose a location the process can write to",
		"Avoid operating on protected system paths",
	},
	CategoryBadInput: {
		"Re-check the argument format and fix the malformed value",
		"Simplify the input and retry with a minimal version",
	},
	CategoryTimeout: {
		"Retry with a smaller or simpler operation",
		"Break the work into faster incremental calls",
	},
	CategoryGeneric: {
		"Retry with different arguments",
		"Try a different approach or tool",
		"Ask the user for clarification",
	},
}

// Engine is the reflection classifier.
type Engine struct {
	enabled bool
}

// New creates an engine. When disabled, Reflect never produces a hint.
func New(enabled bool) *Engine {
	return &Engine{enabled: enabled}
}

// ShouldReflect reports whether the output text triggers reflection.
func (e *Engine) ShouldReflect(output string) bool {
	if !e.enabled {
		return false
	}
	lower := strings.ToLower(output)
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Reflect classifies a failed tool output. Returns ok=false when no
// trigger keyword is present; the failure then surfaces as-is.
func (e *Engine) Reflect(tool, output string) (Hint, bool) {
	if !e.ShouldReflect(output) {
		return Hint{}, false
	}

	lower := strings.ToLower(output)
	category := CategoryGeneric
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(lower, kw) {
				category = ck.category
				break
			}
		}
		if category != CategoryGeneric {
			break
		}
	}

	return Hint{
		Tool:        tool,
		Category:    category,
		Suggestions: categorySuggestions[category],
	}, true
}
