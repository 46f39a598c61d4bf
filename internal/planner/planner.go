// Package planner turns a task into an ordered list of steps using one
// model request. Planning failures never block execution; the fallback
// is a single step containing the task verbatim.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/router"
)

// Step is one unit of plan work.
type Step struct {
	Index       int
	Description string
}

// Plan is the ordered step list for a task. Token counts are those
// spent on the planning request itself (zero for implicit plans).
type Plan struct {
	Steps        []Step
	Fallback     bool // true when the plan is the single implicit step
	InputTokens  int
	OutputTokens int
}

// Planner requests plans from a model provider.
type Planner struct {
	provider llm.Provider
	enabled  bool
}

// New creates a planner. When disabled, Create returns the implicit
// single-step plan without a model request.
func New(provider llm.Provider, enabled bool) *Planner {
	return &Planner{provider: provider, enabled: enabled}
}

// implicit returns the single-step fallback plan.
func implicit(task string) *Plan {
	return &Plan{
		Steps:    []Step{{Index: 1, Description: task}},
		Fallback: true,
	}
}

// Create produces a plan for the task. Model or parse failures degrade
// to the implicit plan; the returned error is always nil unless the
// context was cancelled.
func (p *Planner) Create(ctx context.Context, task string, profile router.Profile) (*Plan, error) {
	if !p.enabled {
		return implicit(task), nil
	}

	prompt := fmt.Sprintf(`Create a concise step-by-step plan.

Task: %s

Use only these tools: %s.
Respond with a brief numbered plan (3-5 steps). Be concise.`,
		task, strings.Join(profile.PreferredTools, ", "))

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: profile.PromptSuffix},
			{Role: "user", Content: prompt},
		},
		MaxTokens: 500,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return implicit(task), nil
	}

	steps := ParseSteps(resp.Content)
	if len(steps) == 0 {
		plan := implicit(task)
		plan.InputTokens = resp.InputTokens
		plan.OutputTokens = resp.OutputTokens
		return plan, nil
	}
	return &Plan{Steps: steps, InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}, nil
}

// stepLineRe matches "1. text", "1) text" and "- text" forms.
var stepLineRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s+(.+)$`)

// ParseSteps extracts ordered steps from a numbered or bulleted list.
// Returns nil when no step lines are found.
func ParseSteps(text string) []Step {
	var steps []Step
	for _, line := range strings.Split(text, "\n") {
		m := stepLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		if desc == "" {
			continue
		}
		steps = append(steps, Step{Index: len(steps) + 1, Description: desc})
	}
	return steps
}
