package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/router"
)

func testProfile() router.Profile {
	return router.Profile{
		Name:           "code",
		PreferredTools: []string{"read", "write", "bash"},
		PromptSuffix:   "You are a code agent.",
	}
}

func TestCreate_NumberedPlan(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("1. Read the config\n2. Edit the loader\n3. Run the tests")

	plan, err := New(provider, true).Create(context.Background(), "fix the loader", testProfile())
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if plan.Fallback {
		t.Error("expected a parsed plan, got fallback")
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Index != 1 || plan.Steps[0].Description != "Read the config" {
		t.Errorf("unexpected first step: %+v", plan.Steps[0])
	}
	if plan.Steps[2].Index != 3 {
		t.Errorf("expected indices to be sequential, got %d", plan.Steps[2].Index)
	}
}

func TestCreate_ReportsTokenUsage(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		Content:      "1. Read the config\n2. Run the tests",
		StopReason:   "end_turn",
		InputTokens:  42,
		OutputTokens: 17,
	})

	plan, err := New(provider, true).Create(context.Background(), "fix the loader", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if plan.InputTokens != 42 || plan.OutputTokens != 17 {
		t.Errorf("tokens = %d/%d", plan.InputTokens, plan.OutputTokens)
	}
}

func TestCreate_UnparseableKeepsTokenUsage(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		Content:      "I would approach this holistically.",
		StopReason:   "end_turn",
		InputTokens:  30,
		OutputTokens: 8,
	})

	plan, err := New(provider, true).Create(context.Background(), "fix it", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Fallback {
		t.Error("expected fallback plan")
	}
	if plan.InputTokens != 30 || plan.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d", plan.InputTokens, plan.OutputTokens)
	}
}

func TestCreate_PromptNamesPreferredTools(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("1. do it")

	_, err := New(provider, true).Create(context.Background(), "task", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	req := provider.LastRequest()
	if len(req.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Content != "You are a code agent." {
		t.Errorf("expected profile suffix as system message, got %q", req.Messages[0].Content)
	}
	for _, want := range []string{"read, write, bash", "task"} {
		if !strings.Contains(req.Messages[1].Content, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCreate_ModelErrorFallsBack(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueError(errors.New("rate limited"))

	plan, err := New(provider, true).Create(context.Background(), "fix the loader", testProfile())
	if err != nil {
		t.Fatalf("expected graceful fallback, got error: %v", err)
	}
	if !plan.Fallback {
		t.Error("expected fallback plan")
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Description != "fix the loader" {
		t.Errorf("unexpected fallback steps: %+v", plan.Steps)
	}
}

func TestCreate_UnparseableFallsBack(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("I would approach this holistically.")

	plan, err := New(provider, true).Create(context.Background(), "fix it", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Fallback {
		t.Error("expected fallback for unparseable response")
	}
}

func TestCreate_Disabled(t *testing.T) {
	provider := llm.NewMockProvider()
	plan, err := New(provider, false).Create(context.Background(), "fix it", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Fallback {
		t.Error("expected implicit plan when disabled")
	}
	if provider.CallCount() != 0 {
		t.Errorf("expected no model calls when disabled, got %d", provider.CallCount())
	}
}

func TestCreate_CancelledContext(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueError(context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(provider, true).Create(ctx, "fix it", testProfile())
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestParseSteps_Forms(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"numbered dot", "1. first\n2. second", 2},
		{"numbered paren", "1) first\n2) second", 2},
		{"dashes", "- first\n- second\n- third", 3},
		{"asterisks", "* first\n* second", 2},
		{"mixed with prose", "Here is the plan:\n1. first\nsome aside\n2. second", 2},
		{"empty", "", 0},
		{"prose only", "Just do the thing.", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			steps := ParseSteps(tc.text)
			if len(steps) != tc.want {
				t.Errorf("expected %d steps, got %d", tc.want, len(steps))
			}
		})
	}
}
