package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openclaw/bladerunner/internal/config"
	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/session"
	"github.com/openclaw/bladerunner/internal/tools"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Storage.Path = t.TempDir()
	cfg.Engine.EnablePlanning = false
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, mock *llm.MockProvider, toolList ...tools.Tool) *Engine {
	t.Helper()
	registry := tools.NewEmptyRegistry()
	for _, tl := range toolList {
		registry.Register(tl)
	}
	eng, err := New(Options{
		Config:   cfg,
		Provider: mock,
		Registry: registry,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestNew_RequiresProvider(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without provider")
	}
}

func TestRun_Complete(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.QueueToolCall("tc1", "note", map[string]interface{}{"text": "hi"})
	mock.QueueResponse(&llm.ChatResponse{
		Content:      "All done.",
		StopReason:   "end_turn",
		InputTokens:  100,
		OutputTokens: 20,
	})

	eng := newTestEngine(t, testConfig(t), mock, &flakyTool{name: "note"})
	result, err := eng.Run(context.Background(), "record a note")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusComplete {
		t.Errorf("status = %v", result.Status)
	}
	if result.Output != "All done." {
		t.Errorf("output = %q", result.Output)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if result.InputTokens != 100 || result.OutputTokens != 20 {
		t.Errorf("tokens = %d/%d", result.InputTokens, result.OutputTokens)
	}
	if len(result.Steps) != 1 || result.Steps[0].Status != "complete" {
		t.Errorf("steps = %+v", result.Steps)
	}

	// Successful tasks are committed to solution memory with their
	// execution path.
	sols := eng.Memory().Solutions()
	if len(sols) != 1 {
		t.Fatalf("solutions = %d", len(sols))
	}
	if len(sols[0].Steps) != 1 || sols[0].Steps[0] != "tool:note(text)" {
		t.Errorf("stored steps = %v", sols[0].Steps)
	}

	// The tool result travels back to the model as a tool message.
	last := mock.LastRequest()
	var sawTool bool
	for _, msg := range last.Messages {
		if msg.Role == "tool" && msg.Content == "done" && msg.ToolCallID == "tc1" {
			sawTool = true
		}
	}
	if !sawTool {
		t.Errorf("missing tool message in %+v", last.Messages)
	}
}

func TestRun_ImplicitPlanUsesTask(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse("done")

	eng := newTestEngine(t, testConfig(t), mock)
	result, err := eng.Run(context.Background(), "summarize the report")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Steps) != 1 || result.Steps[0].Description != "summarize the report" {
		t.Errorf("steps = %+v", result.Steps)
	}
}

func TestRun_StepFailurePartial(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.EnablePlanning = true

	mock := llm.NewMockProvider()
	mock.SetResponse("1. describe the data\n2. transform the data")
	mock.SetResponse("description written")
	for i := 0; i < 3; i++ {
		mock.QueueToolCall("tc", "broken", map[string]interface{}{"path": "/x"})
	}

	broken := &flakyTool{name: "broken", failures: 10, err: errors.New("file not found: /x")}
	eng := newTestEngine(t, cfg, mock, broken)

	result, err := eng.Run(context.Background(), "process the data")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusPartial {
		t.Errorf("status = %v", result.Status)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("steps = %+v", result.Steps)
	}
	if result.Steps[0].Status != "complete" || result.Steps[1].Status != "failed" {
		t.Errorf("steps = %+v", result.Steps)
	}
	if !strings.Contains(result.Err, "step 2") {
		t.Errorf("err = %q", result.Err)
	}
	// A partially failed task is never stored as a reusable solution.
	if eng.Memory().Count() != 0 {
		t.Error("partial task should not be stored in memory")
	}

	// Failures classified by reflection inject an observation message.
	var sawReflection bool
	for _, msg := range mock.LastRequest().Messages {
		if msg.Role == "user" && strings.Contains(msg.Content, "Reflection on failed broken call") {
			sawReflection = true
		}
	}
	if !sawReflection {
		t.Error("missing reflection observation in model context")
	}
}

func TestRun_ReflectionFollowsToolResult(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.QueueToolCall("tc1", "broken", map[string]interface{}{"path": "/x"})
	mock.SetResponse("giving up")

	broken := &flakyTool{name: "broken", failures: 1, err: errors.New("file not found: /x")}
	eng := newTestEngine(t, testConfig(t), mock, broken)
	if _, err := eng.Run(context.Background(), "read the file"); err != nil {
		t.Fatal(err)
	}

	// Tool results must directly follow the assistant turn that asked
	// for them; the reflection observation comes after.
	msgs := mock.LastRequest().Messages
	callIdx, toolIdx, obsIdx := -1, -1, -1
	for i, msg := range msgs {
		switch {
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			callIdx = i
		case msg.Role == "tool" && msg.ToolCallID == "tc1":
			toolIdx = i
		case msg.Role == "user" && strings.Contains(msg.Content, "Reflection on failed broken call"):
			obsIdx = i
		}
	}
	if callIdx < 0 || toolIdx < 0 || obsIdx < 0 {
		t.Fatalf("missing messages: call=%d tool=%d observation=%d", callIdx, toolIdx, obsIdx)
	}
	if toolIdx != callIdx+1 {
		t.Errorf("tool result at %d, assistant tool call at %d", toolIdx, callIdx)
	}
	if obsIdx < toolIdx {
		t.Errorf("observation at %d precedes tool result at %d", obsIdx, toolIdx)
	}
}

func TestRun_IterationCapIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.EnablePlanning = true
	cfg.Engine.MaxIterations = 2

	mock := llm.NewMockProvider()
	mock.SetResponse("1. describe the data\n2. transform the data")
	mock.SetResponse("description written")
	mock.QueueToolCall("tc", "note", map[string]interface{}{"text": "loop"})

	eng := newTestEngine(t, cfg, mock, &flakyTool{name: "note"})
	result, err := eng.Run(context.Background(), "process the data")
	if err != nil {
		t.Fatal(err)
	}
	// A completed first step does not soften a capped run to partial.
	if result.Status != StatusFailed {
		t.Errorf("status = %v", result.Status)
	}
	if len(result.Steps) == 0 || result.Steps[0].Status != "complete" {
		t.Errorf("steps = %+v", result.Steps)
	}
	if !strings.Contains(result.Err, "iteration limit") {
		t.Errorf("err = %q", result.Err)
	}
}

func TestRun_HistorySeedsConversation(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse("continuing")

	eng, err := New(Options{
		Config:   testConfig(t),
		Provider: mock,
		Registry: tools.NewEmptyRegistry(),
		Logger:   quietLogger(),
		History: []llm.Message{
			{Role: "user", Content: "list the config files"},
			{Role: "assistant", Content: "config.toml and profiles.yaml"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Run(context.Background(), "now edit the first one"); err != nil {
		t.Fatal(err)
	}

	msgs := mock.LastRequest().Messages
	if len(msgs) < 4 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].Role != "system" {
		t.Errorf("first message role = %q", msgs[0].Role)
	}
	if msgs[1].Content != "list the config files" || msgs[2].Content != "config.toml and profiles.yaml" {
		t.Errorf("history not carried over: %+v", msgs[1:3])
	}
	if msgs[3].Role != "user" || msgs[3].Content != "now edit the first one" {
		t.Errorf("task message = %+v", msgs[3])
	}
}

func TestRun_PlanningTokensCounted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.EnablePlanning = true

	mock := llm.NewMockProvider()
	mock.QueueResponse(&llm.ChatResponse{
		Content:      "1. say hello",
		StopReason:   "end_turn",
		InputTokens:  40,
		OutputTokens: 10,
	})
	mock.QueueResponse(&llm.ChatResponse{
		Content:      "hello",
		StopReason:   "end_turn",
		InputTokens:  60,
		OutputTokens: 5,
	})

	eng := newTestEngine(t, cfg, mock)
	result, err := eng.Run(context.Background(), "greet")
	if err != nil {
		t.Fatal(err)
	}
	if result.InputTokens != 100 || result.OutputTokens != 15 {
		t.Errorf("tokens = %d/%d", result.InputTokens, result.OutputTokens)
	}
}

func TestRun_ChatError(t *testing.T) {
	mock := llm.NewMockProvider()
	sentinel := errors.New("model overloaded")
	mock.QueueError(sentinel)

	eng := newTestEngine(t, testConfig(t), mock)
	result, err := eng.Run(context.Background(), "do something")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
	if result == nil || result.Status != StatusFailed {
		t.Errorf("result = %+v", result)
	}
}

func TestRun_IterationCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.MaxIterations = 3

	mock := llm.NewMockProvider()
	mock.QueueToolCall("tc", "note", map[string]interface{}{"text": "loop"})

	eng := newTestEngine(t, cfg, mock, &flakyTool{name: "note"})
	result, err := eng.Run(context.Background(), "never finish")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusFailed {
		t.Errorf("status = %v", result.Status)
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if !strings.Contains(result.Err, "iteration limit") {
		t.Errorf("err = %q", result.Err)
	}
}

func TestRun_CriticalToolDeniedByDefault(t *testing.T) {
	dir := t.TempDir()
	mgr := session.NewManager(dir)
	id, err := mgr.Create("")
	if err != nil {
		t.Fatal(err)
	}

	mock := llm.NewMockProvider()
	mock.QueueToolCall("tc1", "bash", map[string]interface{}{"command": "rm -rf /tmp/scratch"})
	mock.SetResponse("stopping here")

	bash := &flakyTool{name: "bash"}
	registry := tools.NewEmptyRegistry()
	registry.Register(bash)
	eng, err := New(Options{
		Config:    testConfig(t),
		Provider:  mock,
		Registry:  registry,
		Logger:    quietLogger(),
		Sessions:  mgr,
		SessionID: id,
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := eng.Run(context.Background(), "clean up scratch space")
	if err != nil {
		t.Fatal(err)
	}
	if bash.calls != 0 {
		t.Error("denied command must never execute")
	}
	// The step still completes on the model's follow-up text.
	if result.Status != StatusComplete {
		t.Errorf("status = %v", result.Status)
	}

	events, err := mgr.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	var approval *session.Event
	for i := range events {
		if events[i].Type == session.EventApproval {
			approval = &events[i]
		}
	}
	if approval == nil {
		t.Fatal("no approval event recorded")
	}
	if approval.Tool != "bash" || approval.Decision != "deny" {
		t.Errorf("approval = %+v", approval)
	}
}

func TestRun_SessionTranscript(t *testing.T) {
	mgr := session.NewManager(t.TempDir())
	id, err := mgr.Create("")
	if err != nil {
		t.Fatal(err)
	}

	mock := llm.NewMockProvider()
	mock.SetResponse("finished")

	eng, err := New(Options{
		Config:    testConfig(t),
		Provider:  mock,
		Registry:  tools.NewEmptyRegistry(),
		Logger:    quietLogger(),
		Sessions:  mgr,
		SessionID: id,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Run(context.Background(), "say hello"); err != nil {
		t.Fatal(err)
	}

	events, err := mgr.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, ev := range events {
		seen[ev.Type] = true
	}
	for _, want := range []string{
		session.EventSessionStart,
		session.EventAgentSelect,
		session.EventPlan,
		session.EventTaskStart,
		session.EventStepStart,
		session.EventMessage,
		session.EventStepEnd,
		session.EventTaskEnd,
	} {
		if !seen[want] {
			t.Errorf("missing %s event", want)
		}
	}

	// The final task_end reports success.
	last := events[len(events)-1]
	if last.Type != session.EventTaskEnd || last.Success == nil || !*last.Success {
		t.Errorf("last event = %+v", last)
	}
}

func TestTaskStatus(t *testing.T) {
	complete := StepResult{Status: "complete"}
	failed := StepResult{Status: "failed"}
	cases := []struct {
		steps   []StepResult
		planned int
		want    Status
	}{
		{[]StepResult{complete, complete}, 2, StatusComplete},
		{[]StepResult{complete, failed}, 2, StatusPartial},
		{[]StepResult{failed, failed}, 2, StatusFailed},
		{[]StepResult{complete}, 2, StatusPartial},
		{nil, 1, StatusFailed},
	}
	for i, tc := range cases {
		if got := taskStatus(tc.steps, tc.planned); got != tc.want {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestSystemPrompt(t *testing.T) {
	mock := llm.NewMockProvider()
	eng := newTestEngine(t, testConfig(t), mock)

	profile, _ := eng.router.Select("fix the failing build")
	prompt := eng.systemPrompt(profile, "[Similar Past Solutions]\n...")
	if !strings.Contains(prompt, "autonomous agent") {
		t.Errorf("missing base prompt: %q", prompt)
	}
	if profile.PromptSuffix != "" && !strings.Contains(prompt, profile.PromptSuffix) {
		t.Error("missing profile suffix")
	}
	if !strings.Contains(prompt, "[Similar Past Solutions]") {
		t.Error("missing memory context")
	}
}

func TestTruncateForLog(t *testing.T) {
	if got := truncateForLog("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateForLog("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("got %q", got)
	}
}
