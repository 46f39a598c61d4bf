package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T, level Level) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(level)
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
		" Warn ":  LevelWarn,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := capture(t, LevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	if strings.Contains(out, "d\n") || strings.Contains(out, "i\n") {
		t.Errorf("low-severity lines leaked through: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "ERROR") {
		t.Errorf("missing warn/error lines: %q", out)
	}
}

func TestLineFormat(t *testing.T) {
	l, buf := capture(t, LevelInfo)
	l.WithComponent("engine").Info("started", map[string]interface{}{"task": "t1"})

	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("missing level prefix: %q", line)
	}
	if !strings.Contains(line, "[engine]") {
		t.Errorf("missing component: %q", line)
	}
	if !strings.Contains(line, "started") || !strings.Contains(line, "task=t1") {
		t.Errorf("missing message or fields: %q", line)
	}
}

func TestWithTaskID(t *testing.T) {
	l, buf := capture(t, LevelInfo)
	l.WithTaskID("task_42").Info("hi")
	if !strings.Contains(buf.String(), "task=task_42") {
		t.Errorf("missing task stamp: %q", buf.String())
	}
}

func TestWithComponent_IndependentCopies(t *testing.T) {
	l, buf := capture(t, LevelInfo)
	a := l.WithComponent("a")
	b := l.WithComponent("b")
	a.Info("from-a")
	b.Info("from-b")
	out := buf.String()
	if !strings.Contains(out, "[a]") || !strings.Contains(out, "[b]") {
		t.Errorf("components not independent: %q", out)
	}
}

func TestToolResult(t *testing.T) {
	l, buf := capture(t, LevelDebug)
	l.ToolResult("read", 5*time.Millisecond, nil)
	if !strings.Contains(buf.String(), "tool_result") {
		t.Errorf("missing tool_result: %q", buf.String())
	}

	buf.Reset()
	l.ToolResult("bash", time.Second, errBoom{})
	out := buf.String()
	if !strings.Contains(out, "tool_error") || !strings.Contains(out, "error=boom") {
		t.Errorf("missing tool_error: %q", out)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestDomainHelpers(t *testing.T) {
	l, buf := capture(t, LevelDebug)

	l.ToolCall("bash", 2)
	l.RetryWait("bash", 1, 2*time.Second)
	l.RetriesExhausted("bash", 4, errBoom{})
	l.AgentSelected("code", 3)
	l.PlanCreated(2, false)
	l.ApprovalPrompt("bash", "rm -rf")
	l.ApprovalDecision("bash", "rm -rf", "deny")
	l.Reflection("read", "missing-target")

	out := buf.String()
	for _, want := range []string{
		"tool_call", "attempt=2",
		"retry_wait", "wait=2s",
		"retries_exhausted", "attempts=4",
		"agent_selected", "agent=code",
		"plan_created", "steps=2",
		"approval_prompt", "security=true",
		"approval_decision", "decision=deny",
		"reflection", "category=missing-target",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}
