// Package logging provides structured key=value logging with
// engine-specific event helpers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	taskID    string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		taskID:    l.taskID,
	}
}

// WithTaskID returns a new logger that stamps every line with the task ID.
func (l *Logger) WithTaskID(taskID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		taskID:    taskID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.taskID != "" {
		fieldStr += " task=" + l.taskID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// ToolCall logs a tool invocation.
func (l *Logger) ToolCall(tool string, attempt int) {
	// Don't log args to avoid PII - just log tool name
	l.Info("tool_call", map[string]interface{}{
		"tool":    tool,
		"attempt": attempt,
	})
}

// ToolResult logs a tool result.
func (l *Logger) ToolResult(tool string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"tool":     tool,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("tool_error", fields)
	} else {
		l.Debug("tool_result", fields)
	}
}

// RetryWait logs the backoff pause before a retry attempt.
func (l *Logger) RetryWait(tool string, attempt int, wait time.Duration) {
	l.Warn("retry_wait", map[string]interface{}{
		"tool":    tool,
		"attempt": attempt,
		"wait":    wait.String(),
	})
}

// RetriesExhausted logs a tool call that failed on every allowed attempt.
func (l *Logger) RetriesExhausted(tool string, attempts int, err error) {
	l.Error("retries_exhausted", map[string]interface{}{
		"tool":     tool,
		"attempts": attempts,
		"error":    err.Error(),
	})
}

// ExecutionStart logs the start of a task execution.
func (l *Logger) ExecutionStart(task string) {
	l.Info("execution_start", map[string]interface{}{
		"task": task,
	})
}

// ExecutionComplete logs the completion of a task execution.
func (l *Logger) ExecutionComplete(task string, duration time.Duration, status string) {
	l.Info("execution_complete", map[string]interface{}{
		"task":     task,
		"duration": duration.String(),
		"status":   status,
	})
}

// StepStart logs the start of a plan step.
func (l *Logger) StepStart(index int, description string) {
	l.Info("step_start", map[string]interface{}{
		"step":        index,
		"description": description,
	})
}

// StepComplete logs the outcome of a plan step.
func (l *Logger) StepComplete(index int, duration time.Duration, status string) {
	l.Info("step_complete", map[string]interface{}{
		"step":     index,
		"duration": duration.String(),
		"status":   status,
	})
}

// AgentSelected logs the router's profile decision.
func (l *Logger) AgentSelected(agent string, score int) {
	l.Info("agent_selected", map[string]interface{}{
		"agent": agent,
		"score": score,
	})
}

// PlanCreated logs the planner result.
func (l *Logger) PlanCreated(steps int, fallback bool) {
	l.Info("plan_created", map[string]interface{}{
		"steps":    steps,
		"fallback": fallback,
	})
}

// ApprovalPrompt logs that an operation is awaiting human approval.
func (l *Logger) ApprovalPrompt(tool, pattern string) {
	l.Warn("approval_prompt", map[string]interface{}{
		"tool":     tool,
		"pattern":  pattern,
		"security": true,
	})
}

// ApprovalDecision logs the human's answer to an approval prompt.
func (l *Logger) ApprovalDecision(tool, pattern, decision string) {
	l.Info("approval_decision", map[string]interface{}{
		"tool":     tool,
		"pattern":  pattern,
		"decision": decision,
		"security": true,
	})
}

// SecurityWarning logs a security-related warning.
func (l *Logger) SecurityWarning(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["security"] = true
	l.Warn(msg, fields)
}

// Reflection logs a reflection hint produced after a failure.
func (l *Logger) Reflection(tool, category string) {
	l.Info("reflection", map[string]interface{}{
		"tool":     tool,
		"category": category,
	})
}

// MemoryHit logs retrieval of similar past solutions.
func (l *Logger) MemoryHit(count int, bestScore float64) {
	l.Debug("memory_hit", map[string]interface{}{
		"count":      count,
		"best_score": fmt.Sprintf("%.2f", bestScore),
	})
}

// StoreRecovered logs that a persistent store was unreadable and reinitialized.
func (l *Logger) StoreRecovered(path string, err error) {
	l.Warn("store_recovered", map[string]interface{}{
		"path":  path,
		"error": err.Error(),
	})
}
