// Package evaluator accumulates per-task execution metrics and
// persists them: one ExecutionRecord per task appended to a JSONL log,
// plus a rolling summary JSON. It never alters control flow.
package evaluator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw/bladerunner/internal/logging"
)

// ExecutionRecord summarizes one completed task run.
type ExecutionRecord struct {
	TaskID           string   `json:"task_id"`
	Prompt           string   `json:"prompt"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time,omitempty"`
	Success          bool     `json:"success"`
	Iterations       int      `json:"iterations"`
	TotalTokens      int      `json:"total_tokens"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	ToolsUsed        []string `json:"tools_used"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	Model            string   `json:"model,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds"`
}

// ModelStat holds per-model success counts.
type ModelStat struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}

// Summary is the rolling aggregate over all recorded executions.
type Summary struct {
	LastUpdated          string               `json:"last_updated"`
	TotalTasks           int                  `json:"total_tasks"`
	SuccessfulTasks      int                  `json:"successful_tasks"`
	FailedTasks          int                  `json:"failed_tasks"`
	SuccessRate          float64              `json:"success_rate"`
	AvgIterationsPerTask float64              `json:"avg_iterations_per_task"`
	AvgDurationSeconds   float64              `json:"avg_duration_seconds"`
	TotalTokensUsed      int                  `json:"total_tokens_used"`
	AvgTokensPerTask     float64              `json:"avg_tokens_per_task"`
	ToolUsage            map[string]int       `json:"tool_usage"`
	ModelPerformance     map[string]ModelStat `json:"model_performance"`
}

// Evaluator tracks the current task and owns the metrics files under
// dir: executions.jsonl (append-only) and evaluation_summary.json
// (atomic replace).
type Evaluator struct {
	dir         string
	log         *logging.Logger
	history     []ExecutionRecord
	current     *ExecutionRecord
	currentFrom time.Time
	now         func() time.Time
}

// New opens the metrics store at dir, loading prior history. Corrupt
// history lines are skipped and logged, never fatal.
func New(dir string, log *logging.Logger) *Evaluator {
	e := &Evaluator{
		dir: dir,
		log: log,
		now: time.Now,
	}
	e.load()
	return e
}

func (e *Evaluator) executionsPath() string {
	return filepath.Join(e.dir, "executions.jsonl")
}

func (e *Evaluator) summaryPath() string {
	return filepath.Join(e.dir, "evaluation_summary.json")
}

func (e *Evaluator) load() {
	f, err := os.Open(e.executionsPath())
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec ExecutionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			if e.log != nil {
				e.log.StoreRecovered(e.executionsPath(), err)
			}
			continue
		}
		e.history = append(e.history, rec)
	}
}

// StartTask begins tracking a new execution and returns its task ID.
func (e *Evaluator) StartTask(prompt, model string) string {
	id := "task_" + uuid.NewString()
	e.currentFrom = e.now()
	e.current = &ExecutionRecord{
		TaskID:    id,
		Prompt:    prompt,
		Model:     model,
		StartTime: e.currentFrom.UTC().Format(time.RFC3339),
		ToolsUsed: []string{},
	}
	return id
}

// RecordIteration counts one model turn.
func (e *Evaluator) RecordIteration() {
	if e.current != nil {
		e.current.Iterations++
	}
}

// RecordToolUse notes a tool invocation for the current task.
func (e *Evaluator) RecordToolUse(tool string) {
	if e.current != nil {
		e.current.ToolsUsed = append(e.current.ToolsUsed, tool)
	}
}

// RecordTokens adds token usage from one model response.
func (e *Evaluator) RecordTokens(prompt, completion int) {
	if e.current != nil {
		e.current.PromptTokens += prompt
		e.current.CompletionTokens += completion
		e.current.TotalTokens += prompt + completion
	}
}

// EndTask finalizes the current execution: appends the record to the
// JSONL log and refreshes the rolling summary. Persistence failures
// are logged, not returned; metrics never fail a task.
func (e *Evaluator) EndTask(success bool, errorMessage string) *ExecutionRecord {
	if e.current == nil {
		return nil
	}

	end := e.now()
	e.current.EndTime = end.UTC().Format(time.RFC3339)
	e.current.Success = success
	e.current.ErrorMessage = errorMessage
	e.current.DurationSeconds = end.Sub(e.currentFrom).Seconds()

	rec := *e.current
	e.history = append(e.history, rec)
	e.current = nil

	if err := e.appendRecord(rec); err != nil && e.log != nil {
		e.log.Warn("execution_save_failed", map[string]interface{}{
			"path":  e.executionsPath(),
			"error": err.Error(),
		})
	}
	if err := e.writeSummary(); err != nil && e.log != nil {
		e.log.Warn("summary_save_failed", map[string]interface{}{
			"path":  e.summaryPath(),
			"error": err.Error(),
		})
	}
	return &rec
}

func (e *Evaluator) appendRecord(rec ExecutionRecord) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(e.executionsPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// writeSummary recomputes the rolling summary and replaces the file
// atomically (temp then rename).
func (e *Evaluator) writeSummary() error {
	summary := e.computeSummary()

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(e.dir, ".evaluation_summary-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, e.summaryPath())
}

func (e *Evaluator) computeSummary() Summary {
	s := Summary{
		LastUpdated:      e.now().UTC().Format(time.RFC3339),
		TotalTasks:       len(e.history),
		ToolUsage:        make(map[string]int),
		ModelPerformance: make(map[string]ModelStat),
	}

	totalIterations := 0
	totalDuration := 0.0
	for _, rec := range e.history {
		if rec.Success {
			s.SuccessfulTasks++
		}
		totalIterations += rec.Iterations
		s.TotalTokensUsed += rec.TotalTokens
		totalDuration += rec.DurationSeconds
		for _, tool := range rec.ToolsUsed {
			s.ToolUsage[tool]++
		}
		if rec.Model != "" {
			ms := s.ModelPerformance[rec.Model]
			ms.Total++
			if rec.Success {
				ms.Successful++
			}
			s.ModelPerformance[rec.Model] = ms
		}
	}

	s.FailedTasks = s.TotalTasks - s.SuccessfulTasks
	if s.TotalTasks > 0 {
		s.SuccessRate = float64(s.SuccessfulTasks) / float64(s.TotalTasks)
		s.AvgIterationsPerTask = float64(totalIterations) / float64(s.TotalTasks)
		s.AvgDurationSeconds = totalDuration / float64(s.TotalTasks)
		s.AvgTokensPerTask = float64(s.TotalTokensUsed) / float64(s.TotalTasks)
	}
	return s
}

// Summary returns the persisted rolling summary, recomputing from
// history when the file is absent or unreadable.
func (e *Evaluator) Summary() Summary {
	data, err := os.ReadFile(e.summaryPath())
	if err == nil {
		var s Summary
		if json.Unmarshal(data, &s) == nil {
			return s
		}
	}
	return e.computeSummary()
}

// RecentExecutions returns the n most recent records, newest first.
func (e *Evaluator) RecentExecutions(n int) []ExecutionRecord {
	if n > len(e.history) {
		n = len(e.history)
	}
	out := make([]ExecutionRecord, 0, n)
	for i := len(e.history) - 1; i >= len(e.history)-n; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// MostUsedTools returns tool usage sorted by count descending.
func (e *Evaluator) MostUsedTools(limit int) []string {
	usage := e.computeSummary().ToolUsage
	type pair struct {
		tool  string
		count int
	}
	pairs := make([]pair, 0, len(usage))
	for t, c := range usage {
		pairs = append(pairs, pair{t, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].tool < pairs[j].tool
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = fmt.Sprintf("%s (%d)", p.tool, p.count)
	}
	return out
}
