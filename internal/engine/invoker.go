package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/bladerunner/internal/approval"
	"github.com/openclaw/bladerunner/internal/config"
	"github.com/openclaw/bladerunner/internal/logging"
	"github.com/openclaw/bladerunner/internal/tools"
	"github.com/openclaw/bladerunner/internal/tracker"
)

// RetriesExhaustedError wraps the final failure of a tool call after
// every allowed retry attempt.
type RetriesExhaustedError struct {
	Tool     string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Tool, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// InvokeResult is the outcome of one gated, retried tool call.
type InvokeResult struct {
	Output           string
	Err              error
	Attempts         int
	RetriesExhausted bool
	Denied           bool
}

// Success reports whether the call ultimately succeeded.
func (r InvokeResult) Success() bool {
	return r.Err == nil
}

// Invoker executes a single tool call: approval gate first, then the
// tool with per-tool retry/backoff, recording every attempt in the
// effectiveness tracker.
type Invoker struct {
	registry *tools.Registry
	gate     *approval.Gate
	tracker  *tracker.Tracker
	cfg      *config.Config
	logger   *logging.Logger

	// sleep is swappable in tests; it must honor ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an invoker.
func NewInvoker(registry *tools.Registry, gate *approval.Gate, trk *tracker.Tracker, cfg *config.Config, logger *logging.Logger) *Invoker {
	return &Invoker{
		registry: registry,
		gate:     gate,
		tracker:  trk,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// isPermanent reports failures that must never be retried: approval
// denial, malformed arguments, unknown tools, and cancellation.
func isPermanent(err error) bool {
	var denied *approval.DeniedError
	var badArgs *tools.BadArgsError
	var unknown *tools.UnknownToolError
	return errors.As(err, &denied) ||
		errors.As(err, &badArgs) ||
		errors.As(err, &unknown) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// errorKind maps an error to its coarse class for the failure
// histogram: the text before the first colon.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if idx := strings.Index(msg, ":"); idx > 0 {
		msg = msg[:idx]
	}
	return strings.TrimSpace(msg)
}

// backoffWait returns the pause before retry i (1-based):
// factor^(i-1) seconds. max_retries=3 with factor 2 waits 1s, 2s, 4s.
func backoffWait(factor float64, retry int) time.Duration {
	secs := math.Pow(factor, float64(retry-1))
	return time.Duration(secs * float64(time.Second))
}

// Invoke runs one tool call to completion. Every attempt, successful
// or not, is recorded independently. Aborted attempts (context
// cancelled) record nothing.
func (iv *Invoker) Invoke(ctx context.Context, name string, args map[string]interface{}) InvokeResult {
	if err := iv.gate.Check(ctx, name, args); err != nil {
		var denied *approval.DeniedError
		if errors.As(err, &denied) {
			iv.tracker.Record(name, false, "denied")
			return InvokeResult{Err: err, Denied: true}
		}
		// Prompter failure (e.g. cancellation): no attempt was made.
		return InvokeResult{Err: err}
	}

	tool := iv.registry.Get(name)
	if tool == nil {
		err := &tools.UnknownToolError{Tool: name}
		iv.tracker.Record(name, false, "unknown tool")
		return InvokeResult{Err: err}
	}

	maxRetries := 0
	backoffFactor := 1.0
	if iv.cfg.Engine.EnableRetry {
		if policy, ok := iv.cfg.RetryFor(name); ok {
			maxRetries = policy.MaxRetries
			backoffFactor = policy.BackoffFactor
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if ctx.Err() != nil {
			return InvokeResult{Err: ctx.Err(), Attempts: attempts}
		}

		iv.logger.ToolCall(name, attempt)
		start := time.Now()
		output, err := tool.Execute(ctx, args)
		iv.logger.ToolResult(name, time.Since(start), err)
		attempts = attempt

		if err == nil {
			iv.tracker.Record(name, true, "")
			return InvokeResult{Output: stringify(output), Attempts: attempts}
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Aborted, not failed: leave no partial record.
			return InvokeResult{Err: err, Attempts: attempts}
		}

		iv.tracker.Record(name, false, errorKind(err))
		lastErr = err

		if isPermanent(err) {
			return InvokeResult{Err: err, Attempts: attempts}
		}

		if attempt <= maxRetries {
			wait := backoffWait(backoffFactor, attempt)
			iv.logger.RetryWait(name, attempt, wait)
			if werr := iv.sleep(ctx, wait); werr != nil {
				return InvokeResult{Err: werr, Attempts: attempts}
			}
		}
	}

	iv.logger.RetriesExhausted(name, attempts, lastErr)
	return InvokeResult{
		Err:              &RetriesExhaustedError{Tool: name, Attempts: attempts, Err: lastErr},
		Attempts:         attempts,
		RetriesExhausted: true,
	}
}

// stringify renders a tool's output for the model context.
func stringify(output interface{}) string {
	switch v := output.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		if b, err := json.Marshal(output); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", output)
	}
}

// pathEntry renders a tool call as "tool:name(arg-keys)" for the
// execution path, argument keys sorted for determinism.
func pathEntry(name string, args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("tool:%s(%s)", name, strings.Join(keys, ","))
}
