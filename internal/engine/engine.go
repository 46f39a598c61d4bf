// Package engine drives task execution: route, plan, then run each
// step through the model with gated, retried tool calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/bladerunner/internal/approval"
	"github.com/openclaw/bladerunner/internal/config"
	"github.com/openclaw/bladerunner/internal/evaluator"
	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/logging"
	"github.com/openclaw/bladerunner/internal/memory"
	"github.com/openclaw/bladerunner/internal/planner"
	"github.com/openclaw/bladerunner/internal/reflection"
	"github.com/openclaw/bladerunner/internal/router"
	"github.com/openclaw/bladerunner/internal/session"
	"github.com/openclaw/bladerunner/internal/skills"
	"github.com/openclaw/bladerunner/internal/tools"
	"github.com/openclaw/bladerunner/internal/tracker"
)

// Status is the final outcome of a task.
type Status string

const (
	StatusComplete Status = "complete" // every step succeeded
	StatusPartial  Status = "partial"  // some steps succeeded
	StatusFailed   Status = "failed"   // no step succeeded
)

// State is the engine's coarse phase, reported via OnStateChange.
type State string

const (
	StateRouting    State = "routing"
	StatePlanning   State = "planning"
	StateExecuting  State = "executing"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
)

// maxStepFailures bounds consecutive failed tool calls within one
// step before the step is abandoned.
const maxStepFailures = 3

// ErrMaxIterations marks a task cut off by the model-turn cap. It is
// always surfaced in the result, never silently truncated.
var ErrMaxIterations = errors.New("iteration limit reached")

const basePrompt = `You are an autonomous agent that completes tasks using the available tools.
Work step by step. Call tools when you need to act on the environment;
respond with plain text only when the current step is done. Be concise.`

// StepResult is the outcome of one plan step.
type StepResult struct {
	Index       int
	Description string
	Output      string
	Status      string // "complete" or "failed"
	Err         string
}

// Result is the outcome of one task run.
type Result struct {
	TaskID       string
	Status       Status
	Output       string // final assistant text of the last completed step
	Profile      string
	Steps        []StepResult
	Iterations   int
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Err          string
}

// Callbacks surface engine progress to a front end. All are optional.
type Callbacks struct {
	OnStateChange func(state State)
	OnTaskStart   func(task, profile string)
	OnPlan        func(plan *planner.Plan)
	OnStepStart   func(index int, description string)
	OnStepEnd     func(index int, status string)
	OnAssistant   func(content string)
	OnThinking    func(content string)
	OnToolCall    func(name string, args map[string]interface{})
	OnToolResult  func(name string, output string, err error)
	OnReflection  func(hint reflection.Hint)
}

// Options configures a new Engine. Provider is required; everything
// else has a working default.
type Options struct {
	Config    *config.Config
	Provider  llm.Provider
	Registry  *tools.Registry
	Prompter  approval.Prompter
	Logger    *logging.Logger
	Sessions  *session.Manager
	SessionID string
	History   []llm.Message // prior conversation to resume from
	Profiles  []router.Profile
	Callbacks Callbacks
}

// Engine executes tasks.
type Engine struct {
	cfg       *config.Config
	provider  llm.Provider
	registry  *tools.Registry
	gate      *approval.Gate
	router    *router.Router
	planner   *planner.Planner
	reflector *reflection.Engine
	tracker   *tracker.Tracker
	memory    *memory.Store
	evaluator *evaluator.Evaluator
	sessions  *session.Manager
	sessionID string
	history   []llm.Message
	invoker   *Invoker
	logger    *logging.Logger
	callbacks Callbacks

	skillRefs    []skills.Ref
	activeSkills map[string]bool
}

// New assembles an engine from config. Storage-backed components
// share cfg's storage path.
func New(opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, errors.New("engine: provider is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New().WithComponent("engine")
	}
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry(tools.Options{
			BashTimeoutSec:   cfg.Timeouts.Bash,
			SearchTimeoutSec: cfg.Timeouts.WebSearch,
			FetchTimeoutSec:  cfg.Timeouts.WebFetch,
		})
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = approval.DenyAll{}
	}

	storage := cfg.StoragePath()
	trk := tracker.New(storage, cfg.Engine.EnableToolTracking, logger)

	var rtr *router.Router
	if len(opts.Profiles) > 0 {
		rtr = router.NewWithProfiles(opts.Profiles, cfg.Engine.EnableAgentSelection)
	} else {
		rtr = router.New(cfg.Engine.EnableAgentSelection)
	}

	e := &Engine{
		cfg:          cfg,
		provider:     opts.Provider,
		registry:     registry,
		router:       rtr,
		planner:      planner.New(opts.Provider, cfg.Engine.EnablePlanning),
		reflector:    reflection.New(cfg.Engine.EnableReflection),
		tracker:      trk,
		memory:       memory.NewStore(storage, cfg.Engine.EnableMemory, logger),
		evaluator:    evaluator.New(storage, logger),
		sessions:     opts.Sessions,
		sessionID:    opts.SessionID,
		history:      opts.History,
		logger:       logger,
		callbacks:    opts.Callbacks,
		skillRefs:    skills.DiscoverAll(cfg.Skills.Paths),
		activeSkills: make(map[string]bool),
	}
	e.gate = approval.New(&observedPrompter{inner: prompter, engine: e})
	e.invoker = NewInvoker(registry, e.gate, trk, cfg, logger)
	return e, nil
}

// observedPrompter logs approval prompts and records decisions in the
// session before delegating to the real prompter.
type observedPrompter struct {
	inner  approval.Prompter
	engine *Engine
}

func (p *observedPrompter) Decide(ctx context.Context, req approval.Request) (approval.Decision, error) {
	p.engine.logger.ApprovalPrompt(req.Tool, req.Pattern)
	decision, err := p.inner.Decide(ctx, req)
	if err != nil {
		return decision, err
	}
	p.engine.logger.ApprovalDecision(req.Tool, req.Pattern, decision.String())
	p.engine.logEvent(session.Event{
		Type:     session.EventApproval,
		Tool:     req.Tool,
		Decision: decision.String(),
		Content:  req.Pattern,
	})
	return decision, err
}

// Tracker exposes the effectiveness tracker for reporting commands.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Memory exposes the solution store for reporting commands.
func (e *Engine) Memory() *memory.Store { return e.memory }

// Evaluator exposes the evaluation store for reporting commands.
func (e *Engine) Evaluator() *evaluator.Evaluator { return e.evaluator }

// SessionID returns the active session, if any.
func (e *Engine) SessionID() string { return e.sessionID }

func (e *Engine) setState(s State) {
	if e.callbacks.OnStateChange != nil {
		e.callbacks.OnStateChange(s)
	}
}

// Run executes one task to completion and returns its result. The
// returned error is non-nil only for hard failures (provider errors,
// cancellation); a task that merely had failing steps returns a
// Result with Status partial or failed and a nil error.
func (e *Engine) Run(ctx context.Context, task string) (*Result, error) {
	start := time.Now()
	e.logger.ExecutionStart(task)

	// Routing.
	e.setState(StateRouting)
	profile, score := e.router.Select(task)
	e.logger.AgentSelected(profile.Name, score)
	e.logEvent(session.Event{Type: session.EventAgentSelect, Content: profile.Name, Fields: map[string]interface{}{"score": score}})
	if e.callbacks.OnTaskStart != nil {
		e.callbacks.OnTaskStart(task, profile.Name)
	}

	ctx, span := startTaskSpan(ctx, task, profile.Name)

	// Recall similar past solutions before planning so the model can
	// reuse what worked.
	memContext := ""
	if matches := e.memory.FindSimilar(task, memory.DefaultThreshold, memory.DefaultLimit); len(matches) > 0 {
		e.logger.MemoryHit(len(matches), matches[0].Similarity)
		memContext = e.memory.Context(task)
	}

	taskID := e.evaluator.StartTask(task, e.cfg.LLM.Model)
	e.logEvent(session.Event{Type: session.EventTaskStart, Content: task, Fields: map[string]interface{}{"task_id": taskID}})

	result := &Result{TaskID: taskID, Profile: profile.Name}

	// Planning.
	e.setState(StatePlanning)
	plan, err := e.planner.Create(ctx, task, profile)
	if err != nil {
		endSpan(span, err)
		e.finish(result, StatusFailed, 0, start, err.Error())
		return nil, err
	}
	e.evaluator.RecordTokens(plan.InputTokens, plan.OutputTokens)
	result.InputTokens += plan.InputTokens
	result.OutputTokens += plan.OutputTokens
	e.logger.PlanCreated(len(plan.Steps), plan.Fallback)
	e.logEvent(session.Event{Type: session.EventPlan, Content: planText(plan)})
	if e.callbacks.OnPlan != nil {
		e.callbacks.OnPlan(plan)
	}

	messages := make([]llm.Message, 0, len(e.history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: e.systemPrompt(profile, memContext)})
	messages = append(messages, e.history...)
	messages = append(messages, llm.Message{Role: "user", Content: task})

	// Execution.
	e.setState(StateExecuting)
	maxIterations := e.cfg.Engine.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 50
	}
	iterations := 0
	capped := false
	var execPath []string

steps:
	for _, step := range plan.Steps {
		stepStart := time.Now()
		e.logger.StepStart(step.Index, step.Description)
		e.logEvent(session.Event{Type: session.EventStepStart, Step: step.Index, Content: step.Description})
		if e.callbacks.OnStepStart != nil {
			e.callbacks.OnStepStart(step.Index, step.Description)
		}
		stepCtx, stepSpan := startStepSpan(ctx, step.Index, step.Description)

		if len(plan.Steps) > 1 {
			messages = append(messages, llm.Message{
				Role:    "user",
				Content: fmt.Sprintf("Step %d of %d: %s", step.Index, len(plan.Steps), step.Description),
			})
		}

		sr := StepResult{Index: step.Index, Description: step.Description, Status: "complete"}
		failures := 0

		for {
			if iterations >= maxIterations {
				capped = true
				sr.Status = "failed"
				sr.Err = fmt.Sprintf("%s (%d)", ErrMaxIterations, maxIterations)
				break
			}
			iterations++

			resp, chatErr := e.provider.Chat(stepCtx, llm.ChatRequest{
				Messages:  messages,
				Tools:     e.registry.Definitions(),
				MaxTokens: e.cfg.LLM.MaxTokens,
			})
			if chatErr != nil {
				endSpan(stepSpan, chatErr)
				endSpan(span, chatErr)
				e.finish(result, StatusFailed, iterations, start, chatErr.Error())
				return result, chatErr
			}
			e.evaluator.RecordIteration()
			e.evaluator.RecordTokens(resp.InputTokens, resp.OutputTokens)
			result.InputTokens += resp.InputTokens
			result.OutputTokens += resp.OutputTokens
			if resp.Thinking != "" && e.callbacks.OnThinking != nil {
				e.callbacks.OnThinking(resp.Thinking)
			}

			// Skill activation: the model asks for a skill by marker,
			// we append its instructions and let it continue.
			if name := skills.Activation(resp.Content); name != "" && !e.activeSkills[name] {
				if skl := e.loadSkill(name); skl != nil {
					e.activeSkills[name] = true
					messages = append(messages,
						llm.Message{Role: "assistant", Content: resp.Content},
						llm.Message{Role: "user", Content: skl.Context()},
					)
					continue
				}
			}

			if len(resp.ToolCalls) == 0 {
				sr.Output = resp.Content
				messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})
				e.logEvent(session.Event{Type: session.EventMessage, Role: "assistant", Content: resp.Content})
				if e.callbacks.OnAssistant != nil {
					e.callbacks.OnAssistant(resp.Content)
				}
				break
			}

			messages = append(messages, llm.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			// Tool results must directly follow the assistant turn that
			// requested them; reflection observations go after the batch.
			var observations []string
			for _, tc := range resp.ToolCalls {
				toolMsg, obs, failed := e.runToolCall(stepCtx, tc, &execPath)
				messages = append(messages, toolMsg)
				if obs != "" {
					observations = append(observations, obs)
				}
				if failed {
					failures++
				} else {
					failures = 0
				}
			}
			for _, obs := range observations {
				messages = append(messages, llm.Message{Role: "user", Content: obs})
			}

			if failures >= maxStepFailures {
				sr.Status = "failed"
				sr.Err = "abandoned after repeated tool failures"
				break
			}
		}

		endSpan(stepSpan, nil)
		e.logger.StepComplete(step.Index, time.Since(stepStart), sr.Status)
		ok := sr.Status == "complete"
		e.logEvent(session.Event{Type: session.EventStepEnd, Step: step.Index, Success: &ok, Content: sr.Err})
		if e.callbacks.OnStepEnd != nil {
			e.callbacks.OnStepEnd(step.Index, sr.Status)
		}
		result.Steps = append(result.Steps, sr)
		if ok {
			result.Output = sr.Output
		}

		if capped {
			break steps
		}
	}

	// Finalizing.
	e.setState(StateFinalizing)
	status := taskStatus(result.Steps, len(plan.Steps))
	errMsg := ""
	if capped {
		// Hitting the iteration cap is fatal regardless of how many
		// steps finished first.
		status = StatusFailed
		errMsg = fmt.Sprintf("%s (%d)", ErrMaxIterations, maxIterations)
	} else if status != StatusComplete {
		errMsg = failureSummary(result.Steps)
	}
	e.finish(result, status, iterations, start, errMsg)

	if status == StatusComplete {
		if err := e.memory.Store(task, execPath); err != nil {
			e.logger.Warn("failed to store solution", map[string]interface{}{"error": err.Error()})
		}
	}

	endSpan(span, nil)
	e.setState(StateDone)
	return result, nil
}

// finish seals the result and closes out evaluation and session
// records.
func (e *Engine) finish(result *Result, status Status, iterations int, start time.Time, errMsg string) {
	result.Status = status
	result.Iterations = iterations
	result.Duration = time.Since(start)
	result.Err = errMsg
	e.evaluator.EndTask(status == StatusComplete, errMsg)
	ok := status == StatusComplete
	e.logEvent(session.Event{Type: session.EventTaskEnd, Success: &ok, Content: errMsg})
	e.logger.ExecutionComplete(result.TaskID, result.Duration, string(status))
}

// runToolCall executes one call end to end and returns the tool
// message to append, a reflection observation to inject after the
// tool results (empty if none), and whether the call failed.
func (e *Engine) runToolCall(ctx context.Context, tc llm.ToolCallResponse, execPath *[]string) (llm.Message, string, bool) {
	if e.callbacks.OnToolCall != nil {
		e.callbacks.OnToolCall(tc.Name, tc.Args)
	}
	e.logToolCall(tc)

	toolCtx, toolSpan := startToolSpan(ctx, tc.Name)
	res := e.invoker.Invoke(toolCtx, tc.Name, tc.Args)
	endSpan(toolSpan, res.Err)

	e.evaluator.RecordToolUse(tc.Name)
	*execPath = append(*execPath, pathEntry(tc.Name, tc.Args))

	if e.callbacks.OnToolResult != nil {
		e.callbacks.OnToolResult(tc.Name, res.Output, res.Err)
	}
	e.logToolResult(tc, res)

	if res.Err == nil {
		return llm.Message{Role: "tool", Content: res.Output, ToolCallID: tc.ID}, "", false
	}

	errText := "Error: " + res.Err.Error()
	observation := ""
	if hint, ok := e.reflector.Reflect(tc.Name, res.Err.Error()); ok {
		e.logger.Reflection(tc.Name, string(hint.Category))
		e.logEvent(session.Event{Type: session.EventReflection, Tool: tc.Name, Content: string(hint.Category)})
		if e.callbacks.OnReflection != nil {
			e.callbacks.OnReflection(hint)
		}
		observation = hint.Observation()
	}
	return llm.Message{Role: "tool", Content: errText, ToolCallID: tc.ID}, observation, true
}

// systemPrompt assembles the system message: base instructions, the
// selected profile's specialization, discovered skills, and recalled
// solutions.
func (e *Engine) systemPrompt(profile router.Profile, memContext string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if profile.PromptSuffix != "" {
		b.WriteString("\n\n")
		b.WriteString(profile.PromptSuffix)
	}
	if section := skills.PromptSection(e.skillRefs); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}
	if memContext != "" {
		b.WriteString("\n\n")
		b.WriteString(memContext)
	}
	return b.String()
}

// loadSkill loads a discovered skill by name, or nil.
func (e *Engine) loadSkill(name string) *skills.Skill {
	for _, ref := range e.skillRefs {
		if ref.Name == name {
			skl, err := skills.Load(ref.Path)
			if err != nil {
				e.logger.Warn("failed to load skill", map[string]interface{}{"skill": name, "error": err.Error()})
				return nil
			}
			return skl
		}
	}
	return nil
}

// taskStatus derives the overall outcome from per-step outcomes.
func taskStatus(steps []StepResult, planned int) Status {
	completed := 0
	for _, s := range steps {
		if s.Status == "complete" {
			completed++
		}
	}
	switch {
	case completed == planned:
		return StatusComplete
	case completed > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

func failureSummary(steps []StepResult) string {
	var failed []string
	for _, s := range steps {
		if s.Status != "complete" {
			failed = append(failed, fmt.Sprintf("step %d: %s", s.Index, s.Err))
		}
	}
	return strings.Join(failed, "; ")
}

func planText(p *planner.Plan) string {
	lines := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		lines[i] = fmt.Sprintf("%d. %s", s.Index, s.Description)
	}
	return strings.Join(lines, "\n")
}

// truncateForLog shortens s for log and span attributes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
