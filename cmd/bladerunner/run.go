package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/bladerunner/internal/config"
	"github.com/openclaw/bladerunner/internal/engine"
	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/logging"
	"github.com/openclaw/bladerunner/internal/planner"
	"github.com/openclaw/bladerunner/internal/reflection"
	"github.com/openclaw/bladerunner/internal/router"
	"github.com/openclaw/bladerunner/internal/session"
	"github.com/openclaw/bladerunner/internal/tools"
)

var (
	stepStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	toolLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

// Run executes one task.
func (c *RunCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	applyOverrides(cfg, c)

	logger := logging.New().WithComponent("engine")
	if c.Verbose {
		logger.SetLevel(logging.LevelDebug)
	} else if cfg.Logging.Level != "" {
		logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	var profiles []router.Profile
	if c.Profiles != "" {
		profiles, err = router.LoadProfiles(c.Profiles)
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
	}

	sessions := session.NewManager(cfg.StoragePath() + "/sessions")
	sessionID, history, err := resumeOrCreate(sessions, c.Session)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		fmt.Println(toolLineStyle.Render(fmt.Sprintf("  resuming session %s (%d prior messages)", sessionID, len(history))))
	}

	registry := tools.NewRegistry(tools.Options{
		Workspace:        c.Workspace,
		BashTimeoutSec:   cfg.Timeouts.Bash,
		SearchTimeoutSec: cfg.Timeouts.WebSearch,
		FetchTimeoutSec:  cfg.Timeouts.WebFetch,
	})

	eng, err := engine.New(engine.Options{
		Config:    cfg,
		Provider:  provider,
		Registry:  registry,
		Prompter:  NewConsolePrompter(),
		Logger:    logger,
		Sessions:  sessions,
		SessionID: sessionID,
		History:   history,
		Profiles:  profiles,
		Callbacks: consoleCallbacks(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Run(ctx, c.Task)
	if err != nil {
		return err
	}

	printResult(result, sessionID)
	if result.Status == engine.StatusFailed {
		os.Exit(1)
	}
	return nil
}

// resumeOrCreate resumes the named session when its transcript already
// exists, returning the recorded conversation as history. Otherwise it
// starts a new session.
func resumeOrCreate(sessions *session.Manager, name string) (string, []llm.Message, error) {
	if name != "" {
		events, err := sessions.Load(name)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load session %s: %w", name, err)
		}
		if len(events) > 0 {
			msgs, err := sessions.Messages(name)
			if err != nil {
				return "", nil, fmt.Errorf("failed to load session %s: %w", name, err)
			}
			history := make([]llm.Message, 0, len(msgs))
			for _, ev := range msgs {
				history = append(history, llm.Message{Role: ev.Role, Content: ev.Content})
			}
			return name, history, nil
		}
	}
	id, err := sessions.Create(name)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil, nil
}

func applyOverrides(cfg *config.Config, c *RunCmd) {
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if c.Provider != "" {
		cfg.LLM.Provider = c.Provider
	}
	if c.NoPlan {
		cfg.Engine.EnablePlanning = false
	}
}

// buildProvider resolves the provider from config, inferring it from
// the model ID when unset.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	providerName := cfg.LLM.Provider
	if providerName == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		name, err := llm.FindModelProvider(ctx, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		providerName = name
	}
	return llm.NewProvider(llm.FantasyConfig{
		Provider:  providerName,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.GetAPIKey(),
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	})
}

func consoleCallbacks() engine.Callbacks {
	return engine.Callbacks{
		OnTaskStart: func(task, profile string) {
			fmt.Printf("%s %s\n", stepStyle.Render("▶"), task)
			fmt.Println(toolLineStyle.Render("  agent: " + profile))
		},
		OnPlan: func(plan *planner.Plan) {
			for _, s := range plan.Steps {
				fmt.Println(toolLineStyle.Render(fmt.Sprintf("  %d. %s", s.Index, s.Description)))
			}
		},
		OnStepStart: func(index int, description string) {
			fmt.Println(stepStyle.Render(fmt.Sprintf("\n● step %d: %s", index, description)))
		},
		OnToolCall: func(name string, args map[string]interface{}) {
			fmt.Println(toolLineStyle.Render("  → " + name))
		},
		OnToolResult: func(name, output string, err error) {
			if err != nil {
				fmt.Println(failStyle.Render("  ✗ " + name + ": " + err.Error()))
			}
		},
		OnReflection: func(hint reflection.Hint) {
			fmt.Println(toolLineStyle.Render("  ⟳ reflection: " + string(hint.Category)))
		},
		OnAssistant: func(content string) {
			if content != "" {
				fmt.Println(content)
			}
		},
	}
}

func printResult(result *engine.Result, sessionID string) {
	fmt.Println()
	switch result.Status {
	case engine.StatusComplete:
		fmt.Println(okStyle.Render("✓ complete"))
	case engine.StatusPartial:
		fmt.Println(failStyle.Render("◐ partial: " + result.Err))
	default:
		fmt.Println(failStyle.Render("✗ failed: " + result.Err))
	}
	fmt.Println(toolLineStyle.Render(fmt.Sprintf(
		"  %d iterations, %d in / %d out tokens, %s  (session %s)",
		result.Iterations, result.InputTokens, result.OutputTokens,
		result.Duration.Round(time.Millisecond), sessionID)))
}
