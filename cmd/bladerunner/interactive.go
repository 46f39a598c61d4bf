package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/openclaw/bladerunner/internal/config"
	"github.com/openclaw/bladerunner/internal/engine"
	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/logging"
	"github.com/openclaw/bladerunner/internal/router"
	"github.com/openclaw/bladerunner/internal/session"
	"github.com/openclaw/bladerunner/internal/tools"
)

// Run reads tasks from stdin and executes them one at a time. The
// conversation carries over between tasks, and everything is recorded
// under a single session so a later run can resume it.
func (c *InteractiveCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)

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

	registry := tools.NewRegistry(tools.Options{
		Workspace:        c.Workspace,
		BashTimeoutSec:   cfg.Timeouts.Bash,
		SearchTimeoutSec: cfg.Timeouts.WebSearch,
		FetchTimeoutSec:  cfg.Timeouts.WebFetch,
	})
	prompter := NewConsolePrompter()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(stepStyle.Render("interactive mode") + toolLineStyle.Render("  (session "+sessionID+", \"exit\" to quit)"))
	if len(history) > 0 {
		fmt.Println(toolLineStyle.Render(fmt.Sprintf("  resumed %d prior messages", len(history))))
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Print(stepStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		task := strings.TrimSpace(line)
		switch task {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		eng, err := engine.New(engine.Options{
			Config:    cfg,
			Provider:  provider,
			Registry:  registry,
			Prompter:  prompter,
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

		result, err := eng.Run(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Println(failStyle.Render("✗ " + err.Error()))
			continue
		}
		printResult(result, sessionID)

		history = append(history, llm.Message{Role: "user", Content: task})
		if result.Output != "" {
			history = append(history, llm.Message{Role: "assistant", Content: result.Output})
		}
	}
}

func (c *InteractiveCmd) applyOverrides(cfg *config.Config) {
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
