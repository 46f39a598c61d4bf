package main

import (
	"fmt"
	"strings"

	"github.com/openclaw/bladerunner/internal/logging"
	"github.com/openclaw/bladerunner/internal/memory"
)

// Run inspects or clears the solution store.
func (c *MemoryCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	store := memory.NewStore(cfg.StoragePath(), true, logging.New().WithComponent("memory"))

	if c.Clear {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		fmt.Println("solution memory cleared")
		return nil
	}

	if c.Find != "" {
		matches := store.FindSimilar(c.Find, memory.DefaultThreshold, memory.DefaultLimit)
		if len(matches) == 0 {
			fmt.Println(mutedStyle.Render("no similar solutions"))
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%s %s\n", headingStyle.Render(fmt.Sprintf("%.0f%%", m.Similarity*100)), m.Solution.Task)
			fmt.Println(mutedStyle.Render("  steps: " + strings.Join(m.Solution.Steps, " -> ")))
			fmt.Println(mutedStyle.Render("  tools: " + strings.Join(m.Solution.ToolsUsed, ", ")))
		}
		return nil
	}

	solutions := store.Solutions()
	fmt.Printf("%d stored solutions\n", len(solutions))
	for _, sol := range solutions {
		fmt.Printf("  %s  %s\n", mutedStyle.Render(sol.Timestamp), clip(sol.Task, 70))
	}
	return nil
}
