package main

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/bladerunner/internal/llm"
)

// Run lists known models from the catwalk catalog.
func (c *ModelsCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := llm.ListAllModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	for _, m := range models {
		if c.Provider != "" && m.Provider != c.Provider {
			continue
		}
		reason := ""
		if m.CanReason {
			reason = " (reasoning)"
		}
		fmt.Printf("%s  %s\n", headingStyle.Render(m.ID),
			mutedStyle.Render(fmt.Sprintf("%s, %dk context, $%.2f/$%.2f per 1M%s",
				m.Provider, m.ContextWindow/1000, m.CostPer1MIn, m.CostPer1MOut, reason)))
	}
	return nil
}
