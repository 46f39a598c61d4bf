package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/bladerunner/internal/evaluator"
	"github.com/openclaw/bladerunner/internal/logging"
	"github.com/openclaw/bladerunner/internal/tracker"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

// Run prints tool effectiveness and evaluation metrics.
func (c *StatsCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	logger := logging.New().WithComponent("stats")
	storage := cfg.StoragePath()

	trk := tracker.New(storage, true, logger)
	printToolStats(trk)

	if c.Tools {
		return nil
	}

	eval := evaluator.New(storage, logger)
	printEvaluation(eval, c.Recent)
	return nil
}

func printToolStats(trk *tracker.Tracker) {
	fmt.Println(headingStyle.Render("Tool effectiveness"))
	ranking := trk.Ranking()
	if len(ranking) == 0 {
		fmt.Println(mutedStyle.Render("  no tool calls recorded yet"))
	}
	health := trk.HealthReport()
	for _, entry := range ranking {
		stat, _ := trk.Stat(entry.Tool)
		line := fmt.Sprintf("  %-12s %3.0f%%  %d calls  %s",
			entry.Tool, entry.SuccessRate*100, stat.Total, health[entry.Tool])
		if entry.SuccessRate >= 0.7 {
			fmt.Println(goodStyle.Render(line))
		} else {
			fmt.Println(badStyle.Render(line))
		}
	}
	if rec := trk.Recommendation(); rec != "" {
		fmt.Println(mutedStyle.Render("  " + rec))
	}
}

func printEvaluation(eval *evaluator.Evaluator, recent int) {
	summary := eval.Summary()
	fmt.Println()
	fmt.Println(headingStyle.Render("Evaluation"))
	if summary.TotalTasks == 0 {
		fmt.Println(mutedStyle.Render("  no executions recorded yet"))
		return
	}
	fmt.Printf("  tasks:      %d (%d ok, %d failed, %.0f%% success)\n",
		summary.TotalTasks, summary.SuccessfulTasks, summary.FailedTasks, summary.SuccessRate*100)
	fmt.Printf("  avg:        %.1f iterations, %.1fs, %.0f tokens per task\n",
		summary.AvgIterationsPerTask, summary.AvgDurationSeconds, summary.AvgTokensPerTask)
	fmt.Printf("  tokens:     %d total\n", summary.TotalTokensUsed)

	if len(summary.ModelPerformance) > 0 {
		fmt.Println(headingStyle.Render("\nModel performance"))
		for model, stat := range summary.ModelPerformance {
			rate := 0.0
			if stat.Total > 0 {
				rate = float64(stat.Successful) / float64(stat.Total) * 100
			}
			fmt.Printf("  %-30s %d tasks, %.0f%% success\n", model, stat.Total, rate)
		}
	}

	if recent > 0 {
		executions := eval.RecentExecutions(recent)
		if len(executions) > 0 {
			fmt.Println(headingStyle.Render("\nRecent executions"))
			for _, rec := range executions {
				mark := goodStyle.Render("✓")
				if !rec.Success {
					mark = badStyle.Render("✗")
				}
				fmt.Printf("  %s %s  %s\n", mark,
					mutedStyle.Render(rec.StartTime),
					clip(rec.Prompt, 60))
			}
		}
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
