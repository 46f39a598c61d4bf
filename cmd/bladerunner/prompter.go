package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/bladerunner/internal/approval"
)

var (
	warnTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	warnDetailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

// ConsolePrompter asks for approval on the terminal. Invalid input
// re-prompts; EOF denies; context cancellation denies mid-read.
type ConsolePrompter struct {
	in  io.Reader
	out io.Writer

	reader *bufio.Reader
	lines  chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewConsolePrompter prompts on stdin/stderr.
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{in: os.Stdin, out: os.Stderr}
}

func (p *ConsolePrompter) Decide(ctx context.Context, req approval.Request) (approval.Decision, error) {
	fmt.Fprintln(p.out, warnTitleStyle.Render("⚠ approval required: "+req.Reason))
	fmt.Fprintln(p.out, warnDetailStyle.Render("  "+req.Summary))

	for {
		if err := ctx.Err(); err != nil {
			return approval.Deny, err
		}
		fmt.Fprint(p.out, "  approve? [y]es once / [a]lways for this pattern / [n]o: ")
		line, err := p.readLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return approval.Deny, ctx.Err()
			}
			return approval.Deny, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return approval.ApproveOnce, nil
		case "a", "always":
			return approval.ApproveAlways, nil
		case "n", "no":
			return approval.Deny, nil
		}
	}
}

// readLine reads one input line without blocking past cancellation.
// Reads run on a single goroutine feeding a buffered channel, so an
// answer typed after a cancelled prompt is picked up by the next one.
func (p *ConsolePrompter) readLine(ctx context.Context) (string, error) {
	if p.lines == nil {
		p.reader = bufio.NewReader(p.in)
		p.lines = make(chan readResult, 1)
		go func() {
			for {
				line, err := p.reader.ReadString('\n')
				p.lines <- readResult{line: line, err: err}
				if err != nil {
					return
				}
			}
		}()
	}
	select {
	case res := <-p.lines:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
