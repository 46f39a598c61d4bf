package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/bladerunner/internal/session"
)

// Renderer formats recorded session events as a styled timeline.
type Renderer struct {
	verbose bool
}

// NewRenderer creates a renderer. Verbose mode includes message and
// tool output bodies; compact mode shows only the timeline.
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{verbose: verbose}
}

// RenderSession loads and renders one session transcript.
func RenderSession(m *session.Manager, id string, verbose bool) (string, error) {
	events, err := m.Load(id)
	if err != nil {
		return "", err
	}
	return NewRenderer(verbose).Render(id, events), nil
}

// Render produces the full timeline for one session.
func (r *Renderer) Render(id string, events []session.Event) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SESSION "+id) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d events", len(events))) + "\n")
	b.WriteString(divider + "\n")

	for i, ev := range events {
		r.writeEvent(&b, i+1, ev)
	}

	b.WriteString(divider + "\n")
	b.WriteString(r.outcome(events) + "\n")
	return b.String()
}

func (r *Renderer) writeEvent(b *strings.Builder, seq int, ev session.Event) {
	prefix := seqStyle.Render(fmt.Sprintf("%d", seq)) + dimStyle.Render(" │ "+eventClock(ev)+" │ ")

	switch ev.Type {
	case session.EventSessionStart:
		b.WriteString(prefix + flowStyle.Render("session start") + "\n")

	case session.EventTaskStart:
		b.WriteString(prefix + titleStyle.Render("task: ") + flowStyle.Render(clip(ev.Content, 120)) + "\n")

	case session.EventAgentSelect:
		b.WriteString(prefix + planStyle.Render("agent: "+ev.Content) + "\n")

	case session.EventPlan:
		b.WriteString(prefix + planStyle.Render("plan") + "\n")
		r.writeBody(b, ev.Content)

	case session.EventStepStart:
		b.WriteString(prefix + flowStyle.Render(fmt.Sprintf("step %d: %s", ev.Step, clip(ev.Content, 100))) + "\n")

	case session.EventStepEnd:
		label := successStyle.Render(fmt.Sprintf("step %d done", ev.Step))
		if ev.Success != nil && !*ev.Success {
			label = errorStyle.Render(fmt.Sprintf("step %d failed: %s", ev.Step, clip(ev.Content, 80)))
		}
		b.WriteString(prefix + label + "\n")

	case session.EventMessage:
		b.WriteString(prefix + flowStyle.Render(ev.Role) + "\n")
		if r.verbose {
			r.writeBody(b, clip(ev.Content, 500))
		}

	case session.EventToolCall:
		b.WriteString(prefix + toolStyle.Render("tool call: "+ev.Tool) + "\n")
		if r.verbose && ev.Content != "" {
			r.writeBody(b, clip(ev.Content, 200))
		}

	case session.EventToolResult:
		mark := successStyle.Render("✓")
		if ev.Success != nil && !*ev.Success {
			mark = errorStyle.Render("✗")
		}
		attempt := ""
		if ev.Attempt > 1 {
			attempt = dimStyle.Render(fmt.Sprintf(" (attempt %d)", ev.Attempt))
		}
		b.WriteString(prefix + mark + toolStyle.Render(" "+ev.Tool) + attempt + "\n")
		if ev.Success != nil && !*ev.Success {
			r.writeBody(b, errorStyle.Render(clip(ev.Content, 200)))
		} else if r.verbose && ev.Content != "" {
			r.writeBody(b, clip(ev.Content, 200))
		}

	case session.EventApproval:
		b.WriteString(prefix + approvalStyle.Render("approval: "+ev.Decision) +
			dimStyle.Render(" ["+ev.Content+"] "+ev.Tool) + "\n")

	case session.EventReflection:
		b.WriteString(prefix + reflectStyle.Render("reflection: "+ev.Tool+" ("+ev.Content+")") + "\n")

	case session.EventTaskEnd:
		if ev.Success != nil && !*ev.Success {
			b.WriteString(prefix + errorStyle.Render("task failed: "+clip(ev.Content, 120)) + "\n")
		} else {
			b.WriteString(prefix + successStyle.Render("task complete") + "\n")
		}

	default:
		b.WriteString(prefix + dimStyle.Render(ev.Type) + "\n")
	}
}

func (r *Renderer) writeBody(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(dimStyle.Render("      │ ") + line + "\n")
	}
}

// outcome summarizes the final task_end event, or reports an
// unfinished session.
func (r *Renderer) outcome(events []session.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == session.EventTaskEnd {
			if events[i].Success != nil && !*events[i].Success {
				return errorStyle.Render("✗ FAILED: " + events[i].Content)
			}
			return successStyle.Render("✓ COMPLETED")
		}
	}
	return dimStyle.Render("⋯ IN PROGRESS")
}

// eventClock renders the wall-clock portion of an event timestamp.
func eventClock(ev session.Event) string {
	if t, err := time.Parse(time.RFC3339, ev.Timestamp); err == nil {
		return t.Format("15:04:05")
	}
	return "        "
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
