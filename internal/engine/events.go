package engine

import (
	"encoding/json"

	"github.com/openclaw/bladerunner/internal/llm"
	"github.com/openclaw/bladerunner/internal/session"
)

const maxEventContent = 2000

// logEvent appends one event to the active session. Sessions are
// best-effort; failures are logged and never interrupt execution.
func (e *Engine) logEvent(ev session.Event) {
	if e.sessions == nil || e.sessionID == "" {
		return
	}
	if err := e.sessions.Append(e.sessionID, ev); err != nil {
		e.logger.Warn("failed to append session event", map[string]interface{}{
			"session": e.sessionID,
			"type":    ev.Type,
			"error":   err.Error(),
		})
	}
}

func (e *Engine) logToolCall(tc llm.ToolCallResponse) {
	args := ""
	if b, err := json.Marshal(tc.Args); err == nil {
		args = string(b)
	}
	e.logEvent(session.Event{
		Type:    session.EventToolCall,
		Tool:    tc.Name,
		Content: truncateForLog(args, maxEventContent),
	})
}

func (e *Engine) logToolResult(tc llm.ToolCallResponse, res InvokeResult) {
	ok := res.Err == nil
	content := res.Output
	if res.Err != nil {
		content = res.Err.Error()
	}
	e.logEvent(session.Event{
		Type:    session.EventToolResult,
		Tool:    tc.Name,
		Attempt: res.Attempts,
		Success: &ok,
		Content: truncateForLog(content, maxEventContent),
	})
}
