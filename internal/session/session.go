// Package session persists execution transcripts as append-only JSONL
// files, one file per session.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Event types recorded in a session transcript.
const (
	EventSessionStart = "session_start"
	EventTaskStart    = "task_start"
	EventAgentSelect  = "agent_select"
	EventPlan         = "plan"
	EventStepStart    = "step_start"
	EventStepEnd      = "step_end"
	EventMessage      = "message"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventApproval     = "approval"
	EventReflection   = "reflection"
	EventTaskEnd      = "task_end"
)

// Event is one transcript entry.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	SessionID string                 `json:"id,omitempty"`
	Role      string                 `json:"role,omitempty"`    // for message events
	Content   string                 `json:"content,omitempty"` // message text / plan text / error text
	Tool      string                 `json:"tool,omitempty"`
	Attempt   int                    `json:"attempt,omitempty"`
	Step      int                    `json:"step,omitempty"`
	Success   *bool                  `json:"success,omitempty"`
	Decision  string                 `json:"decision,omitempty"` // for approval events
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Info summarizes one session for listing.
type Info struct {
	ID         string `json:"id"`
	Created    string `json:"created"`
	Updated    string `json:"updated"`
	EventCount int    `json:"event_count"`
}

// Manager owns the sessions directory.
type Manager struct {
	dir string
	now func() time.Time
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// Dir returns the sessions directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the transcript file for a session ID.
func (m *Manager) Path(id string) string {
	return filepath.Join(m.dir, id+".jsonl")
}

// Create starts a new session. With an empty name the ID is derived
// from the current time.
func (m *Manager) Create(name string) (string, error) {
	id := name
	if id == "" {
		id = m.now().Format("20060102_150405")
	}
	err := m.Append(id, Event{
		Type:      EventSessionStart,
		SessionID: id,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Append writes one event to the session transcript. The timestamp is
// filled when unset.
func (m *Manager) Append(id string, ev Event) error {
	if ev.Timestamp == "" {
		ev.Timestamp = m.now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}

	f, err := os.OpenFile(m.Path(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Load reads all events of a session. Corrupt lines are skipped.
func (m *Manager) Load(id string) ([]Event, error) {
	f, err := os.Open(m.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// Messages reconstructs the conversation history from a transcript:
// task prompts become user turns, message events keep their role.
func (m *Manager) Messages(id string) ([]Event, error) {
	events, err := m.Load(id)
	if err != nil {
		return nil, err
	}
	var msgs []Event
	for _, ev := range events {
		switch ev.Type {
		case EventTaskStart:
			msgs = append(msgs, Event{
				Type:      EventMessage,
				Timestamp: ev.Timestamp,
				Role:      "user",
				Content:   ev.Content,
			})
		case EventMessage:
			msgs = append(msgs, ev)
		}
	}
	return msgs, nil
}

// List returns all sessions, most recently updated first.
func (m *Manager) List() ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}

	var sessions []Info
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		events, err := m.Load(id)
		if err != nil || len(events) == 0 {
			continue
		}
		first := events[0]
		last := events[len(events)-1]
		if first.SessionID != "" {
			id = first.SessionID
		}
		sessions = append(sessions, Info{
			ID:         id,
			Created:    first.Timestamp,
			Updated:    last.Timestamp,
			EventCount: len(events) - 1,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Updated > sessions[j].Updated
	})
	return sessions, nil
}

// Latest returns the most recently updated session ID, or "".
func (m *Manager) Latest() (string, error) {
	sessions, err := m.List()
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", nil
	}
	return sessions[0].ID, nil
}
