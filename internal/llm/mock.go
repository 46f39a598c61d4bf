package llm

import (
	"context"
	"sync"
)

// MockProvider is a scriptable Provider for tests. Responses are
// returned in the order queued; the last one repeats when the queue
// runs dry.
type MockProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	errs      []error
	requests  []ChatRequest
	index     int
}

// NewMockProvider creates an empty mock. With nothing queued, Chat
// returns an empty final response.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SetResponse queues a plain text response.
func (m *MockProvider) SetResponse(content string) {
	m.QueueResponse(&ChatResponse{Content: content, StopReason: "end_turn"})
}

// QueueResponse appends a scripted response.
func (m *MockProvider) QueueResponse(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, nil)
}

// QueueToolCall appends a response that requests a single tool call.
func (m *MockProvider) QueueToolCall(id, name string, args map[string]interface{}) {
	m.QueueResponse(&ChatResponse{
		StopReason: "tool_use",
		ToolCalls:  []ToolCallResponse{{ID: id, Name: name, Args: args}},
	})
}

// QueueError appends an error turn.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
}

// Chat records the request and returns the next scripted response.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.responses) == 0 {
		return &ChatResponse{StopReason: "end_turn"}, nil
	}

	i := m.index
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	} else {
		m.index++
	}

	if m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return m.responses[i], nil
}

// LastRequest returns the most recent request, or a zero request.
func (m *MockProvider) LastRequest() ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Requests returns a copy of all recorded requests.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many Chat calls were made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
