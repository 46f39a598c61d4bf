// Package llm defines the provider abstraction for chat-based language
// models and the fantasy-backed adapters that implement it.
package llm

import (
	"context"
	"errors"
)

var errNoModel = errors.New("model is required")

// Message is a single conversation message.
type Message struct {
	Role       string             `json:"role"` // system|user|assistant|tool
	Content    string             `json:"content"`
	ToolCalls  []ToolCallResponse `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"` // for role=tool
}

// ToolDef describes a tool exposed to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// ToolCallResponse is a tool invocation requested by the model.
type ToolCallResponse struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ChatRequest is a single model turn.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content      string
	Thinking     string
	ToolCalls    []ToolCallResponse
	StopReason   string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Provider is a chat-capable language model backend.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// FantasyConfig configures a fantasy-backed provider.
type FantasyConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// Validate checks that the configuration is complete.
func (c FantasyConfig) Validate() error {
	if c.Model == "" {
		return errNoModel
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *FantasyConfig) ApplyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
}
