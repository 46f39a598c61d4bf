// Package tools provides the tool registry and built-in tools.
package tools

import (
	"context"
	"fmt"

	"github.com/openclaw/bladerunner/internal/llm"
)

// Tool represents an executable tool.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// BadArgsError marks a tool call whose arguments are malformed or
// missing. These failures are permanent and never retried.
type BadArgsError struct {
	Tool   string
	Reason string
}

func (e *BadArgsError) Error() string {
	return fmt.Sprintf("%s: bad arguments: %s", e.Tool, e.Reason)
}

// badArgs is a shorthand constructor used by the built-in tools.
func badArgs(tool, reason string) error {
	return &BadArgsError{Tool: tool, Reason: reason}
}

// UnknownToolError marks a call to a tool that is not registered.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Tool)
}

// Options configures the built-in tools.
type Options struct {
	Workspace        string // working directory for bash (default: process cwd)
	BashTimeoutSec   int
	SearchTimeoutSec int
	FetchTimeoutSec  int
}

// Registry holds all registered tools.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry creates a new registry with built-in tools.
func NewRegistry(opts Options) *Registry {
	r := &Registry{index: make(map[string]Tool)}
	r.Register(&readTool{})
	r.Register(&writeTool{})
	r.Register(&editTool{})
	r.Register(&globTool{})
	r.Register(&grepTool{})
	r.Register(&lsTool{})
	r.Register(&bashTool{workspace: opts.Workspace, timeoutSec: opts.BashTimeoutSec})
	r.Register(&webFetchTool{timeoutSec: opts.FetchTimeoutSec})
	r.Register(&webSearchTool{timeoutSec: opts.SearchTimeoutSec})
	return r
}

// NewEmptyRegistry creates a registry with no tools, for tests.
func NewEmptyRegistry() *Registry {
	return &Registry{index: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any tool of the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.index[t.Name()]; !exists {
		r.tools = append(r.tools, t)
	} else {
		for i, existing := range r.tools {
			if existing.Name() == t.Name() {
				r.tools[i] = t
				break
			}
		}
	}
	r.index[t.Name()] = t
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	return r.index[name]
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

// Definitions returns LLM-facing definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
