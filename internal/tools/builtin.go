package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DirEntry represents a directory entry for ls.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// ExecResult represents the result of bash execution.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// readTool reads file contents.
type readTool struct{}

func (t *readTool) Name() string { return "read" }

func (t *readTool) Description() string {
	return "Read the contents of a file at the given path."
}

func (t *readTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *readTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, badArgs(t.Name(), "path is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return string(content), nil
}

// writeTool writes file contents, creating parent directories.
type writeTool struct{}

func (t *writeTool) Name() string { return "write" }

func (t *writeTool) Description() string {
	return "Write content to a file at the given path. Creates parent directories if needed."
}

func (t *writeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write to the file",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *writeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, badArgs(t.Name(), "path is required")
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, badArgs(t.Name(), "content is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return "ok", nil
}

// editTool performs a single exact find-and-replace.
type editTool struct{}

func (t *editTool) Name() string { return "edit" }

func (t *editTool) Description() string {
	return "Find and replace text in a file. The old text must match exactly."
}

func (t *editTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to edit",
			},
			"old": map[string]interface{}{
				"type":        "string",
				"description": "Text to find (exact match)",
			},
			"new": map[string]interface{}{
				"type":        "string",
				"description": "Text to replace with",
			},
		},
		"required": []string{"path", "old", "new"},
	}
}

func (t *editTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, badArgs(t.Name(), "path is required")
	}
	oldText, ok := args["old"].(string)
	if !ok {
		return nil, badArgs(t.Name(), "old is required")
	}
	newText, ok := args["new"].(string)
	if !ok {
		return nil, badArgs(t.Name(), "new is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	text := string(content)
	if !strings.Contains(text, oldText) {
		return nil, fmt.Errorf("pattern not found in file")
	}

	updated := strings.Replace(text, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return "ok", nil
}

// globTool finds files matching a glob pattern.
type globTool struct{}

func (t *globTool) Name() string { return "glob" }

func (t *globTool) Description() string {
	return "Find files matching a glob pattern."
}

func (t *globTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern (e.g., *.go, **/*.txt)",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *globTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return nil, badArgs(t.Name(), "pattern is required")
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, badArgs(t.Name(), "invalid pattern: "+err.Error())
	}

	return matches, nil
}

// grepTool searches for a regex pattern in a file or directory.
type grepTool struct{}

func (t *grepTool) Name() string { return "grep" }

func (t *grepTool) Description() string {
	return "Search for a regex pattern in a file or directory."
}

func (t *grepTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regex pattern to search for",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File or directory to search",
			},
		},
		"required": []string{"pattern", "path"},
	}
}

// GrepMatch represents a grep match result.
type GrepMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

func (t *grepTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return nil, badArgs(t.Name(), "pattern is required")
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, badArgs(t.Name(), "path is required")
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, badArgs(t.Name(), "invalid regex: "+err.Error())
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path not found: %w", err)
	}

	var matches []GrepMatch
	if info.IsDir() {
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // Skip errors
			}
			if info.IsDir() {
				return nil
			}
			fileMatches, _ := grepFile(re, p)
			matches = append(matches, fileMatches...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		matches, err = grepFile(re, path)
		if err != nil {
			return nil, err
		}
	}

	return matches, nil
}

func grepFile(re *regexp.Regexp, path string) ([]GrepMatch, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var matches []GrepMatch
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if re.MatchString(line) {
			matches = append(matches, GrepMatch{
				File:    path,
				Line:    i + 1,
				Content: line,
			})
		}
	}
	return matches, nil
}

// lsTool lists directory contents.
type lsTool struct{}

func (t *lsTool) Name() string { return "ls" }

func (t *lsTool) Description() string {
	return "List directory contents."
}

func (t *lsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory path to list",
			},
		},
		"required": []string{"path"},
	}
}

func (t *lsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, badArgs(t.Name(), "path is required")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var result []DirEntry
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		result = append(result, DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
			Size:  info.Size(),
		})
	}

	return result, nil
}

// bashTool executes a shell command in the workspace.
type bashTool struct {
	workspace  string
	timeoutSec int
}

func (t *bashTool) Name() string { return "bash" }

func (t *bashTool) Description() string {
	return "Execute a shell command."
}

func (t *bashTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *bashTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return nil, badArgs(t.Name(), "command is required")
	}

	if t.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.timeoutSec)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = t.workspace

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}
