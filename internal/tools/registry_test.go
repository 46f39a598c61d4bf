package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry(Options{BashTimeoutSec: 10})
}

func execTool(t *testing.T, r *Registry, name string, args map[string]interface{}) (interface{}, error) {
	t.Helper()
	tool := r.Get(name)
	if tool == nil {
		t.Fatalf("tool %s not registered", name)
	}
	return tool.Execute(context.Background(), args)
}

func TestRegistryContents(t *testing.T) {
	r := testRegistry()
	for _, name := range []string{"read", "write", "edit", "glob", "grep", "ls", "bash", "web_fetch", "web_search"} {
		if r.Get(name) == nil {
			t.Errorf("missing tool %s", name)
		}
	}
	defs := r.Definitions()
	if len(defs) != len(r.Names()) {
		t.Errorf("definitions/names mismatch: %d vs %d", len(defs), len(r.Names()))
	}
	for _, def := range defs {
		if def.Description == "" || def.Parameters == nil {
			t.Errorf("incomplete definition for %s", def.Name)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	if testRegistry().Get("teleport") != nil {
		t.Error("expected nil for unknown tool")
	}
}

func TestReadWrite(t *testing.T) {
	r := testRegistry()
	path := filepath.Join(t.TempDir(), "sub", "file.txt")

	if _, err := execTool(t, r, "write", map[string]interface{}{"path": path, "content": "hello"}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	out, err := execTool(t, r, "read", map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if out.(string) != "hello" {
		t.Errorf("read = %q", out)
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := execTool(t, testRegistry(), "read", map[string]interface{}{"path": "/nonexistent/file"})
	if err == nil {
		t.Fatal("expected error")
	}
	var bad *BadArgsError
	if errors.As(err, &bad) {
		t.Error("missing file is a runtime failure, not bad args")
	}
}

func TestBadArgs(t *testing.T) {
	r := testRegistry()
	cases := []struct {
		tool string
		args map[string]interface{}
	}{
		{"read", map[string]interface{}{}},
		{"read", map[string]interface{}{"path": 42}},
		{"write", map[string]interface{}{"path": "/tmp/x"}},
		{"edit", map[string]interface{}{"path": "/tmp/x", "old": "a"}},
		{"grep", map[string]interface{}{"pattern": "x"}},
		{"bash", map[string]interface{}{}},
		{"ls", map[string]interface{}{"path": ""}},
	}
	for _, tc := range cases {
		_, err := execTool(t, r, tc.tool, tc.args)
		var bad *BadArgsError
		if !errors.As(err, &bad) {
			t.Errorf("%s with %v: expected BadArgsError, got %v", tc.tool, tc.args, err)
		}
	}
}

func TestEdit(t *testing.T) {
	r := testRegistry()
	path := filepath.Join(t.TempDir(), "f.txt")
	os.WriteFile(path, []byte("alpha beta alpha"), 0644)

	if _, err := execTool(t, r, "edit", map[string]interface{}{"path": path, "old": "alpha", "new": "gamma"}); err != nil {
		t.Fatal(err)
	}
	content, _ := os.ReadFile(path)
	// Only the first occurrence is replaced.
	if string(content) != "gamma beta alpha" {
		t.Errorf("content = %q", content)
	}

	_, err := execTool(t, r, "edit", map[string]interface{}{"path": path, "old": "missing", "new": "x"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected pattern-not-found error, got %v", err)
	}
}

func TestGlob(t *testing.T) {
	r := testRegistry()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.go"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644)

	out, err := execTool(t, r, "glob", map[string]interface{}{"pattern": filepath.Join(dir, "*.go")})
	if err != nil {
		t.Fatal(err)
	}
	files := out.([]string)
	if len(files) != 1 || !strings.HasSuffix(files[0], "a.go") {
		t.Errorf("glob = %v", files)
	}
}

func TestGrep(t *testing.T) {
	r := testRegistry()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.txt"), []byte("one\ntwo needle\nthree\nneedle four"), 0644)

	out, err := execTool(t, r, "grep", map[string]interface{}{"pattern": "needle", "path": dir})
	if err != nil {
		t.Fatal(err)
	}
	matches := out.([]GrepMatch)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Line != 2 || matches[1].Line != 4 {
		t.Errorf("unexpected line numbers: %+v", matches)
	}
}

func TestGrep_InvalidRegex(t *testing.T) {
	_, err := execTool(t, testRegistry(), "grep", map[string]interface{}{"pattern": "([", "path": "."})
	var bad *BadArgsError
	if !errors.As(err, &bad) {
		t.Errorf("expected BadArgsError for invalid regex, got %v", err)
	}
}

func TestLs(t *testing.T) {
	r := testRegistry()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)

	out, err := execTool(t, r, "ls", map[string]interface{}{"path": dir})
	if err != nil {
		t.Fatal(err)
	}
	entries := out.([]DirEntry)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestBash(t *testing.T) {
	out, err := execTool(t, testRegistry(), "bash", map[string]interface{}{"command": "echo hi; exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	result := out.(*ExecResult)
	if strings.TrimSpace(result.Stdout) != "hi" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	// Non-zero exit is reported in the result, not as an error.
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestBash_Workspace(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(Options{Workspace: dir, BashTimeoutSec: 10})
	out, err := execTool(t, r, "bash", map[string]interface{}{"command": "pwd"})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(out.(*ExecResult).Stdout)
	if resolved, _ := filepath.EvalSymlinks(dir); got != dir && got != resolved {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestEmptyRegistry(t *testing.T) {
	r := NewEmptyRegistry()
	if len(r.Names()) != 0 {
		t.Errorf("expected empty registry, got %v", r.Names())
	}
}
