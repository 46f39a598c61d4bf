package memory

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, true, nil), dir
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"fix the bug", "fix the bug", 1.0},
		{"fix the bug", "close the issue", 0.2}, // "the" of 5
		{"fix the bug", "compile shaders", 0},
		{"", "fix the bug", 0},
		{"", "", 0},
		{"Fix The Bug", "fix the bug", 1.0}, // case-insensitive
	}
	for _, tc := range cases {
		got := Jaccard(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestStoreAndFindSimilar(t *testing.T) {
	store, _ := newTestStore(t)
	mustStore(t, store, "fix the login bug", []string{"tool:read(path)", "tool:edit(path,old,new)"})
	mustStore(t, store, "deploy the service", []string{"tool:bash(command)"})

	matches := store.FindSimilar("fix the signup bug", DefaultThreshold, DefaultLimit)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Solution.Task != "fix the login bug" {
		t.Errorf("unexpected match: %s", matches[0].Solution.Task)
	}
	if matches[0].Similarity < DefaultThreshold {
		t.Errorf("similarity %v below threshold", matches[0].Similarity)
	}
}

func TestFindSimilar_ThresholdExcludes(t *testing.T) {
	store, _ := newTestStore(t)
	mustStore(t, store, "fix the login bug in the auth package", []string{"tool:read(path)"})

	if matches := store.FindSimilar("bake a chocolate cake", DefaultThreshold, DefaultLimit); len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestFindSimilar_LimitAndOrder(t *testing.T) {
	store, _ := newTestStore(t)
	mustStore(t, store, "fix bug one", nil)
	mustStore(t, store, "fix bug two", nil)
	mustStore(t, store, "fix bug three", nil)
	mustStore(t, store, "fix bug four", nil)

	matches := store.FindSimilar("fix bug five", 0.1, 3)
	if len(matches) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(matches))
	}
	// Equal similarity: most recent first.
	if matches[0].Solution.Task != "fix bug four" {
		t.Errorf("expected most recent first, got %s", matches[0].Solution.Task)
	}
}

func TestFindSimilar_SimilarityBeatsRecency(t *testing.T) {
	store, _ := newTestStore(t)
	mustStore(t, store, "fix the login bug now", nil)
	mustStore(t, store, "fix something else entirely today", nil)

	matches := store.FindSimilar("fix the login bug now", 0.1, 3)
	if len(matches) < 1 || matches[0].Solution.Task != "fix the login bug now" {
		t.Fatalf("expected exact match ranked first: %+v", matches)
	}
}

func TestContext(t *testing.T) {
	store, _ := newTestStore(t)
	mustStore(t, store, "fix the login bug", []string{"tool:read(path)", "tool:edit(path,old,new)"})

	ctx := store.Context("fix the logout bug")
	if !strings.Contains(ctx, "[Similar Past Solutions]") {
		t.Errorf("missing header: %q", ctx)
	}
	if !strings.Contains(ctx, "tool:read(path) -> tool:edit(path,old,new)") {
		t.Errorf("missing step chain: %q", ctx)
	}
	if !strings.Contains(ctx, "Tools: read, edit") {
		t.Errorf("missing tool list: %q", ctx)
	}
}

func TestContext_EmptyWhenNoMatch(t *testing.T) {
	store, _ := newTestStore(t)
	if ctx := store.Context("anything"); ctx != "" {
		t.Errorf("expected empty context, got %q", ctx)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	store, dir := newTestStore(t)
	mustStore(t, store, "fix the login bug", []string{"tool:read(path)"})

	reopened := NewStore(dir, true, nil)
	if reopened.Count() != 1 {
		t.Fatalf("expected 1 solution after reopen, got %d", reopened.Count())
	}
}

func TestCorruptLineSkipped(t *testing.T) {
	store, dir := newTestStore(t)
	mustStore(t, store, "fix the login bug", nil)

	path := filepath.Join(dir, "solutions.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{truncated\n")
	f.Close()
	mustStore(t, store, "deploy the service", nil)

	reopened := NewStore(dir, true, nil)
	if reopened.Count() != 2 {
		t.Errorf("expected 2 valid solutions, got %d", reopened.Count())
	}
}

func TestClear(t *testing.T) {
	store, dir := newTestStore(t)
	mustStore(t, store, "fix the login bug", nil)

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if store.Count() != 0 {
		t.Error("expected empty store after clear")
	}
	if NewStore(dir, true, nil).Count() != 0 {
		t.Error("expected empty store on disk after clear")
	}
}

func TestDisabledStore(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, false, nil)
	if err := store.Store("task", nil); err != nil {
		t.Fatal(err)
	}
	if store.Count() != 0 {
		t.Error("disabled store must not record")
	}
	if matches := store.FindSimilar("task", 0, 10); matches != nil {
		t.Error("disabled store must not match")
	}
}

func TestExtractToolsOrderAndDedup(t *testing.T) {
	store, _ := newTestStore(t)
	mustStore(t, store, "task", []string{
		"tool:bash(command)",
		"tool:read(path)",
		"tool:bash(command)",
		"not a tool step",
	})
	sols := store.Solutions()
	if len(sols) != 1 {
		t.Fatal("expected 1 solution")
	}
	got := strings.Join(sols[0].ToolsUsed, ",")
	if got != "bash,read" {
		t.Errorf("tools = %q, want bash,read", got)
	}
}

func mustStore(t *testing.T, s *Store, task string, steps []string) {
	t.Helper()
	if err := s.Store(task, steps); err != nil {
		t.Fatal(err)
	}
}
