// Package memory stores successful task execution traces and retrieves
// them by word-set similarity for prompt context.
package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/bladerunner/internal/logging"
)

// Retrieval defaults.
const (
	DefaultThreshold = 0.30
	DefaultLimit     = 3
)

// Solution is one stored successful execution trace. Steps are
// "tool:name(arg-keys)" strings in invocation order.
type Solution struct {
	Task      string   `json:"task"`
	Steps     []string `json:"steps"`
	ToolsUsed []string `json:"tools_used"`
	Timestamp string   `json:"timestamp"`
}

// Match pairs a retrieved solution with its similarity score.
type Match struct {
	Solution   Solution
	Similarity float64
}

// Store is the append-only JSONL solution log at dir/solutions.jsonl.
// Appends are line-atomic, safe across concurrent processes.
type Store struct {
	path      string
	enabled   bool
	log       *logging.Logger
	solutions []Solution
	now       func() time.Time
}

// NewStore opens the solution log, loading existing records. Corrupt
// lines are skipped and logged, never fatal.
func NewStore(dir string, enabled bool, log *logging.Logger) *Store {
	s := &Store{
		path:    filepath.Join(dir, "solutions.jsonl"),
		enabled: enabled,
		log:     log,
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	f, err := os.Open(s.path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var sol Solution
		if err := json.Unmarshal([]byte(line), &sol); err != nil {
			if s.log != nil {
				s.log.StoreRecovered(s.path, err)
			}
			continue
		}
		s.solutions = append(s.solutions, sol)
	}
}

// Store appends a solution for a successfully completed task.
func (s *Store) Store(task string, steps []string) error {
	if !s.enabled {
		return nil
	}

	sol := Solution{
		Task:      task,
		Steps:     steps,
		ToolsUsed: extractTools(steps),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create memory dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open solution log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(sol)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append solution: %w", err)
	}

	s.solutions = append(s.solutions, sol)
	return nil
}

// FindSimilar returns up to limit solutions whose task text has
// Jaccard word-set similarity >= threshold with the candidate, ordered
// by similarity descending, ties broken by recency descending.
func (s *Store) FindSimilar(task string, threshold float64, limit int) []Match {
	if !s.enabled || len(s.solutions) == 0 {
		return nil
	}

	var matches []Match
	for _, sol := range s.solutions {
		sim := Jaccard(task, sol.Task)
		if sim >= threshold {
			matches = append(matches, Match{Solution: sol, Similarity: sim})
		}
	}

	// Later entries are more recent; stable sort keeps insertion order,
	// so reverse first to prefer recency on ties.
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Context formats similar past solutions as a prompt context block, or
// "" when nothing relevant is stored.
func (s *Store) Context(task string) string {
	similar := s.FindSimilar(task, DefaultThreshold, DefaultLimit)
	if len(similar) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[Similar Past Solutions]\n")
	for i, m := range similar {
		fmt.Fprintf(&b, "%d. Task: %s\n", i+1, m.Solution.Task)
		fmt.Fprintf(&b, "   Steps: %s\n", strings.Join(m.Solution.Steps, " -> "))
		fmt.Fprintf(&b, "   Tools: %s\n", strings.Join(m.Solution.ToolsUsed, ", "))
	}
	return b.String()
}

// Count returns the number of stored solutions.
func (s *Store) Count() int {
	return len(s.solutions)
}

// Solutions returns a copy of all stored solutions.
func (s *Store) Solutions() []Solution {
	out := make([]Solution, len(s.solutions))
	copy(out, s.solutions)
	return out
}

// Clear truncates the solution log.
func (s *Store) Clear() error {
	s.solutions = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Jaccard computes |intersection|/|union| over lowercase word sets.
// Either side empty scores zero.
func Jaccard(a, b string) float64 {
	wa := splitWords(a)
	wb := splitWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	intersection := 0
	for w := range wa {
		if wb[w] {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func splitWords(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

// extractTools pulls unique tool names from "tool:name(...)" steps,
// preserving first-use order.
func extractTools(steps []string) []string {
	var tools []string
	seen := make(map[string]bool)
	for _, step := range steps {
		if !strings.HasPrefix(step, "tool:") {
			continue
		}
		name := strings.TrimPrefix(step, "tool:")
		if idx := strings.Index(name, "("); idx >= 0 {
			name = name[:idx]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			tools = append(tools, name)
		}
	}
	return tools
}
