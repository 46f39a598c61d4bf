// Package router selects an agent specialization for a task by scoring
// its text against per-profile keyword sets.
package router

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is one agent specialization.
type Profile struct {
	Name           string   `yaml:"name"`
	Keywords       []string `yaml:"keywords"`
	PreferredTools []string `yaml:"preferred_tools"`
	PromptSuffix   string   `yaml:"prompt_suffix"`
	Description    string   `yaml:"description"`
}

// GeneralProfile is the fallback specialization. It has no keywords and
// always scores zero.
const GeneralProfile = "general"

// Router scores tasks against an ordered profile list. Order is the
// tie-break priority: on equal scores the earlier profile wins.
type Router struct {
	profiles []Profile
	enabled  bool
}

// DefaultProfiles returns the built-in specializations in priority order.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:           "code",
			Keywords:       []string{"code", "function", "class", "refactor", "implement", "generate", "script", "module"},
			PreferredTools: []string{"write", "bash", "read"},
			PromptSuffix: "You are an expert code generation and refactoring agent. " +
				"Focus on writing clean, tested, maintainable code. " +
				"Always consider error handling, types, and best practices. " +
				"Prioritize code quality over quick solutions.",
			Description: "Specialized in code generation and refactoring",
		},
		{
			Name:           "test",
			Keywords:       []string{"test", "debug", "fix", "bug", "error", "issue", "verify", "check"},
			PreferredTools: []string{"bash", "write", "read"},
			PromptSuffix: "You are an expert in testing and debugging. " +
				"Write comprehensive tests, identify edge cases, and debug problems. " +
				"Focus on test coverage and reliability. " +
				"Always verify solutions work correctly.",
			Description: "Specialized in testing and debugging",
		},
		{
			Name:           "docs",
			Keywords:       []string{"document", "readme", "guide", "explain", "tutorial", "example", "comment"},
			PreferredTools: []string{"write", "read", "web_search"},
			PromptSuffix: "You are a documentation expert. " +
				"Write clear, comprehensive documentation with examples. " +
				"Explain complex concepts simply. " +
				"Include usage patterns and troubleshooting.",
			Description: "Specialized in writing documentation",
		},
		{
			Name:           "architect",
			Keywords:       []string{"design", "architecture", "system", "structure", "scalable", "plan", "organize"},
			PreferredTools: []string{"read", "write", "web_search"},
			PromptSuffix: "You are a system architect. " +
				"Design scalable, maintainable systems. " +
				"Consider tradeoffs, performance, and future evolution. " +
				"Think about data flow, separation of concerns, and APIs.",
			Description: "Specialized in system design and architecture",
		},
		{
			Name:           GeneralProfile,
			PreferredTools: []string{"read", "write", "bash", "web_search"},
			PromptSuffix: "You are a general-purpose AI assistant. " +
				"Handle any task the user requests.",
			Description: "General purpose agent for any task",
		},
	}
}

// New creates a router over the built-in profiles. When disabled, Select
// always returns the general profile.
func New(enabled bool) *Router {
	return &Router{profiles: DefaultProfiles(), enabled: enabled}
}

// NewWithProfiles creates a router over a custom profile list. The list
// must contain a general profile; if missing, one is appended.
func NewWithProfiles(profiles []Profile, enabled bool) *Router {
	hasGeneral := false
	for _, p := range profiles {
		if p.Name == GeneralProfile {
			hasGeneral = true
			break
		}
	}
	if !hasGeneral {
		for _, p := range DefaultProfiles() {
			if p.Name == GeneralProfile {
				profiles = append(profiles, p)
				break
			}
		}
	}
	return &Router{profiles: profiles, enabled: enabled}
}

// LoadProfiles reads a profile list from a YAML file.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined in %s", path)
	}
	return doc.Profiles, nil
}

// Select scores the task against every profile and returns the best
// match. Keywords match as whole words, case-insensitive. Ties go to the
// earlier profile; with no keyword hits the general profile wins.
func (r *Router) Select(task string) (Profile, int) {
	general := r.general()
	if !r.enabled {
		return general, 0
	}

	words := wordSet(task)

	best := general
	bestScore := 0
	for _, p := range r.profiles {
		score := 0
		for _, kw := range p.Keywords {
			if words[strings.ToLower(kw)] {
				score++
			}
		}
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best, bestScore
}

// Get returns a profile by name, falling back to general.
func (r *Router) Get(name string) Profile {
	for _, p := range r.profiles {
		if p.Name == name {
			return p
		}
	}
	return r.general()
}

// Profiles returns the router's profile list.
func (r *Router) Profiles() []Profile {
	return r.profiles
}

func (r *Router) general() Profile {
	for _, p := range r.profiles {
		if p.Name == GeneralProfile {
			return p
		}
	}
	return Profile{Name: GeneralProfile}
}

var wordRe = regexp.MustCompile(`[a-z0-9_]+`)

// wordSet tokenizes text into a lowercase word set. Naive plurals are
// folded so "tests" matches the keyword "test".
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		set[w] = true
		if s := strings.TrimSuffix(w, "s"); s != w && s != "" {
			set[s] = true
		}
	}
	return set
}
