// Package skills provides Agent Skills (agentskills.io) support.
// Skills are folders containing SKILL.md with instructions for agents.
package skills

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill represents a loaded Agent Skill.
type Skill struct {
	// From frontmatter
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	License     string            `yaml:"license,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	// From content
	Instructions string `yaml:"-"`

	// Location
	Path string `yaml:"-"`
}

// Ref is a minimal skill reference for discovery.
type Ref struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Path        string `yaml:"-" json:"path"`
}

// Load loads a skill from a directory.
func Load(skillDir string) (*Skill, error) {
	skillPath := filepath.Join(skillDir, "SKILL.md")

	content, err := os.ReadFile(skillPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SKILL.md: %w", err)
	}

	skill, err := Parse(string(content))
	if err != nil {
		return nil, err
	}

	skill.Path = skillDir

	dirName := filepath.Base(skillDir)
	if skill.Name != dirName {
		return nil, fmt.Errorf("skill name %q does not match directory name %q", skill.Name, dirName)
	}

	return skill, nil
}

// Parse parses a SKILL.md file content.
func Parse(content string) (*Skill, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	skill := &Skill{}
	if err := yaml.Unmarshal([]byte(frontmatter), skill); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}

	if skill.Name == "" {
		return nil, fmt.Errorf("missing required field: name")
	}
	if skill.Description == "" {
		return nil, fmt.Errorf("missing required field: description")
	}
	if err := validateName(skill.Name); err != nil {
		return nil, err
	}

	skill.Instructions = strings.TrimSpace(body)
	return skill, nil
}

// splitFrontmatter extracts YAML frontmatter from markdown.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	lines := strings.Split(content, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}

	var fmLines []string
	var bodyStart int
	inFrontmatter := true

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			inFrontmatter = false
			bodyStart = i + 1
			break
		}
		if inFrontmatter {
			fmLines = append(fmLines, lines[i])
		}
	}

	if inFrontmatter {
		return "", "", fmt.Errorf("unclosed frontmatter")
	}

	frontmatter = strings.Join(fmLines, "\n")
	if bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}

	return frontmatter, body, nil
}

// validateName validates a skill name.
func validateName(name string) error {
	if len(name) == 0 || len(name) > 64 {
		return fmt.Errorf("name must be 1-64 characters")
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("name cannot start or end with hyphen")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("name cannot contain consecutive hyphens")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("name can only contain lowercase letters, numbers, and hyphens")
		}
	}
	return nil
}

// Discover finds all skills in a directory.
func Discover(skillsDir string) ([]Ref, error) {
	var refs []Ref

	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		skillPath := filepath.Join(skillsDir, entry.Name(), "SKILL.md")
		if _, err := os.Stat(skillPath); os.IsNotExist(err) {
			continue
		}

		ref, err := parseRef(skillPath)
		if err != nil {
			continue // Skip invalid skills
		}
		ref.Path = filepath.Join(skillsDir, entry.Name())
		refs = append(refs, ref)
	}

	return refs, nil
}

// parseRef quickly parses just the frontmatter for discovery.
func parseRef(path string) (Ref, error) {
	f, err := os.Open(path)
	if err != nil {
		return Ref{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var inFrontmatter bool
	var fmLines []string

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !inFrontmatter {
			if trimmed == "---" {
				inFrontmatter = true
			}
			continue
		}

		if trimmed == "---" {
			break
		}
		fmLines = append(fmLines, line)
	}

	var ref Ref
	if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &ref); err != nil {
		return Ref{}, err
	}
	if ref.Name == "" || ref.Description == "" {
		return Ref{}, fmt.Errorf("missing name or description")
	}
	return ref, nil
}

// DiscoverAll collects skill refs across multiple search paths.
// Duplicated names keep the first occurrence.
func DiscoverAll(paths []string) []Ref {
	var refs []Ref
	seen := make(map[string]bool)
	for _, dir := range paths {
		found, err := Discover(dir)
		if err != nil {
			continue
		}
		for _, ref := range found {
			if seen[ref.Name] {
				continue
			}
			seen[ref.Name] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// PromptSection formats skill refs for injection into the system
// prompt, or "" with no skills available.
func PromptSection(refs []Ref) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available skills (activate with [use-skill:name]):\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "- %s: %s\n", ref.Name, ref.Description)
	}
	return b.String()
}

var activationRe = regexp.MustCompile(`\[use-skill:([a-z0-9-]+)\]`)

// Activation extracts the skill name from a [use-skill:name] marker in
// model output, or "".
func Activation(content string) string {
	m := activationRe.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Context renders a loaded skill as model context.
func (s *Skill) Context() string {
	return fmt.Sprintf("# Skill: %s\n\n%s", s.Name, s.Instructions)
}
