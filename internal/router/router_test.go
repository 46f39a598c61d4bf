package router

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelect_CodeTask(t *testing.T) {
	r := New(true)
	profile, score := r.Select("refactor the parser module")
	if profile.Name != "code" {
		t.Errorf("expected code profile, got %s", profile.Name)
	}
	if score < 2 {
		t.Errorf("expected score >= 2, got %d", score)
	}
}

func TestSelect_TestTask(t *testing.T) {
	r := New(true)
	profile, _ := r.Select("debug the failing test and fix the bug")
	if profile.Name != "test" {
		t.Errorf("expected test profile, got %s", profile.Name)
	}
}

func TestSelect_TestBeatsCode(t *testing.T) {
	// "tests" folds to "test"; nothing here matches the code profile.
	r := New(true)
	profile, _ := r.Select("write unit tests for the login handler")
	if profile.Name != "test" {
		t.Errorf("expected test profile, got %s", profile.Name)
	}
}

func TestSelect_DocsTask(t *testing.T) {
	r := New(true)
	profile, _ := r.Select("document the API and write a readme")
	if profile.Name != "docs" {
		t.Errorf("expected docs profile, got %s", profile.Name)
	}
}

func TestSelect_ArchitectTask(t *testing.T) {
	r := New(true)
	profile, _ := r.Select("design a scalable system architecture")
	if profile.Name != "architect" {
		t.Errorf("expected architect profile, got %s", profile.Name)
	}
}

func TestSelect_NoMatchFallsBackToGeneral(t *testing.T) {
	r := New(true)
	profile, score := r.Select("make me a sandwich")
	if profile.Name != GeneralProfile {
		t.Errorf("expected general profile, got %s", profile.Name)
	}
	if score != 0 {
		t.Errorf("expected score 0, got %d", score)
	}
}

func TestSelect_Disabled(t *testing.T) {
	r := New(false)
	profile, score := r.Select("refactor the code")
	if profile.Name != GeneralProfile {
		t.Errorf("expected general profile when disabled, got %s", profile.Name)
	}
	if score != 0 {
		t.Errorf("expected score 0 when disabled, got %d", score)
	}
}

func TestSelect_WholeWordsOnly(t *testing.T) {
	// "testimony" must not match the "test" keyword.
	r := New(true)
	profile, _ := r.Select("summarize the witness testimony")
	if profile.Name != GeneralProfile {
		t.Errorf("expected general profile, got %s", profile.Name)
	}
}

func TestSelect_CaseInsensitive(t *testing.T) {
	r := New(true)
	profile, _ := r.Select("REFACTOR THE MODULE")
	if profile.Name != "code" {
		t.Errorf("expected code profile, got %s", profile.Name)
	}
}

func TestSelect_TieBreakPriority(t *testing.T) {
	// One keyword each from code and test; code wins on fixed order.
	r := New(true)
	profile, _ := r.Select("refactor then verify")
	if profile.Name != "code" {
		t.Errorf("expected code profile on tie, got %s", profile.Name)
	}
}

func TestGet(t *testing.T) {
	r := New(true)
	if p := r.Get("docs"); p.Name != "docs" {
		t.Errorf("expected docs profile, got %s", p.Name)
	}
	if p := r.Get("nonexistent"); p.Name != GeneralProfile {
		t.Errorf("expected general for unknown name, got %s", p.Name)
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	content := `profiles:
  - name: security
    keywords: [audit, vulnerability]
    preferred_tools: [grep, read]
    prompt_suffix: "You are a security auditor."
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "security" {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}

	r := NewWithProfiles(profiles, true)
	profile, _ := r.Select("audit the auth flow for a vulnerability")
	if profile.Name != "security" {
		t.Errorf("expected security profile, got %s", profile.Name)
	}
}

func TestLoadProfiles_Missing(t *testing.T) {
	if _, err := LoadProfiles("/nonexistent/profiles.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
