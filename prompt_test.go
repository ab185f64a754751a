package gate

import (
	"errors"
	"strings"
	"testing"
)

func TestRegisterAndAssemble(t *testing.T) {
	e := NewPromptAssemblyEngine()
	e.RegisterProfile("planner", "Plan the work.\n\n{task_context}", map[string]any{
		"temperature": 0.2,
	})

	if !e.HasProfile("planner") {
		t.Fatal("profile should be registered")
	}

	result, err := e.AssemblePrompt("planner", "Build a shed.", nil)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if result.Prompt != "Plan the work.\n\nBuild a shed." {
		t.Errorf("unexpected prompt: %q", result.Prompt)
	}
	if result.ProfileHash == "" {
		t.Error("expected non-empty profile hash")
	}
	if result.Metadata["temperature"] != 0.2 {
		t.Error("profile metadata missing from result")
	}
}

func TestAssembleUnknownAgent(t *testing.T) {
	e := NewPromptAssemblyEngine()

	_, err := e.AssemblePrompt("ghost", "ctx", nil)
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	// A failed lookup must not register anything.
	if e.HasProfile("ghost") {
		t.Error("failed assemble created a profile")
	}
}

func TestRegisterOverwrites(t *testing.T) {
	e := NewPromptAssemblyEngine()
	e.RegisterProfile("agent", "first {task_context}", nil)
	e.RegisterProfile("agent", "second {task_context}", nil)

	result, err := e.AssemblePrompt("agent", "x", nil)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if !strings.HasPrefix(result.Prompt, "second") {
		t.Errorf("expected overwritten template, got %q", result.Prompt)
	}
}

func TestMetadataOverridesWin(t *testing.T) {
	e := NewPromptAssemblyEngine()
	e.RegisterProfile("agent", "{task_context}", map[string]any{
		"model": "base",
		"top_p": 0.9,
	})

	result, err := e.AssemblePrompt("agent", "ctx", map[string]any{
		"model": "override",
	})
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if result.Metadata["model"] != "override" {
		t.Errorf("override lost: %v", result.Metadata["model"])
	}
	if result.Metadata["top_p"] != 0.9 {
		t.Errorf("profile metadata lost: %v", result.Metadata["top_p"])
	}

	// Overrides must not leak back into the stored profile.
	again, _ := e.AssemblePrompt("agent", "ctx", nil)
	if again.Metadata["model"] != "base" {
		t.Errorf("override mutated the stored profile: %v", again.Metadata["model"])
	}
}

func TestTemplateWithoutSlot(t *testing.T) {
	e := NewPromptAssemblyEngine()
	e.RegisterProfile("agent", "No slot here.", nil)

	result, err := e.AssemblePrompt("agent", "the context", nil)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if result.Prompt != "No slot here.\n\nthe context" {
		t.Errorf("context should be appended, got %q", result.Prompt)
	}

	empty, _ := e.AssemblePrompt("agent", "", nil)
	if empty.Prompt != "No slot here." {
		t.Errorf("empty context should leave the template alone, got %q", empty.Prompt)
	}
}

func TestProfileHashDeterministic(t *testing.T) {
	meta := map[string]any{"b": 2, "a": 1, "c": 3}
	h1 := ProfileHash("template", meta)
	h2 := ProfileHash("template", map[string]any{"c": 3, "a": 1, "b": 2})
	if h1 != h2 {
		t.Error("hash should be independent of metadata map order")
	}

	if ProfileHash("template", meta) == ProfileHash("other", meta) {
		t.Error("different templates should hash differently")
	}
	if ProfileHash("template", meta) == ProfileHash("template", map[string]any{"a": 1}) {
		t.Error("different metadata should hash differently")
	}

	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestSameProfileSameHashAcrossAgents(t *testing.T) {
	e := NewPromptAssemblyEngine()
	meta := map[string]any{"style": "terse"}
	e.RegisterProfile("writer-1", "{task_context}", meta)
	e.RegisterProfile("writer-2", "{task_context}", meta)

	r1, _ := e.AssemblePrompt("writer-1", "a", nil)
	r2, _ := e.AssemblePrompt("writer-2", "b", nil)
	if r1.ProfileHash != r2.ProfileHash {
		t.Error("identical template+metadata should co-batch regardless of agent name")
	}
}
