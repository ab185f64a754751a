package gate

import (
	"errors"
	"testing"
)

func TestNewJob(t *testing.T) {
	spec := JobSpec{
		ArtifactID:      "art",
		ProjectID:       "proj",
		SkillID:         "skill",
		ProviderHint:    "ollama",
		ProfileHash:     "hash",
		Payload:         map[string]any{"k": "v"},
		EstimatedTokens: 42,
	}

	job := NewJob(spec)
	if job.ID == "" {
		t.Fatal("job must get a generated ID")
	}
	if job.CreatedAt.IsZero() {
		t.Error("job must get a creation time")
	}
	if job.EstimatedTokens != 42 || job.ArtifactID != "art" || job.ProviderHint != "ollama" {
		t.Errorf("spec fields lost: %+v", job)
	}

	other := NewJob(spec)
	if other.ID == job.ID {
		t.Error("two jobs from one spec must get distinct IDs")
	}

	// The payload is copied at creation.
	spec.Payload["k"] = "mutated"
	if job.Payload["k"] != "v" {
		t.Error("mutating the spec payload changed the job")
	}
}

func TestNewJobClampsNegativeTokens(t *testing.T) {
	job := NewJob(JobSpec{EstimatedTokens: -100})
	if job.EstimatedTokens != 0 {
		t.Errorf("negative estimate kept: %d", job.EstimatedTokens)
	}
}

func TestJobErrorWrapping(t *testing.T) {
	inner := ErrProfileNotFound
	jobErr := &JobError{JobID: "j1", AgentName: "writer", Err: inner}

	if !errors.Is(jobErr, ErrProfileNotFound) {
		t.Error("JobError should unwrap to its cause")
	}
	msg := jobErr.Error()
	if msg != `job j1 (writer): prompt profile not found` {
		t.Errorf("unexpected message: %q", msg)
	}
}
