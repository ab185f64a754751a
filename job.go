package gate

import (
	"time"

	"github.com/google/uuid"
)

// Job is a unit of work admitted for dispatch. It's an immutable value:
// never mutated after creation, owned by whichever queue currently holds
// it and then by the batch that consumes it.
type Job struct {
	// ID uniquely identifies the job
	ID string

	// ArtifactID names the artifact this job produces or updates
	ArtifactID string

	// ProjectID groups jobs belonging to one project
	ProjectID string

	// SkillID names the capability the job exercises; also the fallback
	// agent name during execution
	SkillID string

	// ProviderHint is the provider the job was admitted for
	ProviderHint string

	// ProfileHash keys batch grouping; jobs sharing a hash share a
	// rendered prompt prefix
	ProfileHash string

	// Payload is the open job body (may contain nested metadata,
	// teachers, level_key, and similar fields)
	Payload map[string]any

	// EstimatedTokens is the job's token cost estimate (never negative)
	EstimatedTokens int

	// CreatedAt is when the job was created
	CreatedAt time.Time
}

// JobSpec describes a job to create. The factory fills in the unique ID
// and creation time.
type JobSpec struct {
	ArtifactID      string
	ProjectID       string
	SkillID         string
	ProviderHint    string
	ProfileHash     string
	Payload         map[string]any
	EstimatedTokens int
}

// NewJob creates a Job with a globally unique ID. The payload is copied so
// the caller can't mutate the job after creation; negative token estimates
// are clamped to zero.
func NewJob(spec JobSpec) Job {
	tokens := spec.EstimatedTokens
	if tokens < 0 {
		tokens = 0
	}

	var payload map[string]any
	if spec.Payload != nil {
		payload = make(map[string]any, len(spec.Payload))
		for k, v := range spec.Payload {
			payload[k] = v
		}
	}

	return Job{
		ID:              uuid.New().String(),
		ArtifactID:      spec.ArtifactID,
		ProjectID:       spec.ProjectID,
		SkillID:         spec.SkillID,
		ProviderHint:    spec.ProviderHint,
		ProfileHash:     spec.ProfileHash,
		Payload:         payload,
		EstimatedTokens: tokens,
		CreatedAt:       time.Now(),
	}
}

// JobResult is the outcome of executing one job. Every executed job yields
// exactly one result, independent of how its batch siblings fared.
type JobResult struct {
	// JobID is the originating job's ID
	JobID string

	// ArtifactID is carried over from the job for traceability
	ArtifactID string

	// Provider is the backend that ran the job
	Provider string

	// Model is the model the provider used
	Model string

	// Content is the generated output
	Content string

	// Success reports whether the provider call succeeded
	Success bool

	// Error describes the failure when Success is false
	Error string

	// Metadata includes the profile hash and the original payload
	Metadata map[string]any
}
