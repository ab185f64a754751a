package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TaskContextSlot is the placeholder a profile template uses for the
// per-job task context.
const TaskContextSlot = "{task_context}"

// PromptProfile is a registered prompt template for one agent name.
type PromptProfile struct {
	// Name is the agent identifier (unique key)
	Name string

	// Template is the prompt template with a {task_context} slot
	Template string

	// Metadata is attached to every prompt assembled from this profile
	Metadata map[string]any
}

// AssemblyResult is a fully rendered prompt plus its grouping hash.
type AssemblyResult struct {
	// Prompt is the rendered prompt text
	Prompt string

	// ProfileHash is a deterministic digest of template plus sorted
	// profile metadata. It drives batch grouping and is not a security
	// mechanism.
	ProfileHash string

	// Metadata is the profile metadata merged with per-call overrides
	// (overrides win key-by-key)
	Metadata map[string]any
}

// PromptAssemblyEngine caches per-agent prompt profiles and assembles
// concrete prompts. Safe for concurrent use.
type PromptAssemblyEngine struct {
	mu       sync.RWMutex
	profiles map[string]PromptProfile
}

// NewPromptAssemblyEngine creates an empty engine.
func NewPromptAssemblyEngine() *PromptAssemblyEngine {
	return &PromptAssemblyEngine{
		profiles: make(map[string]PromptProfile),
	}
}

// RegisterProfile stores a profile under the agent name. Registering the
// same name again overwrites the previous profile; this is not an error.
func (e *PromptAssemblyEngine) RegisterProfile(agentName, template string, metadata map[string]any) {
	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.profiles[agentName] = PromptProfile{
		Name:     agentName,
		Template: template,
		Metadata: meta,
	}
}

// HasProfile reports whether a profile is registered for the agent name.
func (e *PromptAssemblyEngine) HasProfile(agentName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.profiles[agentName]
	return ok
}

// AssemblePrompt renders the agent's template with the task context,
// merges profile metadata with overrides, and computes the profile hash.
// It fails with ErrProfileNotFound for an unregistered agent name and
// never mutates engine state.
func (e *PromptAssemblyEngine) AssemblePrompt(agentName, taskContext string, overrides map[string]any) (AssemblyResult, error) {
	e.mu.RLock()
	profile, ok := e.profiles[agentName]
	e.mu.RUnlock()

	if !ok {
		return AssemblyResult{}, fmt.Errorf("assemble prompt for %q: %w", agentName, ErrProfileNotFound)
	}

	return AssemblyResult{
		Prompt:      renderTemplate(profile.Template, taskContext),
		ProfileHash: ProfileHash(profile.Template, profile.Metadata),
		Metadata:    mergeMetadata(profile.Metadata, overrides),
	}, nil
}

// ProfileHash computes a fixed-length hex digest over the template bytes
// followed by each metadata key in lexicographic order concatenated with
// its value. Sorting makes the hash independent of map iteration order,
// so identical template+metadata always co-batch.
func ProfileHash(template string, metadata map[string]any) string {
	h := sha256.New()
	h.Write([]byte(template))

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// renderTemplate substitutes the task context into the template. A
// template without the slot gets the context appended so it is never
// silently dropped.
func renderTemplate(template, taskContext string) string {
	if strings.Contains(template, TaskContextSlot) {
		return strings.ReplaceAll(template, TaskContextSlot, taskContext)
	}
	if taskContext == "" {
		return template
	}
	return template + "\n\n" + taskContext
}

// mergeMetadata merges overrides into base, overrides winning per key.
// Neither input is mutated.
func mergeMetadata(base, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
