package gate

import (
	"fmt"
	"sort"
	"strings"
)

// buildTaskContext renders a stable, human-readable description of a job
// from its payload and metadata. The same job always yields the same
// string, so the assembled prompt is reproducible and profile-hash
// grouping stays cache-friendly. Missing fields are skipped rather than
// erroring; the teacher list gets a placeholder when absent.
func buildTaskContext(job Job, meta map[string]any) string {
	var b strings.Builder

	writeLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	writeLine("Intent", stringField(job.Payload, "intent"))
	writeLine("Project", job.ProjectID)
	writeLine("Skill", job.SkillID)
	writeLine("Target level", stringField(job.Payload, "level_key"))
	writeLine("Target type", stringField(job.Payload, "target_type"))

	if params := mapField(job.Payload, "parameters"); params != nil {
		fmt.Fprintf(&b, "Parameters: %d\n", len(params))
	}
	if conf, ok := floatField(job.Payload, "confidence"); ok {
		fmt.Fprintf(&b, "Confidence: %.2f\n", conf)
	}

	fmt.Fprintf(&b, "Teachers: %s\n", formatTeachers(job.Payload["teachers"]))

	if size, ok := intField(job.Payload, "requested_size"); ok {
		fmt.Fprintf(&b, "Requested size: %d\n", size)
	}
	writeLine("Summary", stringField(job.Payload, "summary"))

	// Nested routing metadata, sorted so map order can't leak into the
	// rendered prompt.
	if routing := mapField(meta, "routing"); routing != nil {
		keys := make([]string, 0, len(routing))
		for k := range routing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "Routing %s: %v\n", k, routing[k])
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatTeachers renders the contributing teacher identifiers, or a
// placeholder when the job has none.
func formatTeachers(v any) string {
	var names []string
	switch t := v.(type) {
	case []string:
		names = t
	case []any:
		for _, item := range t {
			names = append(names, fmt.Sprint(item))
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if nested, ok := m[key].(map[string]any); ok {
		return nested
	}
	return nil
}

func floatField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intField(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
