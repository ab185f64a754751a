package gate

import (
	"strings"
	"testing"
)

func TestBuildTaskContext(t *testing.T) {
	job := NewJob(JobSpec{
		ProjectID: "proj-1",
		SkillID:   "composer",
		Payload: map[string]any{
			"intent":         "write the chorus",
			"level_key":      "L2",
			"target_type":    "section",
			"parameters":     map[string]any{"key": "C", "bpm": 120},
			"confidence":     0.75,
			"teachers":       []string{"t1", "t2"},
			"requested_size": 4,
			"summary":        "uptempo chorus",
		},
	})
	meta := map[string]any{
		"routing": map[string]any{"b": 2, "a": 1},
	}

	ctx := buildTaskContext(job, meta)

	for _, want := range []string{
		"Intent: write the chorus",
		"Project: proj-1",
		"Skill: composer",
		"Target level: L2",
		"Target type: section",
		"Parameters: 2",
		"Confidence: 0.75",
		"Teachers: t1, t2",
		"Requested size: 4",
		"Summary: uptempo chorus",
		"Routing a: 1",
		"Routing b: 2",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("missing line %q in:\n%s", want, ctx)
		}
	}

	// Routing keys render sorted.
	if strings.Index(ctx, "Routing a:") > strings.Index(ctx, "Routing b:") {
		t.Error("routing keys not sorted")
	}
	if strings.HasSuffix(ctx, "\n") {
		t.Error("context should be trimmed")
	}
}

func TestBuildTaskContextSparse(t *testing.T) {
	job := NewJob(JobSpec{})

	ctx := buildTaskContext(job, nil)
	if ctx != "Teachers: (none)" {
		t.Errorf("sparse job context = %q", ctx)
	}
}

func TestBuildTaskContextDeterministic(t *testing.T) {
	job := NewJob(JobSpec{
		ProjectID: "p",
		Payload: map[string]any{
			"teachers": []any{"x", 7},
		},
	})

	first := buildTaskContext(job, nil)
	for i := 0; i < 10; i++ {
		if got := buildTaskContext(job, nil); got != first {
			t.Fatalf("context not deterministic:\n%s\nvs\n%s", first, got)
		}
	}
	if !strings.Contains(first, "Teachers: x, 7") {
		t.Errorf("mixed teacher list rendered wrong: %q", first)
	}
}
