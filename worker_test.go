package gate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skaldlabs/gate/provider"
)

// mockClient records every request and can be told to fail for specific
// prompts.
type mockClient struct {
	mu       sync.Mutex
	requests []provider.Request
	failWhen func(req provider.Request) bool
}

func (m *mockClient) Generate(_ context.Context, req provider.Request) provider.Response {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.failWhen != nil && m.failWhen(req) {
		return provider.Response{
			Provider: "mock",
			Model:    "mock-model",
			Success:  false,
			Err:      "injected failure",
		}
	}
	return provider.Response{
		Provider: "mock",
		Model:    "mock-model",
		Content:  "ok: " + req.AgentName,
		Success:  true,
	}
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func newTestWorker(t *testing.T, q Queue, client provider.Client, opts ...WorkerOption) *Worker {
	t.Helper()
	scheduler, err := NewBatchScheduler(1000)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWorker(q, scheduler, NewPromptAssemblyEngine(), client, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestNewWorkerValidation(t *testing.T) {
	q := NewMemoryQueue()
	scheduler, _ := NewBatchScheduler(100)
	prompts := NewPromptAssemblyEngine()
	client := &mockClient{}

	if _, err := NewWorker(nil, scheduler, prompts, client); err == nil {
		t.Error("nil queue should be rejected")
	}
	if _, err := NewWorker(q, scheduler, prompts, nil); err == nil {
		t.Error("nil client should be rejected")
	}
	if _, err := NewWorker(q, scheduler, prompts, client, WithMaxDequeue(0)); err != ErrInvalidMaxDequeue {
		t.Errorf("expected ErrInvalidMaxDequeue, got %v", err)
	}
	if _, err := NewWorker(q, scheduler, prompts, client, WithPollInterval(0)); err != ErrInvalidPollInterval {
		t.Errorf("expected ErrInvalidPollInterval, got %v", err)
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	client := &mockClient{}
	w := newTestWorker(t, NewMemoryQueue(), client)

	if n := w.RunOnce(); n != 0 {
		t.Errorf("RunOnce on empty queue = %d, want 0", n)
	}
	if client.callCount() != 0 {
		t.Errorf("empty poll made %d provider calls", client.callCount())
	}
	if results := w.DrainResults(); len(results) != 0 {
		t.Errorf("empty poll produced %d results", len(results))
	}
}

func TestRunOnceExecutesJobs(t *testing.T) {
	q := NewMemoryQueue()
	client := &mockClient{}
	w := newTestWorker(t, q, client)

	j1 := NewJob(JobSpec{SkillID: "summarize", ArtifactID: "a1", EstimatedTokens: 10})
	j2 := NewJob(JobSpec{SkillID: "summarize", ArtifactID: "a2", EstimatedTokens: 10})
	q.Enqueue(j1)
	q.Enqueue(j2)

	if n := w.RunOnce(); n != 2 {
		t.Fatalf("RunOnce = %d, want 2", n)
	}
	if q.Size() != 0 {
		t.Errorf("queue should be drained, size %d", q.Size())
	}

	results := w.DrainResults()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	byJob := make(map[string]JobResult)
	for _, r := range results {
		byJob[r.JobID] = r
	}
	for _, j := range []Job{j1, j2} {
		r, ok := byJob[j.ID]
		if !ok {
			t.Fatalf("no result for job %s", j.ID)
		}
		if !r.Success {
			t.Errorf("job %s failed: %s", j.ID, r.Error)
		}
		if r.ArtifactID != j.ArtifactID {
			t.Errorf("result artifact %s, want %s", r.ArtifactID, j.ArtifactID)
		}
		if r.Metadata["agent_name"] != "summarize" {
			t.Errorf("agent name = %v, want skill fallback", r.Metadata["agent_name"])
		}
	}

	// Results are consumed on drain.
	if again := w.DrainResults(); len(again) != 0 {
		t.Errorf("second drain returned %d results", len(again))
	}
}

func TestRunOnceFailureIsolation(t *testing.T) {
	q := NewMemoryQueue()
	client := &mockClient{
		failWhen: func(req provider.Request) bool {
			return req.AgentName == "bad-agent"
		},
	}
	w := newTestWorker(t, q, client)

	good := NewJob(JobSpec{SkillID: "good-agent", EstimatedTokens: 5})
	bad := NewJob(JobSpec{SkillID: "bad-agent", EstimatedTokens: 5})
	q.Enqueue(good)
	q.Enqueue(bad)

	w.RunOnce()

	results := w.DrainResults()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		switch r.JobID {
		case good.ID:
			if !r.Success {
				t.Errorf("good job failed: %s", r.Error)
			}
		case bad.ID:
			if r.Success {
				t.Error("bad job should have failed")
			}
			if r.Error != "injected failure" {
				t.Errorf("unexpected error: %q", r.Error)
			}
		}
	}
}

func TestWorkerAutoRegistersProfile(t *testing.T) {
	q := NewMemoryQueue()
	client := &mockClient{}
	scheduler, _ := NewBatchScheduler(1000)
	prompts := NewPromptAssemblyEngine()
	w, err := NewWorker(q, scheduler, prompts, client)
	if err != nil {
		t.Fatal(err)
	}

	q.Enqueue(NewJob(JobSpec{SkillID: "fresh-agent", Payload: map[string]any{
		"intent": "do a thing",
	}}))
	w.RunOnce()

	if !prompts.HasProfile("fresh-agent") {
		t.Fatal("worker should auto-register a profile for unknown agents")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.requests) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(client.requests))
	}
	prompt := client.requests[0].Prompt
	if !strings.Contains(prompt, "Intent: do a thing") {
		t.Errorf("task context missing from prompt: %q", prompt)
	}
	if strings.Contains(prompt, TaskContextSlot) {
		t.Error("slot left unsubstituted in assembled prompt")
	}
}

func TestWorkerAgentNamePrecedence(t *testing.T) {
	q := NewMemoryQueue()
	client := &mockClient{}
	w := newTestWorker(t, q, client)

	q.Enqueue(NewJob(JobSpec{
		SkillID: "skill-name",
		Payload: map[string]any{
			"agent_name": "payload-agent",
			"metadata":   map[string]any{"agent_name": "meta-agent"},
		},
	}))
	q.Enqueue(NewJob(JobSpec{
		SkillID: "skill-name",
		Payload: map[string]any{"agent_name": "payload-agent"},
	}))
	q.Enqueue(NewJob(JobSpec{}))

	w.RunOnce()

	results := w.DrainResults()
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Metadata["agent_name"].(string)] = true
	}
	for _, want := range []string{"meta-agent", "payload-agent", "dispatch-agent"} {
		if !names[want] {
			t.Errorf("missing agent name %q in results (got %v)", want, names)
		}
	}
}

func TestWorkerBatchCallback(t *testing.T) {
	q := NewMemoryQueue()
	client := &mockClient{}

	var mu sync.Mutex
	var batches []Batch
	w := newTestWorker(t, q, client, WithBatchProcessor(func(b Batch) {
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
	}))

	for i := 0; i < 3; i++ {
		q.Enqueue(NewJob(JobSpec{ProfileHash: "same", EstimatedTokens: 10}))
	}
	w.RunOnce()

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if batches[0].TotalTokens != 30 || len(batches[0].Jobs) != 3 {
		t.Errorf("batch = %d jobs / %d tokens, want 3 / 30",
			len(batches[0].Jobs), batches[0].TotalTokens)
	}
}

func TestWorkerStartStop(t *testing.T) {
	q := NewMemoryQueue()
	client := &mockClient{}
	w := newTestWorker(t, q, client,
		WithPollInterval(10*time.Millisecond),
		WithStopTimeout(2*time.Second))

	w.Start()
	if !w.Running() {
		t.Fatal("worker should report running after Start")
	}
	w.Start() // idempotent

	q.Enqueue(NewJob(JobSpec{SkillID: "bg-job"}))

	deadline := time.Now().Add(2 * time.Second)
	for client.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.callCount() == 0 {
		t.Fatal("background loop never executed the job")
	}

	w.Stop()
	if w.Running() {
		t.Error("worker should report stopped after Stop")
	}
	w.Stop() // idempotent

	if results := w.DrainResults(); len(results) != 1 {
		t.Errorf("expected 1 buffered result, got %d", len(results))
	}
}
