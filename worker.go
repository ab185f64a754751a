package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skaldlabs/gate/provider"
)

// Worker defaults.
const (
	DefaultMaxDequeue   = 8
	DefaultPollInterval = 250 * time.Millisecond
	DefaultStopTimeout  = 5 * time.Second
)

// defaultProfileTemplate backs agents that never registered a prompt
// profile. A missing profile is recoverable, not an error.
const defaultProfileTemplate = "You are a specialist agent in a multi-agent platform. " +
	"Complete the task described below accurately and concisely.\n\n{task_context}"

// Worker drains the queue and executes admitted jobs in cache-friendly
// batches against a provider client. One dedicated background goroutine
// runs the poll/execute loop; all other methods may be called
// concurrently from arbitrary goroutines.
type Worker struct {
	queue     Queue
	scheduler *BatchScheduler
	prompts   *PromptAssemblyEngine
	client    provider.Client

	maxDequeue   int
	pollInterval time.Duration
	stopTimeout  time.Duration
	onBatch      func(Batch)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	resultsMu sync.Mutex
	results   []JobResult
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithMaxDequeue sets how many jobs one loop iteration may dequeue.
func WithMaxDequeue(n int) WorkerOption {
	return func(w *Worker) {
		w.maxDequeue = n
	}
}

// WithPollInterval sets how long the loop sleeps after an empty poll.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.pollInterval = d
	}
}

// WithStopTimeout bounds how long Stop waits for the loop to exit.
func WithStopTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.stopTimeout = d
	}
}

// WithBatchProcessor replaces the default batch callback (a log line with
// batch id, profile hash, job count, and token total).
func WithBatchProcessor(fn func(Batch)) WorkerOption {
	return func(w *Worker) {
		w.onBatch = fn
	}
}

// NewWorker creates a stopped worker. Configuration errors (nil
// collaborators, non-positive dequeue size or poll interval) surface
// here, never silently defaulted away.
func NewWorker(queue Queue, scheduler *BatchScheduler, prompts *PromptAssemblyEngine, client provider.Client, opts ...WorkerOption) (*Worker, error) {
	if queue == nil || scheduler == nil || prompts == nil || client == nil {
		return nil, fmt.Errorf("new worker: queue, scheduler, prompt engine, and provider client are required")
	}

	w := &Worker{
		queue:        queue,
		scheduler:    scheduler,
		prompts:      prompts,
		client:       client,
		maxDequeue:   DefaultMaxDequeue,
		pollInterval: DefaultPollInterval,
		stopTimeout:  DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.maxDequeue <= 0 {
		return nil, ErrInvalidMaxDequeue
	}
	if w.pollInterval <= 0 {
		return nil, ErrInvalidPollInterval
	}
	return w, nil
}

// Start launches the background loop. Calling Start on a running worker
// is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.loop(w.stopCh, w.doneCh)
}

// Stop signals the loop to exit and waits up to the stop timeout for it.
// Cancellation is cooperative: an in-flight batch is allowed to finish,
// and a stuck provider call is abandoned after the timeout rather than
// blocking the caller indefinitely.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(w.stopTimeout):
		slog.Warn("gateway worker did not stop within timeout", "timeout", w.stopTimeout)
	}
}

// Running reports whether the background loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if n := w.RunOnce(); n == 0 {
			// Idle: wait out the poll interval, but leave promptly on stop.
			select {
			case <-stopCh:
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// RunOnce performs one loop iteration: dequeue up to the configured
// limit, build batches, execute every member job, fire the batch
// callback, and buffer results. It returns the number of jobs dequeued;
// zero means the queue was empty and no provider calls were made.
func (w *Worker) RunOnce() int {
	jobs, err := w.queue.Dequeue(w.maxDequeue)
	if err != nil {
		slog.Error("gateway worker dequeue failed", "error", err)
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	for _, batch := range w.scheduler.BuildBatches(jobs) {
		results := make([]JobResult, 0, len(batch.Jobs))
		for _, job := range batch.Jobs {
			results = append(results, w.executeJob(job))
		}
		w.processBatch(batch)

		w.resultsMu.Lock()
		w.results = append(w.results, results...)
		w.resultsMu.Unlock()
	}
	return len(jobs)
}

// DrainResults atomically returns and clears the buffered results.
// Results may arrive in any order; each carries its own job ID.
func (w *Worker) DrainResults() []JobResult {
	w.resultsMu.Lock()
	defer w.resultsMu.Unlock()
	out := w.results
	w.results = nil
	return out
}

func (w *Worker) processBatch(batch Batch) {
	if w.onBatch != nil {
		w.onBatch(batch)
		return
	}
	slog.Info("batch processed",
		"batch_id", batch.ID,
		"profile_hash", batch.ProfileHash,
		"jobs", len(batch.Jobs),
		"total_tokens", batch.TotalTokens)
}

// executeJob runs one job against the provider client and always returns
// a result. Failures land in JobResult.Error and never abort the batch
// or sibling jobs.
func (w *Worker) executeJob(job Job) JobResult {
	meta := mapField(job.Payload, "metadata")
	agent := w.agentNameFor(job, meta)

	if !w.prompts.HasProfile(agent) {
		// Self-healing: execution proceeds on a stock profile.
		w.prompts.RegisterProfile(agent, defaultProfileTemplate, map[string]any{
			"auto_registered": true,
		})
		slog.Debug("auto-registered default prompt profile", "agent", agent)
	}

	assembled, err := w.prompts.AssemblePrompt(agent, buildTaskContext(job, meta), meta)
	if err != nil {
		jobErr := &JobError{JobID: job.ID, AgentName: agent, Err: err}
		return JobResult{
			JobID:      job.ID,
			ArtifactID: job.ArtifactID,
			Success:    false,
			Error:      jobErr.Error(),
			Metadata:   map[string]any{"payload": job.Payload},
		}
	}

	resp := w.client.Generate(context.Background(), provider.Request{
		Prompt:    assembled.Prompt,
		AgentName: agent,
		Metadata:  assembled.Metadata,
	})

	return JobResult{
		JobID:      job.ID,
		ArtifactID: job.ArtifactID,
		Provider:   resp.Provider,
		Model:      resp.Model,
		Content:    resp.Content,
		Success:    resp.Success,
		Error:      resp.Err,
		Metadata: map[string]any{
			"profile_hash": assembled.ProfileHash,
			"agent_name":   agent,
			"payload":      job.Payload,
		},
	}
}

// agentNameFor derives the executing agent's name from the job, falling
// back to the skill ID and finally to a stock name.
func (w *Worker) agentNameFor(job Job, meta map[string]any) string {
	if name := stringField(meta, "agent_name"); name != "" {
		return name
	}
	if name := stringField(job.Payload, "agent_name"); name != "" {
		return name
	}
	if job.SkillID != "" {
		return job.SkillID
	}
	return "dispatch-agent"
}
