// Package gate is the dispatch gateway for multi-agent AI platforms.
//
// Gate decides whether a unit of work may be sent to a given execution
// provider, how admitted work is grouped for efficient execution, and who
// actually runs it. It provides:
//
//   - A security gateway that classifies task sensitivity and enforces
//     pluggable routing policies with audited veto semantics
//   - A thread-safe FIFO queue for admitted jobs
//   - A cache-aware batch scheduler that groups jobs by prompt profile
//     under a token budget
//   - A prompt assembly engine with deterministic profile hashing
//   - A background worker that drains the queue, executes each job against
//     a provider client, and collects per-job results
//
// # Quick Start
//
// Assemble the gateway explicitly; there are no hidden singletons:
//
//	policy, err := gate.ResolvePolicy("local_first", gate.DefaultProviderSet())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gw := gate.NewSecurityGateway(policy, gate.WithAuditSink(audit.NewSlogSink(nil)))
//	queue := gate.NewMemoryQueue()
//	scheduler, err := gate.NewBatchScheduler(8000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prompts := gate.NewPromptAssemblyEngine()
//	worker, err := gate.NewWorker(queue, scheduler, prompts, provider.NewOllamaClient())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Admission is a one-time gate at enqueue time.
//	if gw.EnforcePolicy("composer", "codegen", "ollama", false, false, false) {
//	    queue.Enqueue(gate.NewJob(gate.JobSpec{
//	        SkillID:         "composer",
//	        ProviderHint:    "ollama",
//	        EstimatedTokens: 900,
//	    }))
//	}
//
//	worker.Start()
//	defer worker.Stop()
//
// # Routing Policies
//
// Three built-in policies order provider preference by sensitivity tier:
//
//   - default_local_first: local providers always; cloud appended for
//     PUBLIC and INTERNAL work
//   - enterprise_residency: cloud only for PUBLIC work
//   - compliance_local_only: local providers regardless of sensitivity
//
// Denied admissions are never exceptions. EnforcePolicy returns false and
// records a VetoReason that is routed to the audit sink and retrievable
// through LastVeto and the annotated accessors.
//
// # Architecture
//
// The main components are:
//
//   - SecurityGateway: sensitivity classification, policy enforcement,
//     provider health tracking, veto bookkeeping
//   - Queue / MemoryQueue: FIFO holding admitted jobs
//   - BatchScheduler: token-bounded batches keyed by profile hash
//   - PromptAssemblyEngine: per-agent templates plus a stable content hash
//   - Worker: poll, batch, assemble, execute, aggregate
//
// Collaborators live in their own packages: provider (execution backends)
// and audit (routing decision and veto sinks).
//
// # Thread Safety
//
// All exported types are safe for concurrent use. The queue guards its
// backing slice with a mutex; jobs and batches are immutable values once
// constructed and need no locking.
package gate
