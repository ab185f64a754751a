// Package audit records gateway routing decisions and veto events.
//
// Sinks are fire-and-forget from the gateway's perspective: logging must
// never block or fail admission. Three implementations are provided: a
// structured-log sink, a bounded in-memory sink for tests and inspection,
// and a SQLite-backed sink for durable audit trails.
package audit

import (
	"log/slog"
	"sync"
	"time"
)

// Decision is one routing decision, allowed or denied.
type Decision struct {
	// Agent is the requesting agent's name
	Agent string

	// TaskType describes the work being routed
	TaskType string

	// Provider is the backend the decision concerns
	Provider string

	// Sensitivity is the classified tier name
	Sensitivity string

	// Policy is the routing policy that decided
	Policy string

	// Allowed reports the outcome
	Allowed bool

	// Reason explains the outcome
	Reason string

	// Time of the decision
	Time time.Time
}

// Veto is a recorded denial event.
type Veto struct {
	// Reason describes why the request was denied
	Reason string

	// PolicyViolated names the denying policy
	PolicyViolated string

	// Severity of the denial
	Severity string

	// Details carries structured context
	Details map[string]any

	// Time of the veto
	Time time.Time
}

// Sink receives routing decisions and veto events. Implementations must
// be safe for concurrent use and must not panic: the gateway does not
// consume return values.
type Sink interface {
	LogRoutingDecision(d Decision)
	LogVetoEvent(v Veto, context string)
}

// NopSink discards everything.
type NopSink struct{}

// LogRoutingDecision discards the decision.
func (NopSink) LogRoutingDecision(Decision) {}

// LogVetoEvent discards the veto.
func (NopSink) LogVetoEvent(Veto, string) {}

// SlogSink writes decisions and vetoes as structured log lines.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink on the given logger, or slog.Default when
// nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// LogRoutingDecision writes one decision line.
func (s *SlogSink) LogRoutingDecision(d Decision) {
	s.logger.Info("routing decision",
		"agent", d.Agent,
		"task_type", d.TaskType,
		"provider", d.Provider,
		"sensitivity", d.Sensitivity,
		"policy", d.Policy,
		"allowed", d.Allowed,
		"reason", d.Reason)
}

// LogVetoEvent writes one veto line.
func (s *SlogSink) LogVetoEvent(v Veto, context string) {
	s.logger.Warn("routing veto",
		"policy", v.PolicyViolated,
		"severity", v.Severity,
		"reason", v.Reason,
		"context", context)
}

// VetoRecord pairs a veto with the context it was reported under.
type VetoRecord struct {
	Veto    Veto
	Context string
}

// MemorySink buffers records in memory, keeping the most recent maxRecords
// of each kind. Useful in tests and for live inspection endpoints.
type MemorySink struct {
	mu         sync.Mutex
	maxRecords int
	decisions  []Decision
	vetoes     []VetoRecord
}

// NewMemorySink creates a sink retaining up to 1000 records of each kind.
func NewMemorySink() *MemorySink {
	return &MemorySink{maxRecords: 1000}
}

// LogRoutingDecision buffers the decision.
func (s *MemorySink) LogRoutingDecision(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	if len(s.decisions) > s.maxRecords {
		s.decisions = s.decisions[len(s.decisions)-s.maxRecords:]
	}
}

// LogVetoEvent buffers the veto.
func (s *MemorySink) LogVetoEvent(v Veto, context string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vetoes = append(s.vetoes, VetoRecord{Veto: v, Context: context})
	if len(s.vetoes) > s.maxRecords {
		s.vetoes = s.vetoes[len(s.vetoes)-s.maxRecords:]
	}
}

// Decisions returns a snapshot of buffered decisions.
func (s *MemorySink) Decisions() []Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Decision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// Vetoes returns a snapshot of buffered veto records.
func (s *MemorySink) Vetoes() []VetoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VetoRecord, len(s.vetoes))
	copy(out, s.vetoes)
	return out
}
