package gate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/skaldlabs/gate/audit"
)

// ProviderStatus is the tracked health of one provider. Entries are
// written only via RegisterProviderStatus and read by admission checks;
// no background health-checking is performed.
type ProviderStatus struct {
	// Available reports whether the provider can accept work
	Available bool

	// LatencyMS is the last observed latency (optional)
	LatencyMS *float64

	// CapacityScore is a relative capacity estimate (optional)
	CapacityScore *float64
}

// SecurityGateway classifies task sensitivity, enforces the active
// routing policy over providers, tracks provider health, and emits
// audited allow/veto decisions. Admission is a one-time gate: jobs are
// checked here before enqueueing and never re-evaluated downstream.
type SecurityGateway struct {
	policy RoutingPolicy
	sink   audit.Sink

	mu       sync.RWMutex
	statuses map[string]ProviderStatus
	lastVeto *VetoReason
}

// GatewayOption configures a SecurityGateway.
type GatewayOption func(*SecurityGateway)

// WithAuditSink routes routing decisions and veto events to the sink.
func WithAuditSink(sink audit.Sink) GatewayOption {
	return func(g *SecurityGateway) {
		if sink != nil {
			g.sink = sink
		}
	}
}

// NewSecurityGateway creates a gateway enforcing the given policy.
// Without WithAuditSink, decisions are discarded through a no-op sink.
func NewSecurityGateway(policy RoutingPolicy, opts ...GatewayOption) *SecurityGateway {
	g := &SecurityGateway{
		policy:   policy,
		sink:     audit.NopSink{},
		statuses: make(map[string]ProviderStatus),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the active routing policy.
func (g *SecurityGateway) Policy() RoutingPolicy {
	return g.policy
}

// Task types containing these keywords classify as INTERNAL.
var internalTaskKeywords = []string{"plan", "state", "governance"}

// ClassifyTask maps task flags to a sensitivity tier. The heuristic is
// deterministic: security-flagged tasks are CRITICAL when also
// sensitive-data-flagged, else SENSITIVE; any private or sensitive data
// flag is SENSITIVE; planning/state/governance task types and validator
// agents are INTERNAL; everything else is PUBLIC.
func (g *SecurityGateway) ClassifyTask(agentName, taskType string, hasPrivateData, hasSensitiveData, isSecurityTask bool) Sensitivity {
	if isSecurityTask {
		if hasSensitiveData {
			return SensitivityCritical
		}
		return SensitivitySensitive
	}
	if hasPrivateData || hasSensitiveData {
		return SensitivitySensitive
	}

	lowered := strings.ToLower(taskType)
	for _, kw := range internalTaskKeywords {
		if strings.Contains(lowered, kw) {
			return SensitivityInternal
		}
	}
	if strings.Contains(strings.ToLower(agentName), "validator") {
		return SensitivityInternal
	}
	return SensitivityPublic
}

// AllowedProviders returns the active policy's ordered provider
// preference list for the sensitivity tier.
func (g *SecurityGateway) AllowedProviders(s Sensitivity) []string {
	return g.policy.AllowedProviders(s)
}

// RecommendedProvider returns the first policy-allowed provider whose
// tracked status is available; untracked providers are treated as
// available. The auto-pick (or its absence) is audited.
func (g *SecurityGateway) RecommendedProvider(s Sensitivity) (string, bool) {
	for _, name := range g.policy.AllowedProviders(s) {
		g.mu.RLock()
		status, tracked := g.statuses[name]
		g.mu.RUnlock()

		if !tracked || status.Available {
			g.sink.LogRoutingDecision(audit.Decision{
				TaskType:    "auto_select",
				Provider:    name,
				Sensitivity: s.String(),
				Policy:      g.policy.Name(),
				Allowed:     true,
				Reason:      "recommended provider",
				Time:        time.Now(),
			})
			return name, true
		}
	}

	g.sink.LogRoutingDecision(audit.Decision{
		TaskType:    "auto_select",
		Sensitivity: s.String(),
		Policy:      g.policy.Name(),
		Allowed:     false,
		Reason:      "no available provider",
		Time:        time.Now(),
	})
	return "", false
}

// EnforcePolicy classifies the task and checks the provider against the
// active policy and its tracked status. A denial records a
// CRITICAL-severity veto (retrievable via LastVeto, routed to the audit
// sink) and returns false. Success clears any prior veto, audits an
// allowed decision, and returns true. Denials are results, not errors.
func (g *SecurityGateway) EnforcePolicy(agentName, taskType, provider string, hasPrivateData, hasSensitiveData, isSecurityTask bool) bool {
	sensitivity := g.ClassifyTask(agentName, taskType, hasPrivateData, hasSensitiveData, isSecurityTask)

	allowed := false
	for _, name := range g.policy.AllowedProviders(sensitivity) {
		if name == provider {
			allowed = true
			break
		}
	}
	if !allowed {
		g.recordVeto(agentName, taskType, provider, sensitivity,
			fmt.Sprintf("provider %q is not permitted for %s tasks", provider, sensitivity))
		return false
	}

	g.mu.RLock()
	status, tracked := g.statuses[provider]
	g.mu.RUnlock()
	if tracked && !status.Available {
		g.recordVeto(agentName, taskType, provider, sensitivity,
			fmt.Sprintf("provider %q is currently unavailable", provider))
		return false
	}

	g.mu.Lock()
	g.lastVeto = nil
	g.mu.Unlock()

	g.sink.LogRoutingDecision(audit.Decision{
		Agent:       agentName,
		TaskType:    taskType,
		Provider:    provider,
		Sensitivity: sensitivity.String(),
		Policy:      g.policy.Name(),
		Allowed:     true,
		Reason:      "policy check passed",
		Time:        time.Now(),
	})
	return true
}

func (g *SecurityGateway) recordVeto(agentName, taskType, provider string, s Sensitivity, reason string) {
	veto := VetoReason{
		Reason:         reason,
		PolicyViolated: g.policy.Name(),
		Severity:       SeverityCritical,
		Details: map[string]any{
			"agent":       agentName,
			"task_type":   taskType,
			"provider":    provider,
			"sensitivity": s.String(),
		},
		CreatedAt: time.Now(),
	}

	g.mu.Lock()
	g.lastVeto = &veto
	g.mu.Unlock()

	g.sink.LogVetoEvent(audit.Veto{
		Reason:         veto.Reason,
		PolicyViolated: veto.PolicyViolated,
		Severity:       veto.Severity,
		Details:        veto.Details,
		Time:           veto.CreatedAt,
	}, "enforce_policy")
}

// RegisterProviderStatus replaces the tracked status for a provider. No
// history is retained.
func (g *SecurityGateway) RegisterProviderStatus(name string, status ProviderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[name] = status
}

// ProviderStatusFor returns the tracked status for a provider, if any.
func (g *SecurityGateway) ProviderStatusFor(name string) (ProviderStatus, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	status, ok := g.statuses[name]
	return status, ok
}

// LastVeto returns a copy of the most recent veto, if one is pending.
// The stored veto is never exposed directly, so callers cannot mutate it.
func (g *SecurityGateway) LastVeto() (VetoReason, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.lastVeto == nil {
		return VetoReason{}, false
	}
	return copyVeto(*g.lastVeto), true
}

// VetoForNode returns the most recent veto annotated with the graph node
// asking about it.
func (g *SecurityGateway) VetoForNode(node string) (VetoReason, bool) {
	v, ok := g.LastVeto()
	if !ok {
		return VetoReason{}, false
	}
	return AnnotateVeto(v, "graph node "+node), true
}

// VetoForArtifact returns the most recent veto annotated with the
// artifact asking about it.
func (g *SecurityGateway) VetoForArtifact(artifactID string) (VetoReason, bool) {
	v, ok := g.LastVeto()
	if !ok {
		return VetoReason{}, false
	}
	return AnnotateVeto(v, "artifact "+artifactID), true
}
