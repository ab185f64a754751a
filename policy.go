package gate

import (
	"fmt"
	"strings"
)

// Sensitivity is a task's confidentiality tier. Higher tiers restrict
// which providers are policy-eligible.
type Sensitivity int

const (
	// SensitivityPublic work may run anywhere the policy allows
	SensitivityPublic Sensitivity = iota

	// SensitivityInternal work touches planning, state, or governance
	SensitivityInternal

	// SensitivitySensitive work involves private or sensitive data
	SensitivitySensitive

	// SensitivityCritical work is security-flagged and data-sensitive
	SensitivityCritical
)

// String returns the tier name.
func (s Sensitivity) String() string {
	switch s {
	case SensitivityPublic:
		return "public"
	case SensitivityInternal:
		return "internal"
	case SensitivitySensitive:
		return "sensitive"
	case SensitivityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Canonical policy names. ResolvePolicy also accepts the documented
// aliases.
const (
	PolicyDefault    = "default_local_first"
	PolicyEnterprise = "enterprise_residency"
	PolicyCompliance = "compliance_local_only"
)

// RoutingPolicy decides which providers may serve work at each
// sensitivity tier. AllowedProviders returns an ordered preference list.
type RoutingPolicy interface {
	Name() string
	AllowedProviders(s Sensitivity) []string
}

// ProviderSet names the providers the built-in policies choose from.
type ProviderSet struct {
	// Local providers run on-premises and are trusted with any tier
	Local []string

	// Cloud is the hosted provider gated by sensitivity
	Cloud string
}

// DefaultProviderSet returns the stock provider names.
func DefaultProviderSet() ProviderSet {
	return ProviderSet{
		Local: []string{"ollama", "llamacpp"},
		Cloud: "cloud",
	}
}

// DefaultPolicy allows local providers for everything and appends the
// cloud provider for non-sensitive (PUBLIC, INTERNAL) work.
type DefaultPolicy struct {
	Providers ProviderSet
}

// Name returns the canonical policy name.
func (p DefaultPolicy) Name() string { return PolicyDefault }

// AllowedProviders returns the ordered provider preference list.
func (p DefaultPolicy) AllowedProviders(s Sensitivity) []string {
	allowed := append([]string(nil), p.Providers.Local...)
	if s < SensitivitySensitive {
		allowed = append(allowed, p.Providers.Cloud)
	}
	return allowed
}

// EnterprisePolicy keeps everything local except PUBLIC work, which may
// also use the cloud provider.
type EnterprisePolicy struct {
	Providers ProviderSet
}

// Name returns the canonical policy name.
func (p EnterprisePolicy) Name() string { return PolicyEnterprise }

// AllowedProviders returns the ordered provider preference list.
func (p EnterprisePolicy) AllowedProviders(s Sensitivity) []string {
	allowed := append([]string(nil), p.Providers.Local...)
	if s == SensitivityPublic {
		allowed = append(allowed, p.Providers.Cloud)
	}
	return allowed
}

// CompliancePolicy is local-only regardless of sensitivity.
type CompliancePolicy struct {
	Providers ProviderSet
}

// Name returns the canonical policy name.
func (p CompliancePolicy) Name() string { return PolicyCompliance }

// AllowedProviders returns the local providers for every tier.
func (p CompliancePolicy) AllowedProviders(Sensitivity) []string {
	return append([]string(nil), p.Providers.Local...)
}

// ResolvePolicy maps a canonical policy name or documented alias to a
// policy over the given providers. Unknown names fail fast with the list
// of valid names; this happens at configuration time, not per job.
func ResolvePolicy(name string, providers ProviderSet) (RoutingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyDefault, "default", "local_first":
		return DefaultPolicy{Providers: providers}, nil
	case PolicyEnterprise, "enterprise":
		return EnterprisePolicy{Providers: providers}, nil
	case PolicyCompliance, "compliance", "local_only":
		return CompliancePolicy{Providers: providers}, nil
	default:
		return nil, fmt.Errorf("%w %q (valid: %s, %s, %s)",
			ErrUnknownPolicy, name, PolicyDefault, PolicyEnterprise, PolicyCompliance)
	}
}
