// Package provider contains execution backend clients for the dispatch
// gateway.
//
// Clients are synchronous and never raise for ordinary failures: a failed
// call comes back as a Response with Success=false and Err set, so one
// job's failure can be recorded without disturbing its batch siblings.
package provider

import "context"

// Request is one generation request dispatched for a job.
type Request struct {
	// Prompt is the fully assembled prompt text
	Prompt string

	// AgentName identifies the requesting agent
	AgentName string

	// Metadata is the merged profile/override metadata for the call
	Metadata map[string]any
}

// Response is the outcome of one generation request.
type Response struct {
	// Provider is the backend name that served the request
	Provider string

	// Model is the model used
	Model string

	// Content is the generated text
	Content string

	// Success reports whether generation succeeded
	Success bool

	// Err describes the failure when Success is false
	Err string

	// Metadata echoes the request metadata for traceability
	Metadata map[string]any
}

// Client is an execution backend. Implementations honor the context for
// cancellation and enforce their own call timeouts; the gateway does not
// impose one.
type Client interface {
	Generate(ctx context.Context, req Request) Response
}
