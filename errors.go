package gate

import (
	"errors"
	"fmt"
)

// Standard errors returned by the gateway. Configuration errors surface
// synchronously at call time; admission denials and execution failures are
// reported through VetoReason and JobResult instead.
var (
	// ErrProfileNotFound is returned when assembling a prompt for an
	// unregistered agent name.
	ErrProfileNotFound = errors.New("prompt profile not found")

	// ErrInvalidDequeueLimit is returned by Dequeue for a non-positive limit.
	ErrInvalidDequeueLimit = errors.New("dequeue limit must be positive")

	// ErrInvalidBatchTokens is returned when a scheduler is constructed
	// with a non-positive token budget.
	ErrInvalidBatchTokens = errors.New("max batch tokens must be positive")

	// ErrInvalidMaxDequeue is returned when a worker is configured with a
	// non-positive dequeue size.
	ErrInvalidMaxDequeue = errors.New("max dequeue must be positive")

	// ErrInvalidPollInterval is returned when a worker is configured with a
	// non-positive poll interval.
	ErrInvalidPollInterval = errors.New("poll interval must be positive")

	// ErrUnknownPolicy is returned for a policy name that is neither a
	// canonical name nor a known alias.
	ErrUnknownPolicy = errors.New("unknown routing policy")

	// ErrScheduleNotFound is returned when removing a schedule that was
	// never added.
	ErrScheduleNotFound = errors.New("schedule not found")
)

// JobError wraps an error with job context.
type JobError struct {
	JobID     string
	AgentName string
	Err       error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("job %s (%s): %v", e.JobID, e.AgentName, e.Err)
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}
