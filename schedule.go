package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Schedule is a recurring admission: on each cron tick the task is
// checked against the security gateway and, if allowed, enqueued.
type Schedule struct {
	// Name uniquely identifies the schedule
	Name string `yaml:"name"`

	// Cron is a standard 5-field cron expression
	Cron string `yaml:"cron"`

	// AgentName and TaskType feed sensitivity classification
	AgentName string `yaml:"agent_name"`
	TaskType  string `yaml:"task_type"`

	// Provider is the requested execution backend
	Provider string `yaml:"provider"`

	// Job is the work enqueued on each allowed tick
	Job JobSpec `yaml:"-"`

	// Classification flags for the task
	HasPrivateData   bool `yaml:"has_private_data"`
	HasSensitiveData bool `yaml:"has_sensitive_data"`
	IsSecurityTask   bool `yaml:"is_security_task"`

	// Enabled schedules run; disabled ones are stored but never fire
	Enabled bool `yaml:"enabled"`
}

// CronDispatcher runs schedules through the security gateway and into
// the queue. Each tick is a fresh admission check, so a policy change or
// a provider going unhealthy takes effect on the next firing.
type CronDispatcher struct {
	gateway *SecurityGateway
	queue   Queue
	cron    *cron.Cron

	mu        sync.Mutex
	schedules map[string]Schedule
	entries   map[string]cron.EntryID
}

// NewCronDispatcher creates a dispatcher feeding the queue, gated by the
// security gateway.
func NewCronDispatcher(gateway *SecurityGateway, queue Queue) *CronDispatcher {
	return &CronDispatcher{
		gateway:   gateway,
		queue:     queue,
		cron:      cron.New(),
		schedules: make(map[string]Schedule),
		entries:   make(map[string]cron.EntryID),
	}
}

// AddSchedule registers or replaces a schedule by name. Disabled
// schedules are stored without a cron entry.
func (d *CronDispatcher) AddSchedule(s Schedule) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.entries[s.Name]; ok {
		d.cron.Remove(id)
		delete(d.entries, s.Name)
	}

	if s.Enabled {
		id, err := d.cron.AddFunc(s.Cron, d.makeFunc(s))
		if err != nil {
			return fmt.Errorf("schedule %q: invalid cron expression %q: %w", s.Name, s.Cron, err)
		}
		d.entries[s.Name] = id
	}

	d.schedules[s.Name] = s
	return nil
}

// RemoveSchedule deletes a schedule by name.
func (d *CronDispatcher) RemoveSchedule(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.schedules[name]; !ok {
		return fmt.Errorf("schedule %q: %w", name, ErrScheduleNotFound)
	}
	if id, ok := d.entries[name]; ok {
		d.cron.Remove(id)
		delete(d.entries, name)
	}
	delete(d.schedules, name)
	return nil
}

// ListSchedules returns the registered schedules.
func (d *CronDispatcher) ListSchedules() []Schedule {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Schedule, 0, len(d.schedules))
	for _, s := range d.schedules {
		out = append(out, s)
	}
	return out
}

// Start runs the cron loop until the context is cancelled.
func (d *CronDispatcher) Start(ctx context.Context) {
	d.cron.Start()
	slog.Info("cron dispatcher started", "schedules", len(d.entries))

	<-ctx.Done()

	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	slog.Info("cron dispatcher stopped")
}

// makeFunc builds the tick function for a schedule. A veto skips the
// tick; the gateway has already audited it.
func (d *CronDispatcher) makeFunc(s Schedule) func() {
	return func() {
		if !d.gateway.EnforcePolicy(s.AgentName, s.TaskType, s.Provider,
			s.HasPrivateData, s.HasSensitiveData, s.IsSecurityTask) {
			if veto, ok := d.gateway.LastVeto(); ok {
				slog.Warn("schedule vetoed",
					"schedule", s.Name,
					"provider", s.Provider,
					"reason", veto.Reason)
			}
			return
		}

		spec := s.Job
		if spec.ProviderHint == "" {
			spec.ProviderHint = s.Provider
		}
		job := NewJob(spec)
		d.queue.Enqueue(job)
		slog.Info("schedule enqueued job",
			"schedule", s.Name,
			"job_id", job.ID,
			"provider", job.ProviderHint)
	}
}
