package gate

import (
	"github.com/google/uuid"
)

// Batch groups jobs that share a prompt profile so the provider can reuse
// its prefix cache across them. Batches are ephemeral: created and
// consumed within one scheduling pass, never persisted.
type Batch struct {
	// ID uniquely identifies the batch, generated at scheduling time
	ID string

	// ProfileHash is shared by every member job
	ProfileHash string

	// Jobs in insertion order
	Jobs []Job

	// TotalTokens is the sum of member token estimates
	TotalTokens int
}

// BatchScheduler packs jobs into token-bounded batches keyed by profile
// hash. Jobs with identical hashes are batched adjacently so any prompt
// prefix or state cache on the provider side gets maximum reuse.
type BatchScheduler struct {
	maxBatchTokens int
}

// NewBatchScheduler creates a scheduler with the given token budget per
// batch. A non-positive budget is a configuration error.
func NewBatchScheduler(maxBatchTokens int) (*BatchScheduler, error) {
	if maxBatchTokens <= 0 {
		return nil, ErrInvalidBatchTokens
	}
	return &BatchScheduler{maxBatchTokens: maxBatchTokens}, nil
}

// MaxBatchTokens returns the configured per-batch token budget.
func (s *BatchScheduler) MaxBatchTokens() int {
	return s.maxBatchTokens
}

// BuildBatches partitions jobs by profile hash (first-seen order, relative
// job order preserved within each group) and greedily packs each group
// into batches under the token budget. A batch is closed only when it is
// non-empty and the next job would push it over budget, so a single job
// larger than the budget still lands alone in its own batch: jobs are
// never dropped or split. Batches from different groups are independent
// and carry no ordering relative to each other.
func (s *BatchScheduler) BuildBatches(jobs []Job) []Batch {
	groups := make(map[string][]Job)
	var order []string
	for _, job := range jobs {
		if _, seen := groups[job.ProfileHash]; !seen {
			order = append(order, job.ProfileHash)
		}
		groups[job.ProfileHash] = append(groups[job.ProfileHash], job)
	}

	var batches []Batch
	for _, hash := range order {
		var current []Job
		total := 0
		for _, job := range groups[hash] {
			if len(current) > 0 && total+job.EstimatedTokens > s.maxBatchTokens {
				batches = append(batches, newBatch(hash, current, total))
				current = nil
				total = 0
			}
			current = append(current, job)
			total += job.EstimatedTokens
		}
		if len(current) > 0 {
			batches = append(batches, newBatch(hash, current, total))
		}
	}
	return batches
}

func newBatch(hash string, jobs []Job, total int) Batch {
	return Batch{
		ID:          uuid.New().String(),
		ProfileHash: hash,
		Jobs:        jobs,
		TotalTokens: total,
	}
}
