package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/printworks/platform/internal/domain/jobs"
)

// JobRepository is an in-memory implementation of jobs.Repository.
type JobRepository struct {
	mu         sync.RWMutex
	jobs       map[string]jobs.Job
	order      map[string]int
	seq        int
	notes      map[string][]jobs.Note
	expenses   map[string][]jobs.Expense
	usages     map[string][]jobs.MaterialUsage
	timeframes map[string][]jobs.TimeframeChange
}

// NewJobRepository returns an initialized in-memory repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs:       make(map[string]jobs.Job),
		order:      make(map[string]int),
		notes:      make(map[string][]jobs.Note),
		expenses:   make(map[string][]jobs.Expense),
		usages:     make(map[string][]jobs.MaterialUsage),
		timeframes: make(map[string][]jobs.TimeframeChange),
	}
}

func (r *JobRepository) Create(_ context.Context, job jobs.Job, changes jobs.Changes) (jobs.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	job.ID = newID()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.seq++
	r.order[job.ID] = r.seq
	r.jobs[job.ID] = job
	r.appendChanges(job.ID, changes, now)
	return job, nil
}

func (r *JobRepository) FindByID(_ context.Context, id string) (jobs.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return job, nil
}

// Update runs fn on a copy of the job and commits only when it succeeds.
func (r *JobRepository) Update(_ context.Context, id string, fn jobs.UpdateFunc) (jobs.Job, jobs.Changes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.Changes{}, jobs.ErrNotFound
	}
	changes, err := fn(&job)
	if err != nil {
		return jobs.Job{}, jobs.Changes{}, err
	}

	now := time.Now().UTC()
	job.ID = id
	job.UpdatedAt = now
	r.jobs[id] = job
	stored := r.appendChanges(id, changes, now)
	return job, stored, nil
}

func (r *JobRepository) appendChanges(jobID string, c jobs.Changes, now time.Time) jobs.Changes {
	for i := range c.Notes {
		c.Notes[i].ID, c.Notes[i].JobID, c.Notes[i].CreatedAt = newID(), jobID, now
	}
	for i := range c.Expenses {
		c.Expenses[i].ID, c.Expenses[i].JobID, c.Expenses[i].CreatedAt = newID(), jobID, now
	}
	for i := range c.MaterialUsages {
		c.MaterialUsages[i].ID, c.MaterialUsages[i].JobID, c.MaterialUsages[i].CreatedAt = newID(), jobID, now
	}
	for i := range c.TimeframeChanges {
		c.TimeframeChanges[i].ID, c.TimeframeChanges[i].JobID, c.TimeframeChanges[i].ChangedAt = newID(), jobID, now
	}
	r.notes[jobID] = append(r.notes[jobID], c.Notes...)
	r.expenses[jobID] = append(r.expenses[jobID], c.Expenses...)
	r.usages[jobID] = append(r.usages[jobID], c.MaterialUsages...)
	r.timeframes[jobID] = append(r.timeframes[jobID], c.TimeframeChanges...)
	return c
}

// List returns matching jobs newest first.
func (r *JobRepository) List(_ context.Context, filter jobs.Filter, offset, limit int) ([]jobs.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]jobs.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if filter.ClientID != "" && j.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Type != "" && j.Type != filter.Type {
			continue
		}
		list = append(list, j)
	}
	sort.Slice(list, func(i, k int) bool {
		return r.order[list[i].ID] > r.order[list[k].ID]
	})
	return paginate(list, offset, limit), nil
}

func (r *JobRepository) Notes(_ context.Context, jobID string) ([]jobs.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]jobs.Note{}, r.notes[jobID]...), nil
}

func (r *JobRepository) Expenses(_ context.Context, jobID string) ([]jobs.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]jobs.Expense{}, r.expenses[jobID]...), nil
}

func (r *JobRepository) MaterialUsages(_ context.Context, jobID string) ([]jobs.MaterialUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]jobs.MaterialUsage{}, r.usages[jobID]...), nil
}

func (r *JobRepository) TimeframeChanges(_ context.Context, jobID string) ([]jobs.TimeframeChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]jobs.TimeframeChange{}, r.timeframes[jobID]...), nil
}
