package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrJobExists = errors.New("job already exists")
)

// Repository persists jobs. Put saves job state but leaves the event log and the
// cancellation flag alone; those change only through AppendEvent and RequestCancel.
// Reads return copies.
type Repository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Put(ctx context.Context, job *Job) error
	AppendEvent(ctx context.Context, id string, ev JobEvent) error
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
}

// MemoryRepository is a thread-safe in-memory Repository with TTL eviction.
type MemoryRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return ErrJobExists
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryRepository) Put(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	next := job.Clone()
	next.Events = cur.Events
	next.CancelRequested = cur.CancelRequested
	r.jobs[job.ID] = next
	return nil
}

func (r *MemoryRepository) AppendEvent(ctx context.Context, id string, ev JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Events = append(job.Events, ev)
	return nil
}

func (r *MemoryRepository) RequestCancel(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.CancelRequested = true
	return nil
}

func (r *MemoryRepository) CancelRequested(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	return job.CancelRequested, nil
}

// Cleanup removes finished jobs not updated within the TTL.
func (r *MemoryRepository) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, job := range r.jobs {
		if job.Stage.Terminal() && now.Sub(job.UpdatedAt) > r.ttl {
			delete(r.jobs, id)
		}
	}
}

// Len returns the number of stored jobs.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
