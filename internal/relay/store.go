package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultJobDeadline is how long a job may stay non-terminal before the
	// sweep reclaims it as timed out.
	DefaultJobDeadline = 10 * time.Minute
	// DefaultEvictGrace is how long a terminal job remains visible before
	// eviction frees its correlation id.
	DefaultEvictGrace = 2 * time.Minute
)

// Store is the in-memory registry of in-flight jobs keyed by correlation id.
// All mutating operations are atomic with respect to concurrent callers; it
// is the only state shared across jobs.
type Store struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	deadline time.Duration
	grace    time.Duration
	now      func() time.Time
}

// NewStore creates a Store with the given orphan deadline and terminal-state
// eviction grace period. Non-positive values fall back to the defaults.
func NewStore(deadline, grace time.Duration) *Store {
	if deadline <= 0 {
		deadline = DefaultJobDeadline
	}
	if grace <= 0 {
		grace = DefaultEvictGrace
	}
	return &Store{
		jobs:     make(map[string]*Job),
		deadline: deadline,
		grace:    grace,
		now:      time.Now,
	}
}

// Create registers a new job for the given origin chat and attachment and
// returns a snapshot of it. The correlation id is unique among live jobs.
func (s *Store) Create(originChat int64, att Attachment) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	for {
		if _, exists := s.jobs[id]; !exists {
			break
		}
		id = uuid.NewString()
	}
	now := s.now()
	job := &Job{
		CorrelationID: id,
		OriginChat:    originChat,
		Attachment:    att,
		State:         StateCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.jobs[id] = job
	return *job
}

// Get returns a snapshot of the job, if it is still live.
func (s *Store) Get(correlationID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[correlationID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetStatus records the handle of the status message shown to the user.
func (s *Store) SetStatus(correlationID string, handle StatusHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[correlationID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = handle
	job.UpdatedAt = s.now()
	return nil
}

// BindBackendRef records the forwarded copy's location inside the backend
// inbox. The reference is set at most once; a second bind reports
// ErrAlreadyBound so replayed envelopes never dispatch a second worker.
func (s *Store) BindBackendRef(correlationID string, ref MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[correlationID]
	if !ok {
		return ErrJobNotFound
	}
	if job.BackendRef != nil {
		return ErrAlreadyBound
	}
	bound := ref
	job.BackendRef = &bound
	job.UpdatedAt = s.now()
	return nil
}

// Transition moves the job to the next state and returns the updated snapshot.
func (s *Store) Transition(correlationID string, next State) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[correlationID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if !CanTransition(job.State, next) {
		return *job, ErrInvalidTransition
	}
	job.State = next
	job.UpdatedAt = s.now()
	return *job, nil
}

// Fail moves the job to Failed with the given reason. Failing an already
// terminal or missing job is a no-op; the second return value reports whether
// the job was failed by this call.
func (s *Store) Fail(correlationID, reason string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[correlationID]
	if !ok || job.State.Terminal() {
		return Job{}, false
	}
	job.State = StateFailed
	job.FailReason = reason
	job.UpdatedAt = s.now()
	return *job, true
}

// RecordAttempt increments the job's attempt counter and returns the new count.
func (s *Store) RecordAttempt(correlationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[correlationID]
	if !ok {
		return 0
	}
	job.Attempts++
	job.UpdatedAt = s.now()
	return job.Attempts
}

// Evict removes the job, freeing its correlation id for reuse.
func (s *Store) Evict(correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, correlationID)
}

// Active returns the number of live non-terminal jobs.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if !job.State.Terminal() {
			count++
		}
	}
	return count
}

// Snapshot returns copies of every live job, in no particular order.
func (s *Store) Snapshot() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Sweep reclaims stale entries. Jobs still waiting to be resolved (no worker
// owns them yet) that saw no progress within the deadline are marked Failed
// (timeout), evicted, and returned so the caller can report them upstream.
// Jobs a worker has claimed (Fetching onward) are left alone; a slow transfer
// is bounded by the transport timeouts and always reaches a terminal state.
// Terminal jobs past the grace period are evicted silently.
func (s *Store) Sweep(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var timedOut []Job
	for id, job := range s.jobs {
		if job.State.Terminal() {
			if now.Sub(job.UpdatedAt) >= s.grace {
				delete(s.jobs, id)
			}
			continue
		}
		if stateRank[job.State] >= stateRank[StateFetching] {
			continue
		}
		if now.Sub(job.UpdatedAt) >= s.deadline {
			job.State = StateFailed
			job.FailReason = "timed out"
			job.UpdatedAt = now
			timedOut = append(timedOut, *job)
			delete(s.jobs, id)
		}
	}
	return timedOut
}
