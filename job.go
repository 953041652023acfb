package url2pdf

import (
	"sync"
	"time"
)

// State is the lifecycle position of a Job.
type State int

// Job states. Queued → Running → one terminal state.
const (
	StateQueued State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCanceled
)

var stateNames = map[State]string{
	StateQueued:    "queued",
	StateRunning:   "running",
	StateSucceeded: "succeeded",
	StateFailed:    "failed",
	StateTimedOut:  "timed_out",
	StateCanceled:  "canceled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// WorkerSlot is one unit of concurrency capacity.
type WorkerSlot struct {
	Index int
}

// Job tracks one Request through the scheduler.
// The scheduler owns it until it reaches a terminal state.
type Job struct {
	Request *Request

	mu         sync.Mutex
	state      State
	enqueuedAt time.Time
	startedAt  time.Time
	finishedAt time.Time
	slot       int
	outputPath string
}

func newJob(req *Request, now time.Time) *Job {
	return &Job{
		Request:    req,
		state:      StateQueued,
		enqueuedAt: now,
		slot:       -1,
	}
}

// JobSnapshot is a point-in-time copy of a Job's mutable fields.
type JobSnapshot struct {
	ID         string
	State      State
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Slot       int // -1 until the job runs
	OutputPath string
}

// Snapshot returns a consistent copy of the job's state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:         j.Request.ID,
		State:      j.state,
		EnqueuedAt: j.enqueuedAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Slot:       j.slot,
		OutputPath: j.outputPath,
	}
}

// start moves a queued job onto a slot. Returns false if the job is
// no longer queued.
func (j *Job) start(slot WorkerSlot, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateQueued {
		return false
	}
	j.state = StateRunning
	j.startedAt = now
	j.slot = slot.Index
	return true
}

// cancelQueued marks a job that never started as canceled.
func (j *Job) cancelQueued(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateQueued {
		return false
	}
	j.state = StateCanceled
	j.finishedAt = now
	return true
}

func (j *Job) setOutputPath(path string) {
	j.mu.Lock()
	j.outputPath = path
	j.mu.Unlock()
}

// finish records a terminal state. Later calls are ignored.
func (j *Job) finish(state State, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = state
	j.finishedAt = now
	return true
}

// Duration is the running time, or zero if the job never ran.
func (s JobSnapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
