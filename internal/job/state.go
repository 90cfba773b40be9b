// Package job holds the shared state of the current search job: a mutually
// exclusive cell that moves through Init, Running and Completed.
package job

import (
	"sync"

	"github.com/kmertens/keyforge/internal/board"
)

// Phase enumerates the lifecycle of a job.
type Phase uint8

const (
	Init Phase = iota
	Running
	Completed
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case Running:
		return "in_progress"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Result is one ranked layout from a finished batch.
type Result struct {
	Score  float64       `json:"score"`
	Layout *board.Layout `json:"layout"`
}

// Progress reports how far a running batch has come.
type Progress struct {
	BatchSize int `json:"batch_size"`
	Completed int `json:"completed"`
}

// Snapshot is a copy of the cell taken under the lock, safe to serialize
// without holding it.
type Snapshot struct {
	Phase    Phase
	Progress Progress
	Results  []Result
}

// State is the job cell. The zero value is an Init cell ready for use.
// Contention is negligible: a batch writes it once per finished group plus
// once to publish.
type State struct {
	mu        sync.Mutex
	phase     Phase
	batchSize int
	completed int
	results   []Result
}

// Begin moves the cell to Running for a batch of the given size. If a batch
// is already running it refuses and returns the current progress; otherwise
// it returns any results left over from a previous completed job.
func (s *State) Begin(batchSize int) (prior []Result, progress Progress, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Running {
		return nil, Progress{s.batchSize, s.completed}, false
	}
	prior = s.results
	s.phase = Running
	s.batchSize = batchSize
	s.completed = 0
	s.results = nil
	return prior, Progress{batchSize, 0}, true
}

// AddCompleted records one more finished group.
func (s *State) AddCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Running {
		s.completed++
	}
}

// Finish publishes the batch results and moves the cell to Completed.
func (s *State) Finish(results []Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Completed
	s.results = results
}

// Fail returns the cell to Init so a later batch can start. Results from a
// previous completed job are already gone by this point; the failed batch
// publishes nothing.
func (s *State) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Init
	s.completed = 0
}

// Snapshot returns a consistent copy of the cell.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]Result, len(s.results))
	copy(results, s.results)
	return Snapshot{
		Phase:    s.phase,
		Progress: Progress{s.batchSize, s.completed},
		Results:  results,
	}
}
