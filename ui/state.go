package ui

import (
	"sync"
	"time"

	"github.com/franksops/s3xfer/engine"
)

// maxRecent bounds the list of recently finished jobs shown in the view.
const maxRecent = 50

// UIState is the progress of one round, fed by the worker pool's observer.
// All methods are safe for concurrent use.
type UIState struct {
	mu sync.Mutex

	Title      string
	TotalFiles int64
	TotalBytes int64
	Workers    int
	Started    time.Time

	CompletedFiles int64
	CompletedBytes int64
	FailedFiles    int64
	SkippedFiles   int64

	recent []FinishedJob
	done   bool
}

// FinishedJob is one line of the recent-jobs list.
type FinishedJob struct {
	Path   string
	Bytes  int64
	Status engine.JobStatus
}

// NewUIState starts tracking a round of totalFiles jobs.
func NewUIState(title string, totalFiles int, totalBytes int64, workers int) *UIState {
	return &UIState{
		Title:      title,
		TotalFiles: int64(totalFiles),
		TotalBytes: totalBytes,
		Workers:    workers,
		Started:    time.Now(),
	}
}

// Observe records a finished job. It matches the engine.WithObserver signature.
func (s *UIState) Observe(res engine.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch res.Status {
	case engine.StatusDone:
		s.CompletedFiles++
		s.CompletedBytes += res.Bytes
	case engine.StatusResumed:
		s.CompletedFiles++
		s.CompletedBytes += res.Job.Size
	case engine.StatusFailed:
		s.FailedFiles++
	case engine.StatusSkipped:
		s.SkippedFiles++
	}

	s.recent = append(s.recent, FinishedJob{Path: res.Job.Subject(), Bytes: res.Bytes, Status: res.Status})
	if len(s.recent) > maxRecent {
		s.recent = s.recent[len(s.recent)-maxRecent:]
	}
}

// Finish marks the round as over.
func (s *UIState) Finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

// Snapshot is a consistent copy of the state for rendering.
type Snapshot struct {
	Title          string
	TotalFiles     int64
	TotalBytes     int64
	Workers        int
	CompletedFiles int64
	CompletedBytes int64
	FailedFiles    int64
	SkippedFiles   int64
	Elapsed        time.Duration
	Recent         []FinishedJob
	Done           bool
}

// Snapshot copies the state under the lock.
func (s *UIState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Title:          s.Title,
		TotalFiles:     s.TotalFiles,
		TotalBytes:     s.TotalBytes,
		Workers:        s.Workers,
		CompletedFiles: s.CompletedFiles,
		CompletedBytes: s.CompletedBytes,
		FailedFiles:    s.FailedFiles,
		SkippedFiles:   s.SkippedFiles,
		Elapsed:        time.Since(s.Started),
		Recent:         append([]FinishedJob(nil), s.recent...),
		Done:           s.done,
	}
}

// Percent is the fraction of work finished, by bytes when the total size is
// known and by files otherwise.
func (s Snapshot) Percent() float64 {
	if s.TotalBytes > 0 {
		return clamp(float64(s.CompletedBytes) / float64(s.TotalBytes))
	}
	if s.TotalFiles > 0 {
		return clamp(float64(s.CompletedFiles+s.FailedFiles+s.SkippedFiles) / float64(s.TotalFiles))
	}
	return 0
}

// ThroughputBPms is the average rate in bytes per millisecond.
func (s Snapshot) ThroughputBPms() float64 {
	ms := float64(s.Elapsed) / float64(time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return float64(s.CompletedBytes) / ms
}

func clamp(f float64) float64 {
	if f > 1 {
		return 1
	}
	return f
}
