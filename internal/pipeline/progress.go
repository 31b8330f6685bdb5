package pipeline

import (
	"sync"
	"time"
)

// ProgressSnapshot is an immutable view of pipeline progress.
type ProgressSnapshot struct {
	Submitted      int       `json:"submitted"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	Pending        int       `json:"pending"`
	LastError      string    `json:"last_error,omitempty"`
	LastActivity   time.Time `json:"last_activity"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
}

// Progress provides thread-safe tracking of processed passes.
type Progress struct {
	mu sync.RWMutex

	submitted    int
	completed    int
	failed       int
	lastError    string
	lastActivity time.Time
	startTime    time.Time
}

// NewProgress creates an empty tracker.
func NewProgress() *Progress {
	return &Progress{startTime: time.Now()}
}

// Submit records n newly submitted passes.
func (p *Progress) Submit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted += n
	p.lastActivity = time.Now()
}

// Done records a successful pass.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	p.lastActivity = time.Now()
}

// Fail records a failed pass.
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
	p.lastError = err.Error()
	p.lastActivity = time.Now()
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pending := p.submitted - p.completed - p.failed
	if pending < 0 {
		pending = 0
	}
	return ProgressSnapshot{
		Submitted:      p.submitted,
		Completed:      p.completed,
		Failed:         p.failed,
		Pending:        pending,
		LastError:      p.lastError,
		LastActivity:   p.lastActivity,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
	}
}
