package schedule

import (
	"context"
	"sync"
	"time"
)

// Job is a unit of periodic work
type Job func(ctx context.Context)

// Scheduler runs jobs on a fixed period
type Scheduler interface {
	Every(interval time.Duration, job Job)
}

// Ticker runs each registered job on its own goroutine driven by a time.Ticker
type Ticker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTicker creates a Ticker whose jobs stop when ctx is done or Stop is called
func NewTicker(ctx context.Context) *Ticker {
	ctx, cancel := context.WithCancel(ctx)
	return &Ticker{ctx: ctx, cancel: cancel}
}

// Every starts job on a goroutine that fires once per interval
func (t *Ticker) Every(interval time.Duration, job Job) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.ctx.Done():
				return
			case <-ticker.C:
				job(t.ctx)
			}
		}
	}()
}

// Stop cancels all jobs and waits for in-flight runs to return
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
}

// Manual records jobs and runs them only when Tick is called
type Manual struct {
	mu   sync.Mutex
	jobs []Job
}

// NewManual creates an empty Manual scheduler
func NewManual() *Manual {
	return &Manual{}
}

// Every registers job; the interval is ignored
func (m *Manual) Every(_ time.Duration, job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

// Tick runs every registered job once, in registration order
func (m *Manual) Tick(ctx context.Context) {
	m.mu.Lock()
	jobs := append([]Job(nil), m.jobs...)
	m.mu.Unlock()

	for _, job := range jobs {
		job(ctx)
	}
}
