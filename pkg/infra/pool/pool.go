// Package pool wraps ants worker pools with panic recovery and stats.
// Ingestion fan-out runs on these pools so a panicking unit task is logged
// and counted instead of taking the process down.
package pool

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for a worker pool.
type Config struct {
	// Capacity is the maximum number of concurrent goroutines.
	Capacity int

	// ExpiryDuration is how long an idle worker survives.
	ExpiryDuration time.Duration

	// Nonblocking makes Submit return an error when the pool is full
	// instead of waiting.
	Nonblocking bool
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig(capacity int) *Config {
	return &Config{
		Capacity:       capacity,
		ExpiryDuration: 10 * time.Second,
	}
}

// Pool is a bounded worker pool.
type Pool struct {
	inner     *ants.Pool
	submitted atomic.Int64
	panicked  atomic.Int64
}

// New creates a worker pool.
func New(config *Config) (*Pool, error) {
	if config == nil {
		return nil, fmt.Errorf("pool config is nil")
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("pool capacity must be positive, got %d", config.Capacity)
	}

	p := &Pool{}

	inner, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithPanicHandler(func(r any) {
			p.panicked.Add(1)
			logger.Errorw("worker pool task panicked", "panic", fmt.Sprintf("%v", r))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	p.inner = inner
	return p, nil
}

// Submit schedules a task on the pool.
func (p *Pool) Submit(task func()) error {
	if err := p.inner.Submit(task); err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}
	p.submitted.Add(1)
	return nil
}

// Running returns the number of currently running workers.
func (p *Pool) Running() int {
	return p.inner.Running()
}

// Cap returns the pool capacity.
func (p *Pool) Cap() int {
	return p.inner.Cap()
}

// Submitted returns the number of successfully submitted tasks.
func (p *Pool) Submitted() int64 {
	return p.submitted.Load()
}

// Panicked returns the number of tasks that panicked.
func (p *Pool) Panicked() int64 {
	return p.panicked.Load()
}

// Release shuts the pool down.
func (p *Pool) Release() {
	p.inner.Release()
}
