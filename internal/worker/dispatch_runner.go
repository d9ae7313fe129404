package worker

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/ignite/mailspool/internal/dispatch"
	"github.com/ignite/mailspool/internal/pkg/distlock"
)

// Dispatcher runs one dispatch batch. Implemented by dispatch.Scheduler.
type Dispatcher interface {
	Run(ctx context.Context) (dispatch.RunStats, error)
}

// DispatchRunner triggers the scheduler on a fixed interval while holding
// the cluster-wide dispatch lock. Two runner replicas can share one
// database; whichever grabs the lock does that tick's work and the other
// skips it.
type DispatchRunner struct {
	scheduler Dispatcher
	lock      distlock.DistLock
	interval  time.Duration
	lockTTL   time.Duration

	// Stats
	runs      int64
	lockMiss  int64
	runErrors int64
}

// NewDispatchRunner creates a runner. lockTTL is the lock's expiry; a run
// that outlives half of it gets the lock extended in the background.
func NewDispatchRunner(scheduler Dispatcher, lock distlock.DistLock, interval, lockTTL time.Duration) *DispatchRunner {
	return &DispatchRunner{scheduler: scheduler, lock: lock, interval: interval, lockTTL: lockTTL}
}

// Start runs the dispatch loop until ctx is cancelled. The first tick fires
// immediately.
func (r *DispatchRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("[DispatchRunner] stopping")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *DispatchRunner) tick(ctx context.Context) {
	acquired, err := r.lock.Acquire(ctx)
	if err != nil {
		log.Printf("[DispatchRunner] lock acquire failed: %v", err)
		atomic.AddInt64(&r.runErrors, 1)
		return
	}
	if !acquired {
		// Another instance is dispatching this tick.
		atomic.AddInt64(&r.lockMiss, 1)
		return
	}
	defer func() {
		if err := r.lock.Release(ctx); err != nil {
			log.Printf("[DispatchRunner] lock release failed: %v", err)
		}
	}()

	// Keep the lock alive while the batch runs; a slow batch must not let
	// the TTL lapse and a second instance start dispatching.
	kctx, stopKeepalive := context.WithCancel(ctx)
	go r.keepalive(kctx)
	defer stopKeepalive()

	if _, err := r.scheduler.Run(ctx); err != nil {
		log.Printf("[DispatchRunner] dispatch run failed: %v", err)
		atomic.AddInt64(&r.runErrors, 1)
		return
	}
	atomic.AddInt64(&r.runs, 1)
}

func (r *DispatchRunner) keepalive(ctx context.Context) {
	if r.lockTTL <= 0 {
		return
	}
	ticker := time.NewTicker(r.lockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.lock.Extend(ctx, r.lockTTL); err != nil {
				log.Printf("[DispatchRunner] lock extend failed: %v", err)
			}
		}
	}
}

// Stats returns run counters for health reporting.
func (r *DispatchRunner) Stats() (runs, lockMisses, errors int64) {
	return atomic.LoadInt64(&r.runs), atomic.LoadInt64(&r.lockMiss), atomic.LoadInt64(&r.runErrors)
}
