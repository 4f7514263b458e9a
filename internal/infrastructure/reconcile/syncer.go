// Package reconcile runs the unread counter reconciler on an interval.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/cache"
	"workify/services/conversation-api/internal/infrastructure/metrics"
)

const lockName = "conversation-api:reconcile"

// Mutex serializes cycles across instances.
type Mutex interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Options configures the syncer.
type Options struct {
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// Syncer periodically repairs drifted unread counters.
type Syncer struct {
	reconciler conversation.Reconciler
	mutex      Mutex
	opts       Options
	log        zerolog.Logger
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewSyncer creates a syncer. A nil mutex runs every cycle locally.
func NewSyncer(reconciler conversation.Reconciler, mutex Mutex, opts Options, log zerolog.Logger) *Syncer {
	return &Syncer{
		reconciler: reconciler,
		mutex:      mutex,
		opts:       opts,
		log:        log.With().Str("component", "reconcile-syncer").Logger(),
		done:       make(chan struct{}),
	}
}

// Start begins the sync loop in background. Only the first call starts it.
func (s *Syncer) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
		s.log.Info().Dur("interval", s.opts.Interval).Int("batch_size", s.opts.BatchSize).Msg("reconcile syncer started")
	})
}

// Stop waits for the running cycle to finish. Only the first call stops it.
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.log.Info().Msg("reconcile syncer stopped")
	})
}

func (s *Syncer) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single cycle and returns the number of conversations fixed.
func (s *Syncer) RunOnce(ctx context.Context) int {
	fixed := 0
	cycle := func(ctx context.Context) error {
		n, err := s.reconciler.Reconcile(ctx, s.opts.BatchSize)
		fixed = n
		return err
	}

	var err error
	if s.mutex == nil {
		err = cycle(ctx)
	} else {
		err = s.mutex.WithLock(ctx, lockName, s.opts.LockTTL, cycle)
	}

	switch {
	case errors.Is(err, cache.ErrLockHeld):
		metrics.RecordReconcile("skipped", 0)
		s.log.Debug().Msg("another instance is reconciling, skipping cycle")
	case err != nil:
		metrics.RecordReconcile("error", fixed)
		s.log.Error().Err(err).Msg("reconcile cycle failed")
	default:
		metrics.RecordReconcile("ok", fixed)
		if fixed > 0 {
			s.log.Info().Int("fixed", fixed).Msg("reconcile cycle repaired counters")
		}
	}
	return fixed
}
