package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultSweepInterval paces the background expiry sweep.
const defaultSweepInterval = time.Minute

// Sweeper drops expired entries from a store on a fixed interval. Call
// Start once after the store opens and Stop on shutdown; Stop blocks
// until the loop has exited and is safe to call more than once.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	removed, err := s.store.Sweep(context.Background(), time.Now())
	if err != nil {
		s.logger.Warn("idempotency sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Debug("swept expired idempotency entries", "removed", removed)
	}
}
