package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/service"
)

// ErrAlreadyStarted indicates Start was called on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// DeviceCollector runs one polling cycle over the registered devices.
type DeviceCollector interface {
	SyncActiveDevices(ctx context.Context) []service.SyncReport
}

// Scheduler drives periodic device polling. Sub-minute intervals run a
// plain ticker loop; longer intervals register an @every job on a cron
// runner. A single warm-up cycle fires shortly after startup so a restart
// does not wait a full interval to drain the terminals.
type Scheduler struct {
	collector DeviceCollector
	interval  time.Duration
	warmup    time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	runner  *cron.Cron
	wg      sync.WaitGroup
}

// New builds a scheduler around the given collector.
func New(collector DeviceCollector, interval, warmup time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		collector: collector,
		interval:  interval,
		warmup:    warmup,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches the periodic cycle. The context bounds every cycle; Stop
// or cancelling the context shuts the scheduler down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	if s.warmup > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-time.After(s.warmup):
				s.runCycle(runCtx)
			case <-runCtx.Done():
			}
		}()
	}

	if s.interval < time.Minute {
		s.wg.Add(1)
		go s.tickerLoop(runCtx)
	} else {
		runner := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&s.logger))))
		if _, err := runner.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
			s.runCycle(runCtx)
		}); err != nil {
			cancel()
			return fmt.Errorf("register sync job: %w", err)
		}
		runner.Start()
		s.runner = runner
	}

	s.started = true
	s.cancel = cancel
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("warmup", s.warmup).
		Msg("sync scheduler started")

	return nil
}

// Stop cancels the cycle context and waits for any in-flight cycle to
// finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	runner := s.runner
	s.runner = nil
	s.mu.Unlock()

	cancel()
	if runner != nil {
		<-runner.Stop().Done()
	}
	s.wg.Wait()

	s.logger.Info().Msg("sync scheduler stopped")
}

// tickerLoop runs cycles synchronously, so a cycle that outlasts the
// interval swallows the missed ticks instead of piling up.
func (s *Scheduler) tickerLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	reports := s.collector.SyncActiveDevices(ctx)

	succeeded := 0
	for _, report := range reports {
		if report.Success {
			succeeded++
		}
	}

	s.logger.Info().
		Int("devices", len(reports)).
		Int("succeeded", succeeded).
		Dur("elapsed", time.Since(start)).
		Msg("sync cycle finished")
}
