package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Target runs one assessment through the tracker's serialized path.
type Target interface {
	Assess(ctx context.Context) (Decision, error)
}

// ParseInterval accepts a Go duration ("30s") or the "@every <duration>" form.
func ParseInterval(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return DefaultInterval, nil
	}
	expr = strings.TrimSpace(strings.TrimPrefix(expr, "@every "))
	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid assess interval: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("assess interval must be > 0")
	}
	return d, nil
}

// Scheduler ticks at a fixed cadence. Ticks that fire while an assessment
// is still running are dropped by the ticker.
type Scheduler struct {
	target   Target
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	ticks atomic.Int64
	quit  chan struct{}
	done  chan struct{}
}

func NewScheduler(target Target, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{target: target, interval: interval, timeout: interval, logger: logger}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Ticks returns how many assessments were started.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// Start launches the ticker loop. Call Stop to cancel.
func (s *Scheduler) Start() error {
	if s.quit != nil {
		return errors.New("scheduler already started")
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
	return nil
}

func (s *Scheduler) run() {
	defer close(s.done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.ticks.Add(1)
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	d, err := s.target.Assess(ctx)
	if err != nil {
		s.logger.Warn("assessment failed", "error", err)
		return
	}
	s.logger.Debug("assessment", "score", d.Score, "should_remind", d.ShouldRemind)
}

// Stop cancels the ticker and waits for an in-flight assessment.
func (s *Scheduler) Stop() {
	if s.quit == nil {
		return
	}
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	<-s.done
}
