// Package worker runs background maintenance for the verification store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepFunc removes expired records and reports how many were deleted.
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper runs a SweepFunc on a cron schedule. Overlapping runs are skipped.
type Sweeper struct {
	cron    *cron.Cron
	sweep   SweepFunc
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewSweeper parses spec ("@every 5m", "*/10 * * * *"). A spec of "off" or ""
// returns nil, which Start and Stop accept.
func NewSweeper(spec string, sweep SweepFunc) (*Sweeper, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "off") {
		return nil, nil
	}
	s := &Sweeper{
		cron:    cron.New(),
		sweep:   sweep,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	slog.Info("expiry sweeper started")
}

// Stop waits for an in-flight sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	slog.Info("expiry sweeper stopped")
}

func (s *Sweeper) run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("previous sweep still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.sweep(ctx)
	if err != nil {
		slog.Error("expiry sweep failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("expired verification records swept", "deleted", n)
	}
}
