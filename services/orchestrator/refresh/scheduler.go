// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package refresh runs the background jobs that keep derived read models
// current: the state-crops manifest and the FAQ video lexical index.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one periodically executed maintenance task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// SchedulerConfig holds settings for the background refresh scheduler.
//
// # Fields
//
//   - Interval: how often jobs run. Default: 1 hour.
//   - JobTimeout: per-job deadline within a cycle. Default: 5 minutes.
type SchedulerConfig struct {
	Interval   time.Duration
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns production defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   1 * time.Hour,
		JobTimeout: 5 * time.Minute,
	}
}

// Scheduler runs registered jobs at a fixed interval.
//
// # Description
//
// Uses the ticker plus done channel pattern for graceful shutdown. A job
// failure is logged and does not stop the scheduler or the other jobs in
// the same cycle. One cycle runs immediately on Start so the service
// never serves stale derived data longer than one startup.
//
// # Thread Safety
//
// All public methods are safe for concurrent use.
type Scheduler struct {
	jobs    []Job
	config  SchedulerConfig
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

func NewScheduler(config SchedulerConfig, jobs ...Job) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultSchedulerConfig().JobTimeout
	}
	return &Scheduler{
		jobs:   jobs,
		config: config,
		done:   make(chan struct{}),
	}
}

// Start begins the background refresh loop. Returns an error if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	slog.Info("Refresh scheduler starting",
		"interval", s.config.Interval.String(),
		"jobs", len(s.jobs),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	slog.Info("Refresh scheduler stopping")
	close(s.done)
	s.running = false
}

// RunNow executes one cycle immediately, outside the schedule. Returns
// a job error if any job failed; the other jobs still run to completion.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runCycle(ctx); err != nil {
		slog.Error("Initial refresh cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Refresh scheduler stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Refresh scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				slog.Error("Refresh cycle failed", "error", err)
			}
		}
	}
}

// runCycle runs every job concurrently. The jobs touch disjoint state
// (manifest file, lexical index) so a cycle takes as long as its slowest
// job, not the sum. A bare errgroup is used rather than WithContext so
// one failing job never cancels its siblings.
func (s *Scheduler) runCycle(ctx context.Context) error {
	var g errgroup.Group
	for _, job := range s.jobs {
		g.Go(func() error {
			jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
			defer cancel()

			start := time.Now()
			if err := job.Run(jobCtx); err != nil {
				slog.Warn("Refresh job failed", "job", job.Name(), "error", err)
				return fmt.Errorf("job %s: %w", job.Name(), err)
			}
			slog.Debug("Refresh job completed",
				"job", job.Name(), "duration_ms", time.Since(start).Milliseconds())
			return nil
		})
	}
	return g.Wait()
}
