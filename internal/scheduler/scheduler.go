// SPDX-License-Identifier: Apache-2.0

// Package scheduler turns the enabled SyncConfigs in a Repository into
// gocron jobs and enforces spec section 4.F's "at most one active run per
// SyncConfig" rule across both the timer path and on-demand RunNow calls.
//
// Grounded on stratastor-rodent's pkg/zfs/autosnapshots/manager.go for the
// job-definition-per-frequency pattern (DurationJob/DailyJob/WeeklyJob) and
// pkg/disk/probing/scheduler.go for the Start/Stop lifecycle shape.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/model"
)

// EngineFunc runs one reconciliation pass for a single SyncConfig and
// returns once it has sealed its SyncLog. The scheduler does not know how a
// run connects to LDAP or to the upstream provider; cmd/syncd supplies the
// closure that wires a Reconciler for cfg and calls Sync.
type EngineFunc func(ctx context.Context, cfg model.SyncConfig) error

// Repository is the subset of the Repository contract the scheduler reads
// to discover what to schedule.
type Repository interface {
	ListEnabledSyncConfigs(ctx context.Context) ([]model.SyncConfig, error)
}

// Scheduler owns one gocron.Scheduler instance (spec section 9 design note:
// explicitly not a process-wide singleton, so a test or a second cmd/syncd
// instance in the same process can run its own independent scheduler).
type Scheduler struct {
	repo   Repository
	engine EngineFunc
	runner gocron.Scheduler

	mu         sync.Mutex
	activeRuns map[string]bool

	// buildMu serializes buildJobs/Refresh so a config-watcher-triggered
	// Refresh can never interleave with the deferred initial build from Start.
	buildMu sync.Mutex

	startDelay time.Duration
}

// New builds a Scheduler that will call engine for every SyncConfig
// ListEnabledSyncConfigs returns, once Start has built its job set.
func New(repo Repository, engine EngineFunc) (*Scheduler, error) {
	runner, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("could not create scheduler: %w", err)
	}
	return &Scheduler{
		repo:       repo,
		engine:     engine,
		runner:     runner,
		activeRuns: make(map[string]bool),
		startDelay: 5 * time.Second,
	}, nil
}

// Start defers building the job set by startDelay (spec section 4.F's
// startup robustness clause: the repository backing store may still be
// coming up when the process starts), and starts the underlying gocron
// scheduler right away. It returns immediately; job registration happens on
// its own goroutine via time.AfterFunc.
func (s *Scheduler) Start(ctx context.Context) {
	time.AfterFunc(s.startDelay, func() {
		s.buildMu.Lock()
		defer s.buildMu.Unlock()
		if err := s.buildJobs(ctx); err != nil {
			logg.Error("scheduler: could not build job set: %s", err.Error())
		}
	})
	s.runner.Start()
}

// Stop shuts the underlying gocron scheduler down, waiting for in-flight
// jobs to finish their current tick.
func (s *Scheduler) Stop() error {
	return s.runner.Shutdown()
}

// Refresh rebuilds the job set from the current enabled SyncConfigs: it
// clears every timer job currently registered with the underlying gocron
// scheduler and re-registers from a freshly listed enabled set. Spec
// section 4.F requires that a configuration change (a SyncConfig enabled,
// disabled, or re-frequencied) take effect without a process restart;
// cmd/syncd's config watcher calls this whenever the on-disk config
// changes. A run already in flight is unaffected -- activeRuns is left
// untouched, so Refresh never interrupts a reconciliation mid-run.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	jobs := s.runner.Jobs()
	for _, job := range jobs {
		if err := s.runner.RemoveJob(job.ID()); err != nil {
			logg.Error("scheduler: could not remove job %s during refresh: %s", job.ID(), err.Error())
		}
	}
	logg.Info("scheduler: cleared %d job(s), rebuilding schedule", len(jobs))
	return s.buildJobs(ctx)
}

func (s *Scheduler) buildJobs(ctx context.Context) error {
	cfgs, err := s.repo.ListEnabledSyncConfigs(ctx)
	if err != nil {
		return fmt.Errorf("could not list enabled sync configs: %w", err)
	}

	registered := 0
	for _, cfg := range cfgs {
		if cfg.Frequency == model.FrequencyManual {
			continue // manual configs are only ever triggered via RunNow
		}
		def, err := jobDefinitionFor(cfg.Frequency)
		if err != nil {
			logg.Error("scheduler: sync config %s (%s): %s", cfg.ID, cfg.Name, err.Error())
			continue
		}
		cfg := cfg
		_, err = s.runner.NewJob(
			def,
			gocron.NewTask(func() { s.runTimerTriggered(ctx, cfg) }),
			gocron.WithName(cfg.ID),
			gocron.WithSingletonMode(gocron.LimitModeSkip),
		)
		if err != nil {
			logg.Error("scheduler: could not register job for sync config %s: %s", cfg.ID, err.Error())
			continue
		}
		registered++
	}
	logg.Info("scheduler: registered %d job(s) out of %d enabled sync config(s)", registered, len(cfgs))
	return nil
}

// jobDefinitionFor maps a SyncFrequency to the gocron job definition spec
// section 4.F names: hourly runs on a fixed duration, daily and weekly runs
// both fire at 01:00 local time (weekly on Monday).
func jobDefinitionFor(freq model.SyncFrequency) (gocron.JobDefinition, error) {
	switch freq {
	case model.FrequencyHourly:
		return gocron.DurationJob(time.Hour), nil
	case model.FrequencyDaily:
		return gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(1, 0, 0))), nil
	case model.FrequencyWeekly:
		return gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(1, 0, 0))), nil
	default:
		return nil, fmt.Errorf("frequency %q has no job definition", freq)
	}
}

// runTimerTriggered is the task body gocron invokes on schedule. gocron's
// own WithSingletonMode(LimitModeSkip) already prevents two ticks of the
// same job overlapping, but it does not know about RunNow, so this also
// goes through the shared activeRuns gate.
func (s *Scheduler) runTimerTriggered(ctx context.Context, cfg model.SyncConfig) {
	if !s.tryAcquire(cfg.ID) {
		logg.Info("scheduler: skipping timer-triggered run for %s, a run is already active", cfg.ID)
		return
	}
	defer s.release(cfg.ID)
	s.runOnce(ctx, cfg)
}

// RunNow triggers an immediate out-of-band run for cfg, as used by
// cmd/syncd's `sync <config-id>` subcommand. If a run for this SyncConfig
// (timer-triggered or a prior RunNow) is already active, the call is
// dropped and logged, matching scenario S6.
func (s *Scheduler) RunNow(ctx context.Context, cfg model.SyncConfig) error {
	if !s.tryAcquire(cfg.ID) {
		logg.Info("scheduler: on-demand run for %s dropped, a run is already active", cfg.ID)
		return fmt.Errorf("a run for sync config %s is already active", cfg.ID)
	}
	defer s.release(cfg.ID)
	s.runOnce(ctx, cfg)
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context, cfg model.SyncConfig) {
	logg.Info("scheduler: starting run for sync config %s (%s)", cfg.ID, cfg.Name)
	if err := s.engine(ctx, cfg); err != nil {
		logg.Error("scheduler: run for sync config %s failed: %s", cfg.ID, err.Error())
	}
}

func (s *Scheduler) tryAcquire(configID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeRuns[configID] {
		return false
	}
	s.activeRuns[configID] = true
	return true
}

func (s *Scheduler) release(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeRuns, configID)
}
