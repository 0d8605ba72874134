// Package scheduler drives the game's periodic work: the score tick that
// probes every team's services, and the autosave tick.
//
// A score tick never holds the write lock while probes run. It clones the
// config under a read hold, runs the inject cycle and the whole probe
// fan-out against the clone, and only then takes a short write hold to
// merge the clone back with SmartCombine. Admin mutations made during the
// fan-out win on structure; the tick wins on score advancement.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/metrics"
	"github.com/rangehq/rangeboard/internal/probe"
)

// Default tick intervals.
const (
	DefaultScoreInterval = 10 * time.Second
	DefaultSaveInterval  = 10 * time.Minute
	defaultWorkers       = 16
)

// Prober runs one health check; satisfied by *probe.Runner.
type Prober interface {
	Check(ctx context.Context, command string, env []string) (probe.Result, error)
}

// Saver persists autosave snapshots; satisfied by *save.Manager.
type Saver interface {
	Autosave(cfg *game.Config) error
}

// Scheduler owns the two periodic loops.
type Scheduler struct {
	store  *game.Store
	prober Prober
	saver  Saver

	// ScoreInterval and SaveInterval default to 10 s and 10 min.
	ScoreInterval time.Duration
	SaveInterval  time.Duration
	// Workers bounds the probe fan-out.
	Workers int
}

// New creates a Scheduler with default intervals and worker count.
func New(store *game.Store, prober Prober, saver Saver) *Scheduler {
	return &Scheduler{
		store:         store,
		prober:        prober,
		saver:         saver,
		ScoreInterval: DefaultScoreInterval,
		SaveInterval:  DefaultSaveInterval,
		Workers:       defaultWorkers,
	}
}

// Run starts both loops and blocks until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.saveLoop(ctx)
	s.scoreLoop(ctx)
}

func (s *Scheduler) scoreLoop(ctx context.Context) {
	ticker := time.NewTicker(s.ScoreInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debug().Msg("game tick")
			s.ScoreTick(ctx)
			log.Debug().Msg("game tick complete")
		}
	}
}

func (s *Scheduler) saveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.SaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.AutosaveTick()
		}
	}
}

// ScoreTick runs one full scoring cycle: snapshot, inject cycle, probe
// fan-out, result fold, merge. No-op while the game is stopped.
func (s *Scheduler) ScoreTick(ctx context.Context) {
	snap := s.store.Snapshot()
	if !snap.IsActive() {
		return
	}
	started := time.Now()

	// Side effects of injects that ended before this tick apply to the
	// snapshot first, so a deleted service is not probed again.
	snap.InjectTick()

	for _, res := range s.fanOut(ctx, snap) {
		snap.ApplyResult(res.team, res.service, res.up)
	}

	if err := s.store.Update(func(truth *game.Config) error {
		// Absorb injects that ended while probes ran, then merge the
		// snapshot's scores and completions.
		truth.InjectTick()
		truth.SmartCombine(snap)
		return nil
	}); err != nil {
		log.Error().Err(err).Msg("score tick merge failed")
	}
	metrics.ScoreTickDuration.Observe(time.Since(started).Seconds())
}

// AutosaveTick writes the current rotation slot under a read hold.
func (s *Scheduler) AutosaveTick() {
	log.Debug().Msg("autosaving")
	var err error
	s.store.View(func(cfg *game.Config) {
		err = s.saver.Autosave(cfg)
	})
	if err != nil {
		metrics.AutosavesTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("failed to autosave")
		return
	}
	metrics.AutosavesTotal.WithLabelValues("ok").Inc()
}

type probeJob struct {
	team    string
	service string
	command string
	env     []string
}

type probeResult struct {
	team    string
	service string
	up      bool
}

// fanOut probes every (team, service) pair through a bounded worker pool
// and returns all results. Jobs are independent; no ordering is promised.
func (s *Scheduler) fanOut(ctx context.Context, snap *game.Config) []probeResult {
	var jobs []probeJob
	for _, team := range snap.SortedTeams() {
		env := team.EnvStrings()
		for _, svc := range snap.Services {
			jobs = append(jobs, probeJob{
				team:    team.Name,
				service: svc.Name,
				command: svc.Command,
				env:     env,
			})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan probeJob)
	resultCh := make(chan probeResult, len(jobs))
	done := make(chan struct{})
	for range workers {
		go func() {
			for job := range jobCh {
				resultCh <- s.runProbe(ctx, job)
			}
			done <- struct{}{}
		}()
	}
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	for range workers {
		<-done
	}
	close(resultCh)

	results := make([]probeResult, 0, len(jobs))
	for res := range resultCh {
		results = append(results, res)
	}
	return results
}

func (s *Scheduler) runProbe(ctx context.Context, job probeJob) probeResult {
	out, err := s.prober.Check(ctx, job.command, job.env)
	switch {
	case err != nil:
		metrics.ProbesTotal.WithLabelValues(metrics.ResultError).Inc()
		log.Debug().Err(err).Str("team", job.team).Str("service", job.service).
			Msg("probe failed to spawn")
	case !out.Up && out.Stderr == "timeout":
		metrics.ProbesTotal.WithLabelValues(metrics.ResultTimeout).Inc()
	case out.Up:
		metrics.ProbesTotal.WithLabelValues(metrics.ResultUp).Inc()
	default:
		metrics.ProbesTotal.WithLabelValues(metrics.ResultDown).Inc()
	}
	return probeResult{team: job.team, service: job.service, up: err == nil && out.Up}
}
