// Package pipeline sequences the crawl phases: league pages, identity
// derivation, team+player pages, then match pages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/footdata/understat-crawler/internal/batch"
	"github.com/footdata/understat-crawler/internal/crawl"
	"github.com/footdata/understat-crawler/internal/progress"
	"github.com/footdata/understat-crawler/internal/stage"
)

// Stages is the driver surface the pipeline orchestrates.
type Stages interface {
	LeaguePages(ctx context.Context, ids []stage.LeagueSeason) ([]crawl.LeagueResult, error)
	TeamPages(ctx context.Context, ids []crawl.TeamSeason) error
	PlayerPages(ctx context.Context, ids []string) error
	MatchPages(ctx context.Context, ids []string) error
}

// Config carries the run parameters.
type Config struct {
	Leagues   []string
	Seasons   []crawl.Season
	BatchSize int
	RunID     uuid.UUID
}

// Pipeline drives one full crawl. A run is stateless: there is no
// checkpointing, and a crash mid-run means a full restart.
type Pipeline struct {
	stages  Stages
	cfg     Config
	clock   crawl.Clock
	emitter progress.Emitter
	logger  *zap.Logger
}

// New constructs a Pipeline. emitter may be nil.
func New(stages Stages, cfg Config, clock crawl.Clock, emitter progress.Emitter, logger *zap.Logger) (*Pipeline, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	for _, s := range cfg.Seasons {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		stages:  stages,
		cfg:     cfg,
		clock:   clock,
		emitter: emitter,
		logger:  logger,
	}, nil
}

// Run executes the four phases in order. Item failures are collected, not
// fatal: every phase runs to completion over whatever identities it has,
// and the joined error reports everything that went wrong along the way.
func (p *Pipeline) Run(ctx context.Context) error {
	var errs []error

	// Phase 1: the full league x season cross-product in one concurrent
	// wave. This set is small (leagues x seasons), so it is not batched.
	leagueIDs := p.crossProduct()
	p.phaseStart(stage.KindLeague, len(leagueIDs))
	leagueStart := p.clock.Now()
	results, err := p.stages.LeaguePages(ctx, leagueIDs)
	if err != nil {
		errs = append(errs, err)
	}
	p.phaseDone(stage.KindLeague, len(results), p.clock.Now().Sub(leagueStart))

	// Phase 2: single-threaded scan of the league snapshots. All league
	// fetches have joined, so the sets are built without concurrent writers.
	idents, err := crawl.DeriveIdentities(results)
	if err != nil {
		errs = append(errs, err)
	}
	p.logger.Info("derived identity sets",
		zap.Int("teams", len(idents.Teams)),
		zap.Int("players", len(idents.Players)),
		zap.Int("matches", len(idents.Matches)),
	)

	// Phase 3: team and player stages run concurrently with each other,
	// each internally sequential across its own batches. Errors are
	// captured per stage so one stage cannot abort its sibling.
	var teamErr, playerErr error
	var g errgroup.Group
	g.Go(func() error {
		teamErr = runBatched(ctx, p, stage.KindTeam, idents.Teams, p.cfg.BatchSize, p.stages.TeamPages)
		return nil
	})
	g.Go(func() error {
		playerErr = runBatched(ctx, p, stage.KindPlayer, idents.Players, p.cfg.BatchSize, p.stages.PlayerPages)
		return nil
	})
	_ = g.Wait()
	if teamErr != nil {
		errs = append(errs, teamErr)
	}
	if playerErr != nil {
		errs = append(errs, playerErr)
	}

	// Phase 4: match pages, after team+player fully complete. Match pages
	// are lighter, so the batch size doubles.
	if err := runBatched(ctx, p, stage.KindMatch, idents.Matches, 2*p.cfg.BatchSize, p.stages.MatchPages); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// crossProduct enumerates every league/season combination, leagues outermost.
func (p *Pipeline) crossProduct() []stage.LeagueSeason {
	ids := make([]stage.LeagueSeason, 0, len(p.cfg.Leagues)*len(p.cfg.Seasons))
	for _, league := range p.cfg.Leagues {
		for _, season := range p.cfg.Seasons {
			ids = append(ids, stage.LeagueSeason{League: league, Season: season})
		}
	}
	return ids
}

// runBatched drives one phase through the batch runner, emitting progress
// for each completed batch and for the phase as a whole.
func runBatched[T any](
	ctx context.Context,
	p *Pipeline,
	phase string,
	items []T,
	size int,
	fn func(ctx context.Context, chunk []T) error,
) error {
	p.phaseStart(phase, len(items))
	p.logger.Info("phase scheduled",
		zap.String("phase", phase),
		zap.Int("items", len(items)),
		zap.Int("batch_size", size),
		zap.Int("batches", batch.Count(len(items), size)),
	)
	start := p.clock.Now()
	index := 0
	err := batch.Run(ctx, items, size, func(ctx context.Context, chunk []T) error {
		chunkErr := fn(ctx, chunk)
		p.emit(progress.Event{
			Stage: progress.StageBatchDone,
			Phase: phase,
			Batch: index,
			Items: len(chunk),
		})
		index++
		return chunkErr
	})
	p.phaseDone(phase, len(items), p.clock.Now().Sub(start))
	if err != nil {
		return fmt.Errorf("%s phase: %w", phase, err)
	}
	return nil
}

func (p *Pipeline) phaseStart(phase string, items int) {
	p.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: phase, Items: items})
}

func (p *Pipeline) phaseDone(phase string, items int, dur time.Duration) {
	p.emit(progress.Event{Stage: progress.StagePhaseDone, Phase: phase, Items: items, Dur: dur})
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.emitter == nil {
		return
	}
	evt.RunID = p.cfg.RunID
	if evt.TS.IsZero() {
		evt.TS = p.clock.Now()
	}
	p.emitter.Emit(evt)
}
