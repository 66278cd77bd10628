// Package scheduler periodically harvests every saved organization with
// robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
	"github.com/JakeFAU/jobpost-harvester/internal/organization"
	"github.com/JakeFAU/jobpost-harvester/internal/pipeline"
)

// Harvester runs the two pipeline phases.
type Harvester interface {
	RunListingCrawl(ctx context.Context, target crawler.Target, region crawler.Region, language string) (pipeline.CrawlStats, error)
	RunEnrichmentSweep(ctx context.Context) (pipeline.SweepStats, error)
}

// Source lists the organizations to harvest.
type Source interface {
	List() ([]organization.Record, error)
}

// Config controls what each cycle harvests and how often.
type Config struct {
	// Spec is a standard cron expression or descriptor such as "@every 6h".
	Spec     string
	Region   crawler.Region
	Language string
}

// Scheduler wraps robfig/cron. Cycles never overlap: a tick that fires while
// the previous cycle is still running is skipped.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	source    Source
	harvester Harvester
	cfg       Config
	logger    *zap.Logger
}

// New validates the spec and builds a Scheduler.
func New(source Source, harvester Harvester, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}
	cronLogger := cronLog{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		spec:      cfg.Spec,
		source:    source,
		harvester: harvester,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run harvests once immediately, then on every tick until ctx is done. It
// waits for a running cycle to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("harvest cycle failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("harvest cycle failed", zap.Error(err))
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunOnce crawls every valid organization record in turn, then runs one
// enrichment sweep. A failing organization does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	records, err := s.source.List()
	if err != nil {
		return fmt.Errorf("list organizations: %w", err)
	}
	s.logger.Info("harvest cycle started", zap.Int("organizations", len(records)))

	var errs []error
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rec.Valid() {
			s.logger.Warn("skipping organization without feed locator", zap.String("organization", rec.Name))
			continue
		}
		if _, err := s.harvester.RunListingCrawl(ctx, rec.Target(), s.cfg.Region, s.cfg.Language); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("listing crawl failed", zap.String("organization", rec.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", rec.Name, err))
		}
	}

	if _, err := s.harvester.RunEnrichmentSweep(ctx); err != nil {
		errs = append(errs, fmt.Errorf("enrichment sweep: %w", err))
	}
	s.logger.Info("harvest cycle complete", zap.Int("failures", len(errs)))
	return errors.Join(errs...)
}

type cronLog struct {
	logger *zap.SugaredLogger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
