// Package pipeline runs the listing crawl and the enrichment sweep against a
// posting store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/clock/system"
	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
	"github.com/JakeFAU/jobpost-harvester/internal/extract"
	"github.com/JakeFAU/jobpost-harvester/internal/metrics"
)

// Config controls Pipeline behavior.
type Config struct {
	Pager crawler.PagerConfig
}

// Pipeline wires fetchers, extraction and the store together. Fetches are
// strictly sequential within one run; independent runs may share the store.
type Pipeline struct {
	listing crawler.ListingFetcher
	detail  crawler.DetailFetcher
	store   crawler.PostingStore
	clock   crawler.Clock
	ids     crawler.IDGenerator
	cfg     Config
	logger  *zap.Logger
}

// CrawlStats summarizes one listing crawl.
type CrawlStats struct {
	RunID       string
	Pages       int
	Candidates  int
	Inserted    int
	Skipped     int
	Malformed   int
	// Unparseable is 1 when the crawl stopped on a page that is not markup.
	Unparseable int
	Stop        crawler.StopReason
}

// SweepStats summarizes one enrichment sweep.
type SweepStats struct {
	RunID     string
	Visited   int
	Described int
	Retired   int
	Transient int
	// Undescribed counts found pages whose description marker was missing.
	Undescribed int
}

// New constructs a Pipeline.
func New(
	listing crawler.ListingFetcher,
	detail crawler.DetailFetcher,
	store crawler.PostingStore,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Pager.Logger == nil {
		cfg.Pager.Logger = logger
	}
	return &Pipeline{
		listing: listing,
		detail:  detail,
		store:   store,
		clock:   clock,
		ids:     ids,
		cfg:     cfg,
		logger:  logger,
	}
}

// RunListingCrawl walks the feed of target in region and upserts every
// extracted candidate. Malformed cards are skipped; a page that cannot be
// parsed at all aborts the crawl with a *crawler.UnparseableDocumentError.
// Inserted postings are tagged with the lower-cased language when one is
// given. Existing postings are never modified.
func (p *Pipeline) RunListingCrawl(
	ctx context.Context,
	target crawler.Target,
	region crawler.Region,
	language string,
) (CrawlStats, error) {
	runID, err := p.newRunID()
	if err != nil {
		return CrawlStats{}, err
	}
	stats := CrawlStats{RunID: runID}
	logger := p.logger.With(
		zap.String("run_id", runID),
		zap.String("organization", target.Name),
		zap.String("region", string(region)),
	)
	lang := normalizeLanguage(language)

	pagerCfg := p.cfg.Pager
	pagerCfg.Logger = logger
	pager := crawler.NewPager(p.listing, target, region, pagerCfg)
	logger.Info("listing crawl started")

	for page := range pager.All(ctx) {
		stats.Pages++
		listing, err := extract.ExtractListing(page.Body, target.Name)
		if err != nil {
			stats.Unparseable++
			return stats, fmt.Errorf("extract listing page at offset %d: %w", page.Offset, err)
		}
		for _, skipped := range listing.Skipped {
			stats.Malformed++
			logger.Warn("skipping malformed card", zap.Int("offset", page.Offset), zap.Error(skipped))
		}

		inserted := 0
		for _, candidate := range listing.Candidates {
			stats.Candidates++
			candidate.Language = lang
			if candidate.PostedAt.IsZero() {
				candidate.PostedAt = p.today()
			}
			result, err := p.store.Upsert(ctx, candidate)
			if errors.Is(err, crawler.ErrInvalidPosting) {
				stats.Malformed++
				logger.Warn("rejected posting", zap.Int64("source_id", candidate.SourceID), zap.Error(err))
				continue
			}
			if err != nil {
				return stats, fmt.Errorf("store posting %s: %w", candidate.Identity(), err)
			}
			metrics.ObservePosting(result.String())
			switch result {
			case crawler.Inserted:
				stats.Inserted++
				inserted++
			case crawler.SkippedExisting:
				stats.Skipped++
			}
		}
		logger.Info("stored postings page",
			zap.Int("offset", page.Offset),
			zap.Int("candidates", len(listing.Candidates)),
			zap.Int("inserted", inserted),
		)
	}

	stats.Stop = pager.StopReason()
	if err := pager.Err(); err != nil {
		return stats, fmt.Errorf("listing crawl %s: %w", target.Name, err)
	}
	logger.Info("listing crawl finished",
		zap.Stringer("stop", stats.Stop),
		zap.Int("pages", stats.Pages),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped_existing", stats.Skipped),
		zap.Int("malformed", stats.Malformed),
	)
	return stats, nil
}

// RunEnrichmentSweep fetches the detail page of every posting without a
// description. Found pages attach their description, retired postings are
// deleted and every other failure leaves the posting for a later sweep, so an
// interrupted sweep can simply be run again.
func (p *Pipeline) RunEnrichmentSweep(ctx context.Context) (SweepStats, error) {
	runID, err := p.newRunID()
	if err != nil {
		return SweepStats{}, err
	}
	stats := SweepStats{RunID: runID}
	logger := p.logger.With(zap.String("run_id", runID))

	total, err := p.store.CountMissingDescriptions(ctx)
	if err != nil {
		return stats, fmt.Errorf("count pending postings: %w", err)
	}
	logger.Info("enrichment sweep started", zap.Int("pending", total))

	for posting, err := range p.store.ListMissingDescriptions(ctx) {
		if err != nil {
			return stats, fmt.Errorf("list pending postings: %w", err)
		}
		stats.Visited++
		itemLogger := logger.With(
			zap.Int64("source_id", posting.SourceID),
			zap.String("title", posting.Title),
			zap.String("progress", fmt.Sprintf("%d/%d", stats.Visited, total)),
		)
		if err := p.enrichOne(ctx, posting, &stats, itemLogger); err != nil {
			return stats, err
		}
	}

	logger.Info("enrichment sweep finished",
		zap.Int("visited", stats.Visited),
		zap.Int("described", stats.Described),
		zap.Int("retired", stats.Retired),
		zap.Int("transient", stats.Transient),
	)
	return stats, nil
}

func (p *Pipeline) enrichOne(ctx context.Context, posting crawler.Posting, stats *SweepStats, logger *zap.Logger) error {
	resp, fetchErr := p.detail.FetchDetail(ctx, posting.SourceID)
	if fetchErr != nil && ctx.Err() != nil {
		return fmt.Errorf("enrichment sweep: %w", ctx.Err())
	}
	outcome := ClassifyDetail(resp.StatusCode, fetchErr)
	metrics.ObserveDetail(outcome.String(), resp.Duration)

	switch outcome {
	case crawler.Retired:
		if err := p.store.Delete(ctx, posting.Identity()); err != nil {
			return fmt.Errorf("delete retired posting %s: %w", posting.Identity(), err)
		}
		stats.Retired++
		logger.Info("deleted retired posting", zap.Int("status", resp.StatusCode))
		return nil
	case crawler.TransientFailure:
		stats.Transient++
		fields := []zap.Field{zap.Int("status", resp.StatusCode)}
		if fetchErr != nil {
			fields = append(fields, zap.Error(fetchErr))
		}
		logger.Warn("detail fetch failed, leaving for a later sweep", fields...)
		return nil
	}

	description, ok, err := extract.ExtractDetail(resp.Body)
	if err != nil {
		stats.Transient++
		logger.Warn("unparseable detail page", zap.Error(err))
		return nil
	}
	if !ok {
		stats.Undescribed++
		logger.Info("detail page has no description")
		return nil
	}
	result, err := p.store.AttachDescription(ctx, posting.Identity(), description)
	if err != nil {
		return fmt.Errorf("attach description %s: %w", posting.Identity(), err)
	}
	if result == crawler.NotFound {
		logger.Info("posting vanished before description was attached")
		return nil
	}
	stats.Described++
	logger.Info("attached description")
	return nil
}

// ClassifyDetail maps a detail fetch to its outcome. Only 200 is Found and only
// a permanent redirect means the posting was retired; everything else,
// including transport errors, is transient.
func ClassifyDetail(status int, err error) crawler.DetailOutcome {
	if err != nil {
		return crawler.TransientFailure
	}
	switch status {
	case http.StatusOK:
		return crawler.Found
	case http.StatusMovedPermanently, http.StatusPermanentRedirect:
		return crawler.Retired
	default:
		return crawler.TransientFailure
	}
}

func (p *Pipeline) newRunID() (string, error) {
	if p.ids == nil {
		return "", nil
	}
	id, err := p.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

func (p *Pipeline) today() time.Time {
	if p.clock != nil {
		return system.Date(p.clock.Now())
	}
	return system.Date(time.Now())
}

func normalizeLanguage(language string) *string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return nil
	}
	return &lang
}
