package crawler

import (
	"bytes"
	"context"
	"iter"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/metrics"
)

// Pager defaults.
const (
	DefaultPageSize  = 25
	DefaultMaxOffset = 1000
)

// PagerConfig controls how a feed is walked.
type PagerConfig struct {
	PageSize int
	// MaxOffset is the ceiling past which a failed page ends the walk without
	// a retry, since the upstream throttles deep pagination. Values <= 0
	// select DefaultMaxOffset.
	MaxOffset int
	Policy    RetryPolicy
	Sleeper   Sleeper
	Logger    *zap.Logger
}

// Pager walks one (organization, region) listing feed strictly sequentially.
// It is a pull iterator: each call to Next performs at most one page worth of
// fetches. A Pager is not restartable and not safe for concurrent use.
type Pager struct {
	fetcher   ListingFetcher
	target    Target
	region    Region
	pageSize  int
	maxOffset int
	policy    RetryPolicy
	sleeper   Sleeper
	logger    *zap.Logger

	cursor Cursor
	stop   StopReason
	err    error
}

// NewPager builds a Pager starting at offset 0.
func NewPager(fetcher ListingFetcher, target Target, region Region, cfg PagerConfig) *Pager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = DefaultMaxOffset
	}
	if cfg.Policy == nil {
		cfg.Policy = NewSingleRetryPolicy()
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = TimerSleeper{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pager{
		fetcher:   fetcher,
		target:    target,
		region:    region,
		pageSize:  cfg.PageSize,
		maxOffset: cfg.MaxOffset,
		policy:    cfg.Policy,
		sleeper:   cfg.Sleeper,
		logger: cfg.Logger.With(
			zap.String("organization", target.Name),
			zap.String("region", string(region)),
		),
	}
}

// Next fetches the page at the current offset. It returns false once the feed
// has ended; StopReason tells why. Throttling and end-of-feed are ordinary
// stops and never surface through Err.
func (p *Pager) Next(ctx context.Context) (RawPage, bool) {
	if p.stop != StopNone {
		return RawPage{}, false
	}
	p.cursor.Attempts = 0
	for {
		if err := ctx.Err(); err != nil {
			p.finish(StopCanceled, err)
			return RawPage{}, false
		}

		offset := p.cursor.Offset
		p.cursor.Attempts++
		resp, err := p.fetcher.FetchListing(ctx, ListingRequest{
			Target: p.target,
			Region: p.region,
			Offset: offset,
		})
		metrics.ObserveListingFetch(resp.StatusCode, resp.Duration)
		if err != nil && ctx.Err() != nil {
			p.finish(StopCanceled, ctx.Err())
			return RawPage{}, false
		}

		if err == nil && IsBlank(resp.Body) {
			p.cursor.ConsecutiveEmpty = true
			p.logger.Info("no more postings", zap.Int("offset", offset))
			p.finish(StopEndOfFeed, nil)
			return RawPage{}, false
		}

		if err == nil && resp.StatusCode == http.StatusOK {
			p.cursor.Offset += p.pageSize
			p.logger.Info("collected postings page",
				zap.Int("offset", offset),
				zap.Int("next_offset", p.cursor.Offset),
			)
			return RawPage{Offset: offset, StatusCode: resp.StatusCode, Body: resp.Body}, true
		}

		fields := []zap.Field{
			zap.Int("offset", offset),
			zap.Int("attempt", p.cursor.Attempts),
			zap.Int("status", resp.StatusCode),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		if offset >= p.maxOffset {
			p.logger.Info("reached max offset while throttled", fields...)
			p.finish(StopThrottled, nil)
			return RawPage{}, false
		}
		if !p.policy.ShouldRetry(p.cursor.Attempts) {
			p.logger.Warn("retry budget exhausted", fields...)
			p.finish(StopRetryExhausted, nil)
			return RawPage{}, false
		}

		delay := p.policy.Backoff(p.cursor.Attempts)
		p.logger.Warn("throttled, waiting before retry", append(fields, zap.Duration("delay", delay))...)
		metrics.ObserveListingRetry()
		p.sleeper.Pause(ctx, delay)
	}
}

// All adapts the pager to a range-over-func sequence.
func (p *Pager) All(ctx context.Context) iter.Seq[RawPage] {
	return func(yield func(RawPage) bool) {
		for {
			page, ok := p.Next(ctx)
			if !ok || !yield(page) {
				return
			}
		}
	}
}

// StopReason reports why the pager stopped, or StopNone while it is running.
func (p *Pager) StopReason() StopReason {
	return p.stop
}

// Err returns the context error that canceled the walk, if any.
func (p *Pager) Err() error {
	return p.err
}

// Cursor returns a snapshot of the pagination state.
func (p *Pager) Cursor() Cursor {
	return p.cursor
}

func (p *Pager) finish(reason StopReason, err error) {
	p.stop = reason
	p.err = err
	metrics.ObserveFeedStop(reason.String())
}

// IsBlank reports whether body carries no text once markup and whitespace are
// stripped. The feed signals its end with such a body.
func IsBlank(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return strings.TrimSpace(doc.Text()) == ""
}
