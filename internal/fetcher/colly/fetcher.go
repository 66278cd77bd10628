// Package collyfetcher implements the listing and detail fetchers using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

const defaultTimeout = 10 * time.Second

// Config controls collector behavior.
type Config struct {
	ListingURL    string
	DetailURL     string
	TrackingToken string
	// UserAgent pins the User-Agent header. Empty rotates a random browser
	// agent on every request.
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond paces every fetch. Zero disables pacing.
	RequestsPerSecond float64
}

// Fetcher implements crawler.ListingFetcher and crawler.DetailFetcher. Listing
// fetches follow redirects; detail fetches return the redirect itself so a
// moved posting can be recognized.
type Fetcher struct {
	cfg         Config
	listingURL  *url.URL
	detailURL   string
	listingBase *colly.Collector
	detailBase  *colly.Collector
	limiter     *rate.Limiter
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	listingURL, err := url.Parse(cfg.ListingURL)
	if err != nil || listingURL.Scheme == "" || listingURL.Host == "" {
		return nil, fmt.Errorf("invalid listing url %q", cfg.ListingURL)
	}
	detailURL, err := url.Parse(cfg.DetailURL)
	if err != nil || detailURL.Scheme == "" || detailURL.Host == "" {
		return nil, fmt.Errorf("invalid detail url %q", cfg.DetailURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := newHTTPTransport()

	listing := newBaseCollector(cfg.Timeout, transport)

	detail := newBaseCollector(cfg.Timeout, transport)
	detail.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Fetcher{
		cfg:         cfg,
		listingURL:  listingURL,
		detailURL:   strings.TrimRight(detailURL.String(), "/"),
		listingBase: listing,
		detailBase:  detail,
		limiter:     limiter,
	}, nil
}

func newBaseCollector(timeout time.Duration, transport http.RoundTripper) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)
	return c
}

// FetchListing requests one page of the listing feed.
func (f *Fetcher) FetchListing(ctx context.Context, request crawler.ListingRequest) (crawler.FetchResponse, error) {
	return f.fetch(ctx, f.listingBase, f.ListingURL(request))
}

// FetchDetail requests the detail page of a posting without following redirects.
func (f *Fetcher) FetchDetail(ctx context.Context, sourceID int64) (crawler.FetchResponse, error) {
	return f.fetch(ctx, f.detailBase, f.DetailURL(sourceID))
}

// ListingURL builds the feed URL for a request.
func (f *Fetcher) ListingURL(request crawler.ListingRequest) string {
	u := *f.listingURL
	q := u.Query()
	filter := request.Target.Filter()
	for _, id := range filter.OrganizationIDs {
		q.Add(crawler.OrganizationFilterParam, id)
	}
	if v, ok := request.Region.FilterValue(); ok {
		q.Set(crawler.RegionFilterParam, v)
	}
	for _, id := range filter.GeoIDs {
		q.Add(crawler.GeoFilterParam, id)
	}
	if f.cfg.TrackingToken != "" {
		q.Set(crawler.TrackingParam, f.cfg.TrackingToken)
	}
	q.Set(crawler.OffsetParam, strconv.Itoa(request.Offset))
	u.RawQuery = q.Encode()
	return u.String()
}

// DetailURL builds the detail page URL for a posting.
func (f *Fetcher) DetailURL(sourceID int64) string {
	return f.detailURL + "/" + strconv.FormatInt(sourceID, 10)
}

func (f *Fetcher) fetch(ctx context.Context, base *colly.Collector, target string) (crawler.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, base, start, &result, &fetchErr)
	if err := runCollector(ctx, collector, target, &fetchErr); err != nil {
		return crawler.FetchResponse{URL: target, Duration: time.Since(start)}, &crawler.FetchError{URL: target, Cause: err}
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	base *colly.Collector,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := base.Clone()
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	} else {
		extensions.RandomUserAgent(collector)
	}
	configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
