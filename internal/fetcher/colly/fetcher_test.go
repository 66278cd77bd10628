package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

func newTestFetcher(t *testing.T, base string, cfg Config) *Fetcher {
	t.Helper()
	cfg.ListingURL = base + "/jobs-guest/jobs/api/seeMoreJobPostings/search"
	cfg.DetailURL = base + "/jobs/view/"
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func TestNewRejectsInvalidURLs(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ListingURL: "not a url", DetailURL: "https://example.com/view"})
	require.ErrorContains(t, err, "invalid listing url")

	_, err = New(Config{ListingURL: "https://example.com/search", DetailURL: ""})
	require.ErrorContains(t, err, "invalid detail url")
}

func TestListingURLCarriesFilters(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, "https://feed.example", Config{TrackingToken: "public_jobs_jobs-search-bar_search-submit"})
	raw := f.ListingURL(crawler.ListingRequest{
		Target: crawler.Target{
			Name:    "Acme",
			Locator: "https://www.linkedin.com/jobs/search?f_C=1586&geoId=92000000",
		},
		Region: crawler.RegionDE,
		Offset: 50,
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/jobs-guest/jobs/api/seeMoreJobPostings/search", u.Path)
	q := u.Query()
	require.Equal(t, "1586", q.Get("f_C"))
	require.Equal(t, "101282230", q.Get("f_CR"))
	require.Equal(t, "92000000", q.Get("geoId"))
	require.Equal(t, "public_jobs_jobs-search-bar_search-submit", q.Get("trk"))
	require.Equal(t, "50", q.Get("start"))

	noRegion := f.ListingURL(crawler.ListingRequest{Target: crawler.Target{Name: "Acme"}})
	u, err = url.Parse(noRegion)
	require.NoError(t, err)
	require.False(t, u.Query().Has("f_CR"))
	require.Equal(t, "0", u.Query().Get("start"))
}

func TestDetailURL(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, "https://feed.example", Config{})
	require.Equal(t, "https://feed.example/jobs/view/3791234567", f.DetailURL(3791234567))
}

func TestFetchListingReturnsErrorStatusesAsResponses(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Query().Get("start") == "25" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
			return
		}
		_, _ = w.Write([]byte(`<li><div class="job-search-card" data-entity-urn="urn:li:jobPosting:1"></div></li>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL, Config{UserAgent: "harvester-test", Timeout: time.Second})

	resp, err := f.FetchListing(context.Background(), crawler.ListingRequest{Offset: 0})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "job-search-card")
	require.Equal(t, "harvester-test", gotUA)

	resp, err = f.FetchListing(context.Background(), crawler.ListingRequest{Offset: 25})
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "slow down", string(resp.Body))

	// the same URL may be fetched again for a retry
	resp, err = f.FetchListing(context.Background(), crawler.ListingRequest{Offset: 25})
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestFetchDetailDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/view/1":
			http.Redirect(w, r, "/jobs/search", http.StatusMovedPermanently)
		case "/jobs/view/2":
			_, _ = w.Write([]byte(`<div class="show-more-less-html__markup">Hi</div>`))
		default:
			_, _ = w.Write([]byte("search page"))
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL, Config{Timeout: time.Second})

	resp, err := f.FetchDetail(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)

	resp, err = f.FetchDetail(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "show-more-less-html__markup")
}

func TestFetchListingFollowsRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/authwall" {
			_, _ = w.Write([]byte("sign in"))
			return
		}
		http.Redirect(w, r, "/authwall", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL, Config{Timeout: time.Second})
	resp, err := f.FetchListing(context.Background(), crawler.ListingRequest{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.URL, "/authwall")
}

func TestFetchTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	f := newTestFetcher(t, base, Config{Timeout: time.Second})
	_, err := f.FetchDetail(context.Background(), 1)
	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Contains(t, fetchErr.URL, "/jobs/view/1")
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL, Config{Timeout: time.Second, RequestsPerSecond: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchListing(ctx, crawler.ListingRequest{})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	start := time.Unix(0, 0)
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	configureCollectorHooks(hooks, start, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("Accept-Language") == "" {
		t.Fatalf("expected Accept-Language header, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusMovedPermanently,
		Body:       []byte("body"),
		Headers:    &http.Header{"Location": {"/jobs"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/jobs/view/1"),
		},
	})
	if result.StatusCode != http.StatusMovedPermanently || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("Location") != "/jobs" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
