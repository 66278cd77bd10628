package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/config"
	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
	"github.com/JakeFAU/jobpost-harvester/internal/organization"
	"github.com/JakeFAU/jobpost-harvester/internal/pipeline"
	"github.com/JakeFAU/jobpost-harvester/internal/scheduler"
)

type fakeOrganizations struct {
	records []organization.Record
}

func (f fakeOrganizations) Resolve(_ context.Context, name string) (crawler.Target, error) {
	for _, rec := range f.records {
		if rec.Name == name {
			if !rec.Valid() {
				return crawler.Target{}, fmt.Errorf("%s: %w", name, crawler.ErrOrganizationUnresolvable)
			}
			return rec.Target(), nil
		}
	}
	return crawler.Target{}, fmt.Errorf("%s: %w", name, crawler.ErrOrganizationUnresolvable)
}

func (f fakeOrganizations) List() ([]organization.Record, error) {
	return f.records, nil
}

type crawlCall struct {
	target   crawler.Target
	region   crawler.Region
	language string
}

type fakeHarvester struct {
	mu     sync.Mutex
	crawls []crawlCall
	sweeps int
}

func (h *fakeHarvester) RunListingCrawl(
	_ context.Context,
	target crawler.Target,
	region crawler.Region,
	language string,
) (pipeline.CrawlStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.crawls = append(h.crawls, crawlCall{target: target, region: region, language: language})
	return pipeline.CrawlStats{Pages: 2, Inserted: 30, Skipped: 5, Stop: crawler.StopEndOfFeed}, nil
}

func (h *fakeHarvester) RunEnrichmentSweep(context.Context) (pipeline.SweepStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweeps++
	return pipeline.SweepStats{Described: 3, Retired: 1, Transient: 2}, nil
}

type fakeServices struct {
	orgs      fakeOrganizations
	harvester *fakeHarvester
	closed    bool
}

func (s *fakeServices) Close() {
	s.closed = true
}

func (s *fakeServices) Config() config.Config {
	return config.Config{Schedule: config.ScheduleConfig{Spec: "@every 1h"}}
}

func (s *fakeServices) Logger() *zap.Logger {
	return zap.NewNop()
}

func (s *fakeServices) Organizations() Organizations {
	return s.orgs
}

func (s *fakeServices) Harvester() scheduler.Harvester {
	return s.harvester
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		orgs: fakeOrganizations{records: []organization.Record{
			{Name: "Acme", Slug: "acme", JobsURL: "https://example.com/jobs?f_C=1"},
			{Name: "Ghost", Slug: "ghost"},
		}},
		harvester: &fakeHarvester{},
	}
}

func execute(t *testing.T, svc *fakeServices, stdin string, args ...string) (string, error) {
	t.Helper()
	root, closeServices := newRootCmd(func(context.Context, string) (Services, error) {
		return svc, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	closeServices()
	return out.String(), err
}

func TestCrawlWithFlags(t *testing.T) {
	t.Parallel()

	svc := newFakeServices()
	out, err := execute(t, svc, "", "crawl", "-c", "Acme", "-l", "us", "-s", "EN")
	require.NoError(t, err)
	require.True(t, svc.closed)

	require.Equal(t, []crawlCall{{
		target:   crawler.Target{Name: "Acme", Locator: "https://example.com/jobs?f_C=1"},
		region:   crawler.RegionUS,
		language: "EN",
	}}, svc.harvester.crawls)
	require.Equal(t, 1, svc.harvester.sweeps)
	require.Contains(t, out, "Acme: 2 pages, 30 new postings, 5 already stored (end_of_feed)")
	require.Contains(t, out, "3 attached, 1 retired postings removed, 2 left for later")
}

func TestCrawlPromptsForCompany(t *testing.T) {
	t.Parallel()

	svc := newFakeServices()
	out, err := execute(t, svc, "Acme\n", "crawl")
	require.NoError(t, err)
	require.Contains(t, out, "Company name: ")
	require.Len(t, svc.harvester.crawls, 1)
	require.Equal(t, crawler.RegionNone, svc.harvester.crawls[0].region)
}

func TestCrawlValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "unresolvable organization", args: []string{"crawl", "-c", "Ghost"}, want: "unable to find jobs for this company: Ghost"},
		{name: "unknown organization", args: []string{"crawl", "--company", "Nobody"}, want: "unable to find jobs for this company: Nobody"},
		{name: "unsupported region", args: []string{"crawl", "-c", "Acme", "-l", "xx"}, want: "unsupported region"},
		{name: "empty prompt", stdin: "\n", args: []string{"crawl"}, want: "company name is required"},
		{name: "language too long", args: []string{"crawl", "-c", "Acme", "-s", "english"}, want: "longer than 5 characters"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newFakeServices()
			_, err := execute(t, svc, tt.stdin, tt.args...)
			require.ErrorContains(t, err, tt.want)
			var usage *usageError
			require.True(t, errors.As(err, &usage))
			require.Empty(t, svc.harvester.crawls)
			require.True(t, svc.closed)
		})
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	svc := newFakeServices()
	out, err := execute(t, svc, "", "enrich")
	require.NoError(t, err)
	require.Empty(t, svc.harvester.crawls)
	require.Equal(t, 1, svc.harvester.sweeps)
	require.Contains(t, out, "3 attached")
}

func TestOrganizations(t *testing.T) {
	t.Parallel()

	out, err := execute(t, newFakeServices(), "", "organizations")
	require.NoError(t, err)
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "https://example.com/jobs?f_C=1")
	require.Contains(t, out, "(unresolved)")
}

func TestFactoryErrorStopsCommand(t *testing.T) {
	t.Parallel()

	root, closeServices := newRootCmd(func(context.Context, string) (Services, error) {
		return nil, errors.New("bad config")
	})
	defer closeServices()
	root.SetArgs([]string{"enrich"})
	root.SetOut(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "initialize services: bad config")
}

func TestScheduleRejectsBadRegion(t *testing.T) {
	t.Parallel()

	svc := newFakeServices()
	_, err := execute(t, svc, "", "schedule", "-l", "mars")
	require.ErrorContains(t, err, "unsupported region")
	require.Zero(t, svc.harvester.sweeps)
}

func TestScheduleRejectsLongLanguage(t *testing.T) {
	t.Parallel()

	svc := newFakeServices()
	_, err := execute(t, svc, "", "schedule", "-s", "english")
	require.ErrorContains(t, err, `language "english" is longer than 5 characters`)
	var usage *usageError
	require.ErrorAs(t, err, &usage)
	require.Zero(t, svc.harvester.sweeps)
}
