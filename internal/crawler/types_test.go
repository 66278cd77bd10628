package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	t.Parallel()

	r, err := ParseRegion("us")
	require.NoError(t, err)
	require.Equal(t, RegionUS, r)
	v, ok := r.FilterValue()
	require.True(t, ok)
	require.Equal(t, "103644278", v)

	r, err = ParseRegion("")
	require.NoError(t, err)
	require.Equal(t, RegionNone, r)
	_, ok = r.FilterValue()
	require.False(t, ok)

	_, err = ParseRegion("GB")
	require.ErrorContains(t, err, "unsupported region")
}

func TestRegionCodesSorted(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"AU", "BE", "BR", "CA", "DE", "FR", "NL", "PL", "UK", "US"},
		RegionCodes(),
	)
}

func TestTargetFilter(t *testing.T) {
	t.Parallel()

	target := Target{
		Name:    "Acme",
		Locator: "https://www.linkedin.com/jobs/search?f_C=1234%2C5678&geoId=92000000",
	}
	f := target.Filter()
	require.Equal(t, []string{"1234,5678"}, f.OrganizationIDs)
	require.Equal(t, []string{"92000000"}, f.GeoIDs)

	require.Empty(t, Target{Locator: "://bad"}.Filter().OrganizationIDs)
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	c := PostingCandidate{SourceID: 42, Title: "Engineer"}
	p := Posting{SourceID: 42, Title: "Engineer"}
	require.Equal(t, c.Identity(), p.Identity())
	require.Equal(t, "42:Engineer", c.Identity().String())
}

func TestOutcomeStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "inserted", Inserted.String())
	require.Equal(t, "skipped_existing", SkippedExisting.String())
	require.Equal(t, "not_found", NotFound.String())
	require.Equal(t, "retired", Retired.String())
	require.Equal(t, "throttled", StopThrottled.String())
}
