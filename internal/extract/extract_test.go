package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

const wellFormedCard = `
<li>
  <div class="base-card job-search-card" data-entity-urn="urn:li:jobPosting:3791234567">
    <h3 class="base-search-card__title">
      Senior Go Engineer
    </h3>
    <h4 class="base-search-card__subtitle"><a href="#">Acme Corp</a></h4>
    <div class="base-search-card__metadata">
      <span class="job-search-card__location">Berlin, Germany</span>
      <span class="job-search-card__salary-info">€80,000 - €95,000</span>
      <time class="job-search-card__listdate" datetime="2024-03-05">2 weeks ago</time>
    </div>
  </div>
</li>`

const cardWithoutID = `
<li>
  <div class="base-card job-search-card">
    <h3 class="base-search-card__title">Data Engineer</h3>
  </div>
</li>`

func TestExtractListingSkipsCardWithoutIdentifier(t *testing.T) {
	t.Parallel()

	listing, err := ExtractListing([]byte(wellFormedCard+cardWithoutID), "Fallback Inc")
	require.NoError(t, err)
	require.Len(t, listing.Candidates, 1)
	require.Len(t, listing.Skipped, 1)

	var malformed *crawler.MalformedCardError
	require.True(t, errors.As(listing.Skipped[0], &malformed))
	require.Equal(t, 1, malformed.Index)

	got := listing.Candidates[0]
	require.Equal(t, int64(3791234567), got.SourceID)
	require.Equal(t, "Senior Go Engineer", got.Title)
	require.Equal(t, "Acme Corp", got.Organization)
	require.Equal(t, "Berlin, Germany", got.Location)
	require.NotNil(t, got.Salary)
	require.Equal(t, "€80,000 - €95,000", *got.Salary)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got.PostedAt)
	require.Nil(t, got.Language)
}

func TestExtractListingDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	body := `<div class="job-search-card" data-entity-urn="urn:li:jobPosting:77">
	  <span class="base-search-card__title">Recruiter</span>
	  <time datetime="not-a-date"></time>
	</div>`

	listing, err := ExtractListing([]byte(body), "Fallback Inc")
	require.NoError(t, err)
	require.Len(t, listing.Candidates, 1)

	got := listing.Candidates[0]
	require.Equal(t, "Fallback Inc", got.Organization)
	require.Empty(t, got.Location)
	require.Nil(t, got.Salary)
	require.True(t, got.PostedAt.IsZero())
}

func TestExtractListingMalformedCards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no digits in urn",
			body: `<div class="job-search-card" data-entity-urn="urn:li:jobPosting:"><h3 class="base-search-card__title">X</h3></div>`,
			want: "no numeric id",
		},
		{
			name: "id overflows",
			body: `<div class="job-search-card" data-entity-urn="urn:99999999999999999999999"><h3 class="base-search-card__title">X</h3></div>`,
			want: "invalid id",
		},
		{
			name: "missing title",
			body: `<div class="job-search-card" data-entity-urn="urn:li:jobPosting:5"></div>`,
			want: "has no title",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			listing, err := ExtractListing([]byte(tt.body), "Acme")
			require.NoError(t, err)
			require.Empty(t, listing.Candidates)
			require.Len(t, listing.Skipped, 1)
			require.ErrorContains(t, listing.Skipped[0], tt.want)
		})
	}
}

func TestExtractListingEmptyPage(t *testing.T) {
	t.Parallel()

	listing, err := ExtractListing([]byte("<ul></ul>"), "Acme")
	require.NoError(t, err)
	require.Empty(t, listing.Candidates)
	require.Empty(t, listing.Skipped)
}

func TestExtractRejectsUnparseableDocument(t *testing.T) {
	t.Parallel()

	body := []byte{0xff, 0xfe, 0xfd}

	_, err := ExtractListing(body, "Acme")
	var unparseable *crawler.UnparseableDocumentError
	require.ErrorAs(t, err, &unparseable)

	_, _, err = ExtractDetail(body)
	require.ErrorAs(t, err, &unparseable)
}

func TestExtractDetail(t *testing.T) {
	t.Parallel()

	body := `<html><body>
	<section class="description">
	  <div class="show-more-less-html__markup">
	    <p>About the role</p>
	    <ul><li>Build <strong>crawlers</strong></li><li>Ship</li></ul>
	    <script>track()</script>
	  </div>
	</section>
	</body></html>`

	text, ok, err := ExtractDetail([]byte(body))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "About the role\nBuild\ncrawlers\nShip", text)
}

func TestExtractDetailMissingMarker(t *testing.T) {
	t.Parallel()

	text, ok, err := ExtractDetail([]byte(`<html><body><p>Sign in to view</p></body></html>`))
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, text)

	_, ok, err = ExtractDetail([]byte(`<div class="show-more-less-html__markup">  </div>`))
	require.NoError(t, err)
	require.False(t, ok)
}
