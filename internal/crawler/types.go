package crawler

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Identity is the deduplication key of a posting. SourceID alone is not unique
// because organizations reuse identifiers for new postings.
type Identity struct {
	SourceID int64
	Title    string
}

func (i Identity) String() string {
	return fmt.Sprintf("%d:%s", i.SourceID, i.Title)
}

// PostingCandidate is a posting extracted from a listing page that has not been
// persisted yet.
type PostingCandidate struct {
	SourceID     int64
	Title        string
	Organization string
	Location     string
	Salary       *string
	Language     *string
	// PostedAt is the zero time when the card carried no date.
	PostedAt time.Time
}

// Identity returns the deduplication key of the candidate.
func (c PostingCandidate) Identity() Identity {
	return Identity{SourceID: c.SourceID, Title: c.Title}
}

// Posting is a stored job posting.
type Posting struct {
	ID           int64
	SourceID     int64
	Language     *string
	Title        string
	Organization string
	Location     string
	Salary       *string
	Description  *string
	PostedAt     time.Time
	CreatedAt    time.Time
	ModifiedAt   *time.Time
}

// Identity returns the deduplication key of the posting.
func (p Posting) Identity() Identity {
	return Identity{SourceID: p.SourceID, Title: p.Title}
}

// Target is an organization together with its canonical feed locator.
type Target struct {
	Name    string
	Locator string
}

// Filter holds the locator-derived query filters of a target.
type Filter struct {
	OrganizationIDs []string
	GeoIDs          []string
}

// Filter parses the organization and geographic identifiers out of the
// locator's query string. An unparseable locator yields an empty filter.
func (t Target) Filter() Filter {
	u, err := url.Parse(t.Locator)
	if err != nil {
		return Filter{}
	}
	q := u.Query()
	return Filter{
		OrganizationIDs: q[OrganizationFilterParam],
		GeoIDs:          q[GeoFilterParam],
	}
}

// Query parameter names understood by the listing feed.
const (
	OrganizationFilterParam = "f_C"
	GeoFilterParam          = "geoId"
	RegionFilterParam       = "f_CR"
	TrackingParam           = "trk"
	OffsetParam             = "start"
)

// LocatorParams is the allow-list of query parameters preserved on a feed locator.
var LocatorParams = []string{OrganizationFilterParam, GeoFilterParam}

// ListingRequest identifies one page of a listing feed.
type ListingRequest struct {
	Target Target
	Region Region
	Offset int
}

// FetchResponse captures an HTTP response returned by a fetcher.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// RawPage is one successfully fetched, non-empty listing page.
type RawPage struct {
	Offset     int
	StatusCode int
	Body       []byte
}

// Cursor is the transient pagination state of a single pager run.
type Cursor struct {
	Offset           int
	ConsecutiveEmpty bool
	Attempts         int
}
