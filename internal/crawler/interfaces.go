package crawler

import (
	"context"
	"iter"
	"time"
)

// ListingFetcher fetches one page of a listing feed. Non-success statuses are
// returned as responses; only transport failures return an error.
type ListingFetcher interface {
	FetchListing(ctx context.Context, request ListingRequest) (FetchResponse, error)
}

// DetailFetcher fetches the detail page of a posting without following redirects.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, sourceID int64) (FetchResponse, error)
}

// PostingStore is the reconciliation boundary for postings.
type PostingStore interface {
	Upsert(ctx context.Context, candidate PostingCandidate) (UpsertResult, error)
	AttachDescription(ctx context.Context, id Identity, description string) (AttachResult, error)
	Delete(ctx context.Context, id Identity) error
	ListMissingDescriptions(ctx context.Context) iter.Seq2[Posting, error]
	CountMissingDescriptions(ctx context.Context) (int, error)
}

// LocatorResolver finds the feed locator linked from an organization page.
type LocatorResolver interface {
	ResolveLocator(ctx context.Context, organizationPageURL string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper blocks for a delay or until the context is done.
type Sleeper interface {
	Pause(ctx context.Context, delay time.Duration)
}

// RetryPolicy decides whether a failed fetch at one offset is retried.
type RetryPolicy interface {
	ShouldRetry(attempt int) bool
	Backoff(attempt int) time.Duration
}
