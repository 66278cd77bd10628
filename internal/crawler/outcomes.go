package crawler

// UpsertResult reports what the store did with a candidate.
type UpsertResult int

// Upsert results.
const (
	Inserted UpsertResult = iota
	SkippedExisting
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case SkippedExisting:
		return "skipped_existing"
	default:
		return "unknown"
	}
}

// AttachResult reports whether a description was attached.
type AttachResult int

// Attach results.
const (
	Updated AttachResult = iota
	NotFound
)

func (r AttachResult) String() string {
	switch r {
	case Updated:
		return "updated"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// DetailOutcome classifies a detail-page fetch.
type DetailOutcome int

// Detail outcomes.
const (
	Found DetailOutcome = iota
	Retired
	TransientFailure
)

func (o DetailOutcome) String() string {
	switch o {
	case Found:
		return "found"
	case Retired:
		return "retired"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// StopReason explains why a pager stopped producing pages.
type StopReason int

// Stop reasons. StopNone means the pager is still running.
const (
	StopNone StopReason = iota
	StopEndOfFeed
	StopThrottled
	StopRetryExhausted
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "running"
	case StopEndOfFeed:
		return "end_of_feed"
	case StopThrottled:
		return "throttled"
	case StopRetryExhausted:
		return "retry_exhausted"
	case StopCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
