package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrOrganizationUnresolvable is returned when no feed locator can be found
	// for an organization.
	ErrOrganizationUnresolvable = errors.New("organization unresolvable")
	// ErrResolverDisabled is returned by the no-op locator resolver.
	ErrResolverDisabled = errors.New("locator resolver disabled")
	// ErrInvalidPosting rejects candidates that cannot form an identity.
	ErrInvalidPosting = errors.New("invalid posting")
)

// UnparseableDocumentError reports a page that is not a usable markup document.
type UnparseableDocumentError struct {
	Message string
	Cause   error
}

func (e *UnparseableDocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unparseable document: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("unparseable document: %s", e.Message)
}

func (e *UnparseableDocumentError) Unwrap() error {
	return e.Cause
}

// MalformedCardError describes one listing card that was skipped.
type MalformedCardError struct {
	Index   int
	Message string
	Cause   error
}

func (e *MalformedCardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed card %d: %s: %v", e.Index, e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed card %d: %s", e.Index, e.Message)
}

func (e *MalformedCardError) Unwrap() error {
	return e.Cause
}

// FetchError is a transport-level failure (timeout, refused connection).
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
