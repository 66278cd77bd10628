// Package memory provides in-memory store implementations for dry runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

// PostingStore keeps postings in a map keyed by identity.
type PostingStore struct {
	mu     sync.RWMutex
	rows   map[crawler.Identity]crawler.Posting
	nextID int64
	clock  crawler.Clock
}

// NewPostingStore constructs a PostingStore. A nil clock uses UTC wall time.
func NewPostingStore(clock crawler.Clock) *PostingStore {
	return &PostingStore{
		rows:  make(map[crawler.Identity]crawler.Posting),
		clock: clock,
	}
}

// Upsert inserts the candidate unless its identity is already stored. Existing
// rows are never modified.
func (s *PostingStore) Upsert(_ context.Context, candidate crawler.PostingCandidate) (crawler.UpsertResult, error) {
	if candidate.Title == "" {
		return 0, fmt.Errorf("upsert posting %d: %w", candidate.SourceID, crawler.ErrInvalidPosting)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	id := candidate.Identity()
	if _, exists := s.rows[id]; exists {
		return crawler.SkippedExisting, nil
	}
	s.nextID++
	s.rows[id] = crawler.Posting{
		ID:           s.nextID,
		SourceID:     candidate.SourceID,
		Language:     cloneString(candidate.Language),
		Title:        candidate.Title,
		Organization: candidate.Organization,
		Location:     candidate.Location,
		Salary:       cloneString(candidate.Salary),
		PostedAt:     candidate.PostedAt,
		CreatedAt:    now,
	}
	return crawler.Inserted, nil
}

// AttachDescription sets the description and refreshes modified_at.
func (s *PostingStore) AttachDescription(_ context.Context, id crawler.Identity, description string) (crawler.AttachResult, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return crawler.NotFound, nil
	}
	row.Description = &description
	row.ModifiedAt = &now
	s.rows[id] = row
	return crawler.Updated, nil
}

// Delete removes the posting; deleting an absent identity is a no-op.
func (s *PostingStore) Delete(_ context.Context, id crawler.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// ListMissingDescriptions yields a snapshot of postings without description,
// ordered by insertion.
func (s *PostingStore) ListMissingDescriptions(ctx context.Context) iter.Seq2[crawler.Posting, error] {
	s.mu.RLock()
	pending := make([]crawler.Posting, 0)
	for _, row := range s.rows {
		if row.Description == nil {
			pending = append(pending, row)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(pending, func(a, b crawler.Posting) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return func(yield func(crawler.Posting, error) bool) {
		for _, row := range pending {
			if err := ctx.Err(); err != nil {
				yield(crawler.Posting{}, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// CountMissingDescriptions returns the number of postings without description.
func (s *PostingStore) CountMissingDescriptions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.rows {
		if row.Description == nil {
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the stored posting.
func (s *PostingStore) Get(id crawler.Identity) (crawler.Posting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	return row, ok
}

// Len returns the number of stored postings.
func (s *PostingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *PostingStore) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
