// Package postgres provides the Postgres-backed posting store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

const (
	defaultTable     = "jobs"
	defaultBatchSize = 100

	// sqlStateStringTooLong is string_data_right_truncation.
	sqlStateStringTooLong = "22001"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

//go:embed schema.sql
var schemaSQL string

// PostingStoreConfig controls the Postgres connection pool and table.
type PostingStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// BatchSize bounds the rows fetched per round trip when listing postings.
	BatchSize int
}

// Pool is the subset of *pgxpool.Pool used by the store.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostingStore persists postings. Identity uniqueness is enforced by the
// (source_id, title) constraint, so concurrent writers need no locking.
type PostingStore struct {
	pool      Pool
	table     string
	batchSize int
	clock     crawler.Clock
}

// NewPostingStore opens a pool using cfg. The caller owns the store and must
// Close it.
func NewPostingStore(ctx context.Context, cfg PostingStoreConfig, clock crawler.Clock) (*PostingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPostingStoreWithPool(pool, cfg, clock)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostingStoreWithPool constructs a store from an existing pool (primarily
// for testing). cfg.DSN and the pool sizing fields are ignored.
func NewPostingStoreWithPool(pool Pool, cfg PostingStoreConfig, clock crawler.Clock) (*PostingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &PostingStore{pool: pool, table: table, batchSize: batch, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *PostingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the postings table and its indexes when missing.
func (s *PostingStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaSQL, s.table)); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert inserts the candidate or reports SkippedExisting when its identity is
// already stored. Existing rows are never modified.
func (s *PostingStore) Upsert(ctx context.Context, candidate crawler.PostingCandidate) (crawler.UpsertResult, error) {
	if candidate.Title == "" {
		return 0, fmt.Errorf("upsert posting %d: %w", candidate.SourceID, crawler.ErrInvalidPosting)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source_id,
	language,
	title,
	organization,
	location,
	salary,
	posted_at,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (source_id, title) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		candidate.SourceID,
		candidate.Language,
		candidate.Title,
		candidate.Organization,
		candidate.Location,
		candidate.Salary,
		candidate.PostedAt,
		s.now(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateStringTooLong {
			return 0, fmt.Errorf("upsert posting %d: %w: %s", candidate.SourceID, crawler.ErrInvalidPosting, pgErr.Message)
		}
		return 0, fmt.Errorf("insert posting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.SkippedExisting, nil
	}
	return crawler.Inserted, nil
}

// AttachDescription sets the description of the identified posting.
func (s *PostingStore) AttachDescription(
	ctx context.Context,
	id crawler.Identity,
	description string,
) (crawler.AttachResult, error) {
	query := fmt.Sprintf(`
UPDATE %s
SET description = $3, modified_at = $4
WHERE source_id = $1 AND title = $2`, s.table)

	tag, err := s.pool.Exec(ctx, query, id.SourceID, id.Title, description, s.now())
	if err != nil {
		return 0, fmt.Errorf("update posting description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.NotFound, nil
	}
	return crawler.Updated, nil
}

// Delete removes the identified posting; absent identities are a no-op.
func (s *PostingStore) Delete(ctx context.Context, id crawler.Identity) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE source_id = $1 AND title = $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, id.SourceID, id.Title); err != nil {
		return fmt.Errorf("delete posting: %w", err)
	}
	return nil
}

// CountMissingDescriptions returns the number of postings without description.
func (s *PostingStore) CountMissingDescriptions(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE description IS NULL`, s.table)
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count missing descriptions: %w", err)
	}
	return n, nil
}

// ListMissingDescriptions lazily yields postings without description in id
// order, one keyset batch per round trip. Each batch is fully read before it is
// yielded so callers may write to the store while iterating. A posting left
// without description is not yielded twice in the same iteration.
func (s *PostingStore) ListMissingDescriptions(ctx context.Context) iter.Seq2[crawler.Posting, error] {
	return func(yield func(crawler.Posting, error) bool) {
		var after int64
		for {
			batch, err := s.missingBatch(ctx, after)
			if err != nil {
				yield(crawler.Posting{}, err)
				return
			}
			for _, p := range batch {
				if !yield(p, nil) {
					return
				}
				after = p.ID
			}
			if len(batch) < s.batchSize {
				return
			}
		}
	}
}

func (s *PostingStore) missingBatch(ctx context.Context, after int64) ([]crawler.Posting, error) {
	query := fmt.Sprintf(`
SELECT
	id,
	source_id,
	language,
	title,
	organization,
	location,
	salary,
	description,
	posted_at,
	created_at,
	modified_at
FROM %s
WHERE description IS NULL AND id > $1
ORDER BY id
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, after, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("query missing descriptions: %w", err)
	}
	defer rows.Close()

	batch := make([]crawler.Posting, 0, s.batchSize)
	for rows.Next() {
		var p crawler.Posting
		if err := rows.Scan(
			&p.ID,
			&p.SourceID,
			&p.Language,
			&p.Title,
			&p.Organization,
			&p.Location,
			&p.Salary,
			&p.Description,
			&p.PostedAt,
			&p.CreatedAt,
			&p.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		batch = append(batch, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing descriptions: %w", err)
	}
	return batch, nil
}

func (s *PostingStore) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}
