// Package organization persists organization records, one JSON file per
// organization, and resolves their feed locators on first use.
package organization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

// Record is the persisted form of an organization.
type Record struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	JobsURL string `json:"jobs_url"`
}

// Valid reports whether the record carries a feed locator.
func (r Record) Valid() bool {
	return r.JobsURL != ""
}

// Target converts the record into a crawl target.
func (r Record) Target() crawler.Target {
	return crawler.Target{Name: r.Name, Locator: r.JobsURL}
}

// Config locates the record directory and the organization pages.
type Config struct {
	Dir string
	// PageURL is the base URL of organization pages; the slug is appended.
	PageURL string
}

// Registry loads, creates and validates organization records.
type Registry struct {
	dir      string
	pageURL  string
	resolver crawler.LocatorResolver
	logger   *zap.Logger
}

// NewRegistry builds a Registry.
func NewRegistry(cfg Config, resolver crawler.LocatorResolver, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dir:      cfg.Dir,
		pageURL:  strings.TrimRight(cfg.PageURL, "/"),
		resolver: resolver,
		logger:   logger,
	}
}

// Slugify derives the file and page slug from an organization name.
func Slugify(name string) string {
	return slug.Make(name)
}

// Get loads the record for name or, when none exists, creates it by resolving
// the feed locator and saves it. created reports whether a new record was made.
func (r *Registry) Get(ctx context.Context, name string) (rec Record, created bool, err error) {
	s := Slugify(name)
	if s == "" {
		return Record{}, false, fmt.Errorf("organization name %q has no usable characters", name)
	}
	rec, err = r.load(s)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, err
	}

	rec = Record{Name: name, Slug: s}
	locator, err := r.resolver.ResolveLocator(ctx, r.JobsPageURL(rec))
	if err != nil {
		if ctx.Err() != nil {
			return Record{}, false, fmt.Errorf("resolve locator for %s: %w", name, err)
		}
		return Record{}, false, fmt.Errorf("resolve locator for %s: %w: %w", name, crawler.ErrOrganizationUnresolvable, err)
	}
	if locator != "" {
		locator, err = FilterLocatorParams(locator, crawler.LocatorParams)
		if err != nil {
			return Record{}, false, err
		}
	}
	rec.JobsURL = locator
	if err := r.Save(rec); err != nil {
		return Record{}, false, err
	}
	r.logger.Info("created organization record",
		zap.String("organization", rec.Name),
		zap.String("slug", rec.Slug),
		zap.Bool("valid", rec.Valid()),
	)
	return rec, true, nil
}

// Resolve returns a crawl target for name, deleting the record and failing
// with crawler.ErrOrganizationUnresolvable when it has no feed locator.
func (r *Registry) Resolve(ctx context.Context, name string) (crawler.Target, error) {
	rec, _, err := r.Get(ctx, name)
	if err != nil {
		return crawler.Target{}, err
	}
	ok, err := r.Validate(rec)
	if err != nil {
		return crawler.Target{}, err
	}
	if !ok {
		return crawler.Target{}, fmt.Errorf("%s: %w", name, crawler.ErrOrganizationUnresolvable)
	}
	return rec.Target(), nil
}

// Validate deletes an invalid record and reports whether rec is usable.
func (r *Registry) Validate(rec Record) (bool, error) {
	if rec.Valid() {
		return true, nil
	}
	if err := r.Delete(rec.Slug); err != nil {
		return false, err
	}
	r.logger.Warn("removed organization without feed locator", zap.String("organization", rec.Name))
	return false, nil
}

// Save writes the record atomically.
func (r *Registry) Save(rec Record) error {
	if rec.Slug == "" {
		rec.Slug = Slugify(rec.Name)
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create organizations dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal organization: %w", err)
	}
	tmp, err := os.CreateTemp(r.dir, rec.Slug+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp organization file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup after rename
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write organization: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close organization file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path(rec.Slug)); err != nil {
		return fmt.Errorf("rename organization file: %w", err)
	}
	return nil
}

// Delete removes the record file; a missing file is not an error.
func (r *Registry) Delete(s string) error {
	if err := os.Remove(r.path(s)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete organization: %w", err)
	}
	return nil
}

// List returns every saved record ordered by slug.
func (r *Registry) List() ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	slices.Sort(matches)
	records := make([]Record, 0, len(matches))
	for _, path := range matches {
		rec, err := readRecord(path)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// JobsPageURL is the organization page that links to its feed.
func (r *Registry) JobsPageURL(rec Record) string {
	return r.pageURL + "/" + rec.Slug + "/jobs"
}

func (r *Registry) load(s string) (Record, error) {
	return readRecord(r.path(s))
}

func (r *Registry) path(s string) string {
	return filepath.Join(r.dir, s+".json")
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read organization: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode organization %s: %w", filepath.Base(path), err)
	}
	if rec.Slug == "" {
		rec.Slug = Slugify(rec.Name)
	}
	return rec, nil
}

// FilterLocatorParams drops every query parameter of raw not in allowed.
func FilterLocatorParams(raw string, allowed []string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse locator: %w", err)
	}
	q := u.Query()
	for key := range q {
		if !slices.Contains(allowed, key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
