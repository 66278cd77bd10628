// Package extract turns listing and detail markup into structured postings.
// Both entry points are pure: no I/O and no shared state.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

// Listing card markers.
const (
	cardSelector         = ".job-search-card"
	entityURNAttr        = "data-entity-urn"
	titleSelector        = ".base-search-card__title"
	locationSelector     = ".job-search-card__location"
	salarySelector       = ".job-search-card__salary-info"
	organizationSelector = ".base-search-card__subtitle"
	postedAtSelector     = "time[datetime]"
	postedAtLayout       = "2006-01-02"
)

var sourceIDPattern = regexp.MustCompile(`\d+`)

// Listing is the result of extracting one listing page.
type Listing struct {
	Candidates []crawler.PostingCandidate
	// Skipped holds one *crawler.MalformedCardError per card that was dropped.
	Skipped []error
}

// ExtractListing parses every card of a listing page. A malformed card is
// reported in Skipped and never aborts the rest of the page. The organization
// falls back to fallbackOrganization when a card has no subtitle.
func ExtractListing(body []byte, fallbackOrganization string) (Listing, error) {
	doc, err := parse(body)
	if err != nil {
		return Listing{}, err
	}

	var listing Listing
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		candidate, err := parseCard(i, card, fallbackOrganization)
		if err != nil {
			listing.Skipped = append(listing.Skipped, err)
			return
		}
		listing.Candidates = append(listing.Candidates, candidate)
	})
	return listing, nil
}

func parseCard(index int, card *goquery.Selection, fallbackOrganization string) (crawler.PostingCandidate, error) {
	urn, ok := card.Attr(entityURNAttr)
	if !ok {
		return crawler.PostingCandidate{}, &crawler.MalformedCardError{Index: index, Message: "missing " + entityURNAttr}
	}
	digits := sourceIDPattern.FindString(urn)
	if digits == "" {
		return crawler.PostingCandidate{}, &crawler.MalformedCardError{
			Index:   index,
			Message: fmt.Sprintf("no numeric id in %q", urn),
		}
	}
	sourceID, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return crawler.PostingCandidate{}, &crawler.MalformedCardError{Index: index, Message: "invalid id", Cause: err}
	}

	title := findText(card, titleSelector)
	if title == nil {
		return crawler.PostingCandidate{}, &crawler.MalformedCardError{
			Index:   index,
			Message: fmt.Sprintf("posting %d has no title", sourceID),
		}
	}

	candidate := crawler.PostingCandidate{
		SourceID:     sourceID,
		Title:        *title,
		Organization: fallbackOrganization,
		Salary:       findText(card, salarySelector),
		PostedAt:     findDate(card),
	}
	if location := findText(card, locationSelector); location != nil {
		candidate.Location = *location
	}
	if organization := findText(card, organizationSelector); organization != nil {
		candidate.Organization = *organization
	}
	return candidate, nil
}

// findText returns the trimmed text of the first match, or nil when the marker
// is missing or blank.
func findText(s *goquery.Selection, selector string) *string {
	match := s.Find(selector).First()
	if match.Length() == 0 {
		return nil
	}
	text := strings.TrimSpace(match.Text())
	if text == "" {
		return nil
	}
	return &text
}

func findDate(s *goquery.Selection) time.Time {
	raw, ok := s.Find(postedAtSelector).First().Attr("datetime")
	if !ok {
		return time.Time{}
	}
	posted, err := time.Parse(postedAtLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return posted
}

func parse(body []byte) (*goquery.Document, error) {
	if !utf8.Valid(body) {
		return nil, &crawler.UnparseableDocumentError{Message: "body is not valid UTF-8"}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &crawler.UnparseableDocumentError{Message: "failed to parse HTML", Cause: err}
	}
	return doc, nil
}
