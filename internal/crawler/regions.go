package crawler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Region is a supported geographic filter code (ISO 3166-1 alpha-2, with UK
// for Great Britain). The zero value means no region filter.
type Region string

// Supported regions.
const (
	RegionNone Region = ""
	RegionAU   Region = "AU"
	RegionBE   Region = "BE"
	RegionBR   Region = "BR"
	RegionCA   Region = "CA"
	RegionDE   Region = "DE"
	RegionFR   Region = "FR"
	RegionNL   Region = "NL"
	RegionPL   Region = "PL"
	RegionUK   Region = "UK"
	RegionUS   Region = "US"
)

var regionFilters = map[Region]int64{
	RegionAU: 101452733,
	RegionBE: 100565514,
	RegionBR: 106057199,
	RegionCA: 101174742,
	RegionDE: 101282230,
	RegionFR: 105015875,
	RegionNL: 102890719,
	RegionPL: 105072130,
	RegionUK: 101165590,
	RegionUS: 103644278,
}

// ParseRegion resolves a region code case-insensitively. An empty code returns
// RegionNone.
func ParseRegion(code string) (Region, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return RegionNone, nil
	}
	r := Region(code)
	if _, ok := regionFilters[r]; !ok {
		return RegionNone, fmt.Errorf("unsupported region %q (choose from %s)", code, strings.Join(RegionCodes(), ", "))
	}
	return r, nil
}

// RegionCodes lists the supported region codes in sorted order.
func RegionCodes() []string {
	codes := make([]string, 0, len(regionFilters))
	for r := range regionFilters {
		codes = append(codes, string(r))
	}
	slices.Sort(codes)
	return codes
}

// FilterValue returns the feed's numeric filter for the region.
func (r Region) FilterValue() (string, bool) {
	v, ok := regionFilters[r]
	if !ok {
		return "", false
	}
	return strconv.FormatInt(v, 10), true
}
