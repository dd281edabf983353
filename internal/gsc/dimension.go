package gsc

import (
	"fmt"
	"strings"
)

// Dimension is a categorical axis along which analytics rows are grouped.
type Dimension string

// Known dimensions.
const (
	DimensionQuery            Dimension = "query"
	DimensionPage             Dimension = "page"
	DimensionCountry          Dimension = "country"
	DimensionDevice           Dimension = "device"
	DimensionSearchAppearance Dimension = "searchAppearance"
	DimensionDate             Dimension = "date"
)

var knownDimensions = map[Dimension]struct{}{
	DimensionQuery:            {},
	DimensionPage:             {},
	DimensionCountry:          {},
	DimensionDevice:           {},
	DimensionSearchAppearance: {},
	DimensionDate:             {},
}

// Valid reports whether d is in the known catalog.
func (d Dimension) Valid() bool {
	_, ok := knownDimensions[d]
	return ok
}

// DimensionSet is an ordered combination of dimensions requested together.
type DimensionSet []Dimension

// Key renders the set as a comma-joined string, e.g. "query,page".
func (s DimensionSet) Key() string {
	return strings.Join(s.Strings(), ",")
}

// Strings returns the dimension names in order.
func (s DimensionSet) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = string(d)
	}
	return out
}

// Index returns the position of d in the set or -1.
func (s DimensionSet) Index(d Dimension) int {
	for i, candidate := range s {
		if candidate == d {
			return i
		}
	}
	return -1
}

// Validate checks that the set is non-empty, known and free of duplicates.
func (s DimensionSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: dimension set is empty", ErrInvalidDimension)
	}
	seen := make(map[Dimension]struct{}, len(s))
	for _, d := range s {
		if !d.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidDimension, string(d))
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("%w: duplicate %q", ErrInvalidDimension, string(d))
		}
		seen[d] = struct{}{}
	}
	return nil
}

// ParseDimensionSet parses a comma-joined key such as "query,device".
func ParseDimensionSet(key string) (DimensionSet, error) {
	var set DimensionSet
	for _, part := range strings.Split(key, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		set = append(set, Dimension(part))
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// ParseCatalog parses a list of dimension-set keys.
func ParseCatalog(keys []string) ([]DimensionSet, error) {
	catalog := make([]DimensionSet, 0, len(keys))
	for _, key := range keys {
		set, err := ParseDimensionSet(key)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", key, err)
		}
		catalog = append(catalog, set)
	}
	return catalog, nil
}

// DefaultCatalogKeys lists the dimension sets synced per pass unless
// configured otherwise.
var DefaultCatalogKeys = []string{
	"query",
	"page",
	"country",
	"device",
	"query,page",
	"query,device",
	"page,device",
}

// DefaultCatalog returns DefaultCatalogKeys parsed.
func DefaultCatalog() []DimensionSet {
	return []DimensionSet{
		{DimensionQuery},
		{DimensionPage},
		{DimensionCountry},
		{DimensionDevice},
		{DimensionQuery, DimensionPage},
		{DimensionQuery, DimensionDevice},
		{DimensionPage, DimensionDevice},
	}
}
