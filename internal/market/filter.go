// Package market holds the marketplace flows: narrowing and ordering the
// listing set, placing orders, and the buyer's local view of both.
package market

import (
	"slices"
	"strings"

	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey string

const (
	SortName      SortKey = "name"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortNewest    SortKey = "newest"
	// SortRating keeps the incoming order. Listings carry no rating.
	SortRating SortKey = "rating"
)

// All disables the category or province filter. The empty string does too.
const All = "all"

// Criteria is the filter and sort state of the listing grid. Nil price bounds
// mean 0 and unbounded.
type Criteria struct {
	Search   string
	Category string
	Province string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	Sort     SortKey
}

// Match reports whether item passes every active filter.
func (c Criteria) Match(item models.MarketplaceItem) bool {
	if c.Search != "" {
		term := strings.ToLower(c.Search)
		if !containsFold(item.Name, term) &&
			!containsFold(item.Description, term) &&
			!containsFold(item.SellerName, term) &&
			!containsFold(item.Type, term) {
			return false
		}
	}

	if c.Category != "" && c.Category != All && string(item.Category) != c.Category {
		return false
	}

	if c.Province != "" && c.Province != All && item.Location.Province != c.Province {
		return false
	}

	if c.PriceMin != nil && item.Price.LessThan(*c.PriceMin) {
		return false
	}
	if c.PriceMax != nil && item.Price.GreaterThan(*c.PriceMax) {
		return false
	}

	return true
}

func containsFold(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

// Apply returns the items matching c, stably sorted by c.Sort. The input is
// not modified and the result is never nil.
func Apply(items []models.MarketplaceItem, c Criteria) []models.MarketplaceItem {
	out := make([]models.MarketplaceItem, 0, len(items))
	for _, item := range items {
		if c.Match(item) {
			out = append(out, item)
		}
	}

	if cmp := comparator(c.Sort); cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}

func comparator(key SortKey) func(a, b models.MarketplaceItem) int {
	switch key {
	case SortPriceLow:
		return func(a, b models.MarketplaceItem) int { return a.Price.Cmp(b.Price) }
	case SortPriceHigh:
		return func(a, b models.MarketplaceItem) int { return b.Price.Cmp(a.Price) }
	case SortNewest:
		return func(a, b models.MarketplaceItem) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case SortRating:
		return nil
	default:
		// Collators are not safe for concurrent use.
		col := collate.New(language.English)
		return func(a, b models.MarketplaceItem) int { return col.CompareString(a.Name, b.Name) }
	}
}

// ParseSortKey maps a query value onto a SortKey, falling back to SortName.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(s); k {
	case SortPriceLow, SortPriceHigh, SortNewest, SortRating:
		return k
	}
	return SortName
}
