package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type SortOrder string

const (
	SortFeatured  SortOrder = "featured"
	SortName      SortOrder = "name"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
)

type Query struct {
	Category Category
	Search   string
	Sort     SortOrder
}

var ErrUnknownSort = errors.New("unknown sort order")

// ParseQuery builds a Query from user input. Empty values select every
// category and the featured order.
func ParseQuery(category, search, sortOrder string) (Query, error) {
	q := Query{Category: Category(category), Search: search, Sort: SortOrder(sortOrder)}
	if q.Category != "" && q.Category != CategoryAll && !q.Category.Valid() {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	switch q.Sort {
	case "", SortFeatured, SortName, SortPriceLow, SortPriceHigh:
	default:
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownSort, sortOrder)
	}
	return q, nil
}

// Browse filters and sorts products. Unknown sort orders keep catalog order.
func (c *Catalog) Browse(q Query) []Product {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	result := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if q.Category != "" && q.Category != CategoryAll && p.Category != q.Category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		result = append(result, p)
	}

	switch q.Sort {
	case SortFeatured, "":
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].IsFeatured && !result[j].IsFeatured
		})
	case SortName:
		sort.SliceStable(result, func(i, j int) bool {
			return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
		})
	case SortPriceLow:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Price < result[j].Price
		})
	case SortPriceHigh:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Price > result[j].Price
		})
	}
	return result
}
