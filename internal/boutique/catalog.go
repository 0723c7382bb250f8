// Package boutique holds the catalog page logic shared by every front-end:
// category extraction, filtering, the grid render modes and the loading stage.
package boutique

import "strings"

const (
	// Sentinel is the selection meaning "no filter".
	Sentinel = "Tous"
	// PlaceholderCount is the number of skeleton cards shown while loading.
	PlaceholderCount = 8
)

// Product is a read-only catalog record.
type Product struct {
	ID          string
	Name        string
	Price       float64
	Currency    string
	Category    string
	Images      []string
	Description string
}

// Cover returns the first image reference, or "" when the record has none.
func (p Product) Cover() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Categories returns the sentinel followed by the distinct categories of
// products in first-occurrence order.
func Categories(products []Product) []string {
	out := make([]string, 0, 8)
	out = append(out, Sentinel)
	seen := map[string]struct{}{Sentinel: {}}
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Filter returns products whose category equals selection, preserving order.
// The sentinel returns the collection unchanged. No match yields an empty,
// non-nil slice.
func Filter(products []Product, selection string) []Product {
	if selection == Sentinel {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Category == selection {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeSelection trims user input and maps an empty value to the sentinel.
func NormalizeSelection(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Sentinel
	}
	return s
}
