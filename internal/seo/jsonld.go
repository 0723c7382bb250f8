// Package seo builds schema.org JSON-LD payloads for the layout.
package seo

import (
	"encoding/json"
	"strconv"
)

// JSON marshals v to a compact JSON string. It returns an empty string on error.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Organization returns a minimal Organization schema.
func Organization(name, url, logoURL string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	return m
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}

// ProductInfo is what a Product payload needs from the catalog.
type ProductInfo struct {
	ID          string
	Name        string
	Description string
	URL         string
	Image       string
	Price       float64
	Currency    string
}

// Product returns a product schema payload with a single offer.
func Product(p ProductInfo) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Product",
		"name":     p.Name,
		"sku":      p.ID,
	}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if p.URL != "" {
		m["url"] = p.URL
	}
	if p.Image != "" {
		m["image"] = p.Image
	}
	if p.Currency != "" {
		m["offers"] = map[string]any{
			"@type":         "Offer",
			"price":         strconv.FormatFloat(p.Price, 'f', 2, 64),
			"priceCurrency": p.Currency,
			"availability":  "https://schema.org/InStock",
		}
	}
	return m
}

// ItemList lists product pages in display order.
func ItemList(name string, items []ProductInfo) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"url":      it.URL,
			"name":     it.Name,
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "ItemList",
		"name":            name,
		"numberOfItems":   len(items),
		"itemListElement": el,
	}
}
