// Package handlers holds the view models shared by page templates.
package handlers

import (
	"finitefield.org/saro-web/internal/nav"
)

// PageData is a generic view model for pages using the shared layout.
type PageData struct {
	Title     string
	Lang      string
	SEO       SEOData
	Analytics Analytics
	CSRFToken string

	Path        string
	Nav         []nav.RenderedItem
	Breadcrumbs []nav.Crumb

	// Optional per-page view model payloads
	Hero     any
	Boutique any
	Product  any
}

// SEOData is a lightweight copy to avoid importing the seo package here.
type SEOData struct {
	Title       string
	Description string
	Canonical   string
	Robots      string
	OG          OpenGraph
	Alternates  []Alternate
	JSONLD      []string
}

// OpenGraph fields rendered as og:* meta tags.
type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	URL         string
	SiteName    string
}

// Alternate is an hreflang link.
type Alternate struct {
	Href     string
	Hreflang string
}
