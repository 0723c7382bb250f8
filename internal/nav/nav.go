// Package nav builds the main navigation, breadcrumbs and catalog links.
package nav

import (
	"net/url"
	"path"
	"strings"
)

// Item represents a top-level navigation item.
type Item struct {
	Path     string // e.g. "/boutique"
	LabelKey string // i18n key, e.g. "nav.boutique"
}

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Href     string
	LabelKey string
	Active   bool
}

// Crumb represents a breadcrumb entry. If LabelKey is empty, use Label.
type Crumb struct {
	Href     string
	LabelKey string
	Label    string
	Active   bool
}

// BoutiquePath is the catalog page.
const BoutiquePath = "/boutique"

// CategoryParam preselects a category on the catalog page.
const CategoryParam = "categorie"

// Main is the primary navigation definition.
var Main = []Item{
	{Path: "/", LabelKey: "nav.home"},
	{Path: BoutiquePath, LabelKey: "nav.boutique"},
}

// Build renders navigation items with active state given the current path.
func Build(currentPath string) []RenderedItem {
	if currentPath == "" {
		currentPath = "/"
	}
	items := make([]RenderedItem, 0, len(Main))
	for _, it := range Main {
		items = append(items, RenderedItem{
			Href:     it.Path,
			LabelKey: it.LabelKey,
			Active:   isActive(it.Path, currentPath),
		})
	}
	return items
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == "/" {
		return currentPath == "/"
	}
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}

// Breadcrumbs builds breadcrumb entries from the current path.
// Home comes first, known sections use their nav label key and deeper
// segments get a prettified label the caller may replace.
func Breadcrumbs(currentPath string) []Crumb {
	if currentPath == "" {
		currentPath = "/"
	}
	crumbs := []Crumb{{Href: "/", LabelKey: "nav.home", Active: currentPath == "/"}}
	clean := path.Clean(currentPath)
	if clean == "/" || clean == "." {
		return crumbs
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")

	top := "/" + parts[0]
	labelKey := ""
	for _, it := range Main {
		if it.Path == top {
			labelKey = it.LabelKey
			break
		}
	}
	crumbs = append(crumbs, Crumb{Href: top, LabelKey: labelKey, Label: titleFromSegment(parts[0]), Active: len(parts) == 1})

	href := top
	for i := 1; i < len(parts); i++ {
		href += "/" + parts[i]
		crumbs = append(crumbs, Crumb{
			Href:   href,
			Label:  titleFromSegment(parts[i]),
			Active: i == len(parts)-1,
		})
	}
	return crumbs
}

// ProductHref is the details link for a product.
func ProductHref(id string) string {
	return BoutiquePath + "/" + url.PathEscape(id)
}

// BoutiqueHref links to the catalog with category preselected. The sentinel
// or an empty category yields the bare catalog path.
func BoutiqueHref(category, sentinel string) string {
	category = strings.TrimSpace(category)
	if category == "" || category == sentinel {
		return BoutiquePath
	}
	return BoutiquePath + "?" + url.Values{CategoryParam: {category}}.Encode()
}

func titleFromSegment(seg string) string {
	if seg == "" {
		return seg
	}
	s := strings.ReplaceAll(seg, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
