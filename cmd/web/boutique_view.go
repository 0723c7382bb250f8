package main

import (
	"fmt"
	"time"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/format"
	"finitefield.org/saro-web/internal/nav"
)

// cardStagger spaces the entrance animation of consecutive cards.
const cardStagger = 50 * time.Millisecond

// BoutiqueView is the view model shared by the boutique page and its fragments.
type BoutiqueView struct {
	Lang   string
	ViewID string

	Mode         string
	Loading      bool
	Filters      []FilterButton
	Placeholders []int
	Cards        []ProductCard
	EmptyText    string

	SelectURL string
	EventsURL string
	GridURL   string
	ViewURL   string
}

// FilterButton is one entry of the category row.
type FilterButton struct {
	Label  string
	Value  string
	Href   string
	Active bool
}

// ProductCard is a populated grid cell.
type ProductCard struct {
	ID      string
	Name    string
	Price   string
	Image   string
	Href    string
	Stagger string
}

func viewPaths(id string) (selectURL, eventsURL, gridURL, viewURL string) {
	viewURL = nav.BoutiquePath + "/views/" + id
	return viewURL + "/category", viewURL + "/events", viewURL + "/grid", viewURL
}

// buildBoutiqueView maps a grid onto template-friendly rows.
func (a *app) buildBoutiqueView(lang, viewID string, g boutique.Grid) BoutiqueView {
	v := BoutiqueView{
		Lang:      lang,
		ViewID:    viewID,
		Mode:      g.Mode.String(),
		Loading:   g.Mode == boutique.ModeLoading,
		EmptyText: a.i18nOrDefault(lang, "boutique.empty", "Aucun produit trouvé dans cette catégorie."),
	}
	v.SelectURL, v.EventsURL, v.GridURL, v.ViewURL = viewPaths(viewID)

	for _, c := range g.Categories {
		label := c
		if c == boutique.Sentinel {
			label = a.i18nOrDefault(lang, "boutique.filter.all", boutique.Sentinel)
		}
		v.Filters = append(v.Filters, FilterButton{
			Label:  label,
			Value:  c,
			Href:   nav.BoutiqueHref(c, boutique.Sentinel),
			Active: c == g.Selection,
		})
	}

	switch g.Mode {
	case boutique.ModeLoading:
		v.Placeholders = make([]int, g.Placeholders)
		for i := range v.Placeholders {
			v.Placeholders[i] = i
		}
	case boutique.ModePopulated:
		v.Cards = make([]ProductCard, 0, len(g.Products))
		for i, p := range g.Products {
			v.Cards = append(v.Cards, ProductCard{
				ID:      p.ID,
				Name:    p.Name,
				Price:   format.FmtPrice(p.Price, p.Currency, lang),
				Image:   p.Cover(),
				Href:    nav.ProductHref(p.ID),
				Stagger: fmt.Sprintf("%dms", (time.Duration(i) * cardStagger).Milliseconds()),
			})
		}
	}
	return v
}
