package main

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/catalog"
	"finitefield.org/saro-web/internal/cms"
	"finitefield.org/saro-web/internal/format"
	handlersPkg "finitefield.org/saro-web/internal/handlers"
	mw "finitefield.org/saro-web/internal/middleware"
	"finitefield.org/saro-web/internal/nav"
	"finitefield.org/saro-web/internal/observability"
	"finitefield.org/saro-web/internal/seo"
)

// ProductView is the details page model.
type ProductView struct {
	ID           string
	Name         string
	Price        string
	Category     string
	CategoryHref string
	Cover        string
	Gallery      []string
	Description  template.HTML
	BackHref     string
}

func buildProductView(p boutique.Product, lang string) ProductView {
	v := ProductView{
		ID:           p.ID,
		Name:         p.Name,
		Price:        format.FmtPrice(p.Price, p.Currency, lang),
		Category:     p.Category,
		CategoryHref: nav.BoutiqueHref(p.Category, boutique.Sentinel),
		Cover:        p.Cover(),
		Description:  cms.RenderMarkdown(p.Description),
		BackHref:     nav.BoutiquePath,
	}
	if len(p.Images) > 1 {
		v.Gallery = append([]string(nil), p.Images[1:]...)
	}
	return v
}

// ProductHandler renders the details page a product card links to.
func (a *app) ProductHandler(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	p, err := a.catalog.Product(chi.URLParam(r, "productID"))
	if errors.Is(err, catalog.ErrProductNotFound) {
		a.NotFoundHandler(w, r)
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).Error("product lookup", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	view := buildProductView(p, lang)
	brand := a.i18nOrDefault(lang, "brand.name", "Saro")
	crumbs := nav.Breadcrumbs(r.URL.Path)
	crumbs[len(crumbs)-1].Label = p.Name

	vm := handlersPkg.PageData{
		Title:       p.Name,
		Lang:        lang,
		Path:        r.URL.Path,
		Nav:         nav.Build(r.URL.Path),
		Breadcrumbs: crumbs,
		Analytics:   a.analytics,
		CSRFToken:   mw.CSRFToken(r),
		Product:     view,
	}
	vm.SEO.Title = p.Name + " | " + brand
	vm.SEO.Description = p.Category + " · " + view.Price
	vm.SEO.Canonical = a.canonicalURL(r)
	vm.SEO.OG.URL = a.absoluteURL(r)
	vm.SEO.OG.SiteName = brand
	vm.SEO.OG.Title = vm.SEO.Title
	vm.SEO.OG.Description = vm.SEO.Description
	vm.SEO.OG.Image = view.Cover
	vm.SEO.OG.Type = "product"
	vm.SEO.Alternates = a.buildAlternates(r)
	vm.SEO.JSONLD = []string{
		a.organizationJSONLD(r, brand),
		seo.JSON(seo.Product(seo.ProductInfo{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			URL:         a.canonicalURL(r),
			Image:       view.Cover,
			Price:       p.Price,
			Currency:    p.Currency,
		})),
		seo.JSON(seo.BreadcrumbList(a.breadcrumbItems(r, lang, crumbs))),
	}
	a.renderPage(w, r, "product", vm)
}

// NotFoundHandler renders the shared 404 page.
func (a *app) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	if mw.IsHTMX(r.Context()) {
		mw.WriteError(w, r, http.StatusNotFound, "not found")
		return
	}
	lang := mw.Lang(r)
	title := a.i18nOrDefault(lang, "notfound.title", "Page introuvable")
	vm := handlersPkg.PageData{
		Title:       title,
		Lang:        lang,
		Path:        r.URL.Path,
		Nav:         nav.Build(r.URL.Path),
		Breadcrumbs: nav.Breadcrumbs("/"),
		Analytics:   a.analytics,
		CSRFToken:   mw.CSRFToken(r),
	}
	vm.SEO.Title = title + " | " + a.i18nOrDefault(lang, "brand.name", "Saro")
	vm.SEO.Robots = "noindex"
	a.renderPageStatus(w, r, http.StatusNotFound, "not_found", vm)
}
