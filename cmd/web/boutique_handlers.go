package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/cms"
	handlersPkg "finitefield.org/saro-web/internal/handlers"
	"finitefield.org/saro-web/internal/live"
	mw "finitefield.org/saro-web/internal/middleware"
	"finitefield.org/saro-web/internal/nav"
	"finitefield.org/saro-web/internal/observability"
	"finitefield.org/saro-web/internal/seo"
)

const (
	gridEvent        = "grid"
	defaultKeepAlive = 25 * time.Second
	boutiqueFragment = "frag_boutique"
	viewGoneFragment = "frag_view_gone"
	heroContentKind  = "pages"
	heroContentSlug  = "boutique"
)

// HeroView is the copy above the catalog.
type HeroView struct {
	Title    string
	Subtitle string
}

// BoutiqueHandler mounts a fresh view and renders the catalog page in its
// loading state.
func (a *app) BoutiqueHandler(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	selection := boutique.NormalizeSelection(r.URL.Query().Get(nav.CategoryParam))
	m := a.views.Mount(selection)
	view := a.buildBoutiqueView(lang, m.ID, m.Grid())

	hero := a.loadHero(r, lang)
	title := a.i18nOrDefault(lang, "boutique.title", "Boutique")
	brand := a.i18nOrDefault(lang, "brand.name", "Saro")

	vm := handlersPkg.PageData{
		Title:       title,
		Lang:        lang,
		Path:        r.URL.Path,
		Nav:         nav.Build(r.URL.Path),
		Breadcrumbs: nav.Breadcrumbs(r.URL.Path),
		Analytics:   a.analytics,
		CSRFToken:   mw.CSRFToken(r),
		Hero:        hero,
		Boutique:    view,
	}
	vm.SEO.Title = firstNonEmpty(hero.SEOTitle, title+" | "+brand)
	vm.SEO.Description = firstNonEmpty(hero.SEODescription, hero.Subtitle)
	vm.SEO.Canonical = a.canonicalURL(r)
	vm.SEO.OG.URL = a.absoluteURL(r)
	vm.SEO.OG.SiteName = brand
	vm.SEO.OG.Title = vm.SEO.Title
	vm.SEO.OG.Description = vm.SEO.Description
	vm.SEO.OG.Type = "website"
	vm.SEO.Alternates = a.buildAlternates(r)
	vm.SEO.JSONLD = []string{
		a.organizationJSONLD(r, brand),
		seo.JSON(seo.ItemList(title, a.productInfos(r))),
		seo.JSON(seo.BreadcrumbList(a.breadcrumbItems(r, lang, vm.Breadcrumbs))),
	}

	// the page embeds a view id, so it must never be served from a cache
	w.Header().Set("Cache-Control", "no-store")
	a.renderPage(w, r, "boutique", vm)
}

type heroCopy struct {
	HeroView
	SEOTitle       string
	SEODescription string
}

func (a *app) loadHero(r *http.Request, lang string) heroCopy {
	hero := heroCopy{HeroView: HeroView{
		Title:    a.i18nOrDefault(lang, "boutique.hero.title", "Notre Boutique"),
		Subtitle: a.i18nOrDefault(lang, "boutique.hero.subtitle", "Explorez nos collections, conçues pour toute la famille."),
	}}
	page, err := a.content.GetPage(r.Context(), heroContentKind, heroContentSlug, lang)
	switch {
	case err == nil:
		hero.Title = firstNonEmpty(page.Title, hero.Title)
		hero.Subtitle = firstNonEmpty(page.Summary, hero.Subtitle)
		hero.SEOTitle = page.SEO.Title
		hero.SEODescription = page.SEO.Description
	case errors.Is(err, cms.ErrNotFound):
	default:
		observability.FromContext(r.Context()).Warn("hero copy unavailable", zap.Error(err))
	}
	return hero
}

func (a *app) productInfos(r *http.Request) []seo.ProductInfo {
	products := a.catalog.Products()
	out := make([]seo.ProductInfo, 0, len(products))
	for _, p := range products {
		out = append(out, seo.ProductInfo{
			ID:       p.ID,
			Name:     p.Name,
			URL:      a.absolutePath(r, nav.ProductHref(p.ID)),
			Image:    p.Cover(),
			Price:    p.Price,
			Currency: p.Currency,
		})
	}
	return out
}

func (a *app) breadcrumbItems(r *http.Request, lang string, crumbs []nav.Crumb) []seo.BreadcrumbItem {
	items := make([]seo.BreadcrumbItem, 0, len(crumbs))
	for _, c := range crumbs {
		name := c.Label
		if c.LabelKey != "" {
			name = a.i18nOrDefault(lang, c.LabelKey, c.Label)
		}
		items = append(items, seo.BreadcrumbItem{Name: name, Item: a.absolutePath(r, c.Href)})
	}
	return items
}

// mountedView resolves {id}. Unknown or expired views get a 404 fragment
// asking the client to reload; they never fall back to a loading state.
func (a *app) mountedView(w http.ResponseWriter, r *http.Request) (*live.Mounted, bool) {
	m, err := a.views.Get(chi.URLParam(r, "id"))
	if err == nil {
		return m, true
	}
	lang := mw.Lang(r)
	data := map[string]any{
		"Lang":      lang,
		"ReloadURL": nav.BoutiquePath,
		"Message":   a.i18nOrDefault(lang, "boutique.view_gone", "Cette page a expiré. Rechargez-la pour continuer."),
	}
	a.renderTemplateStatus(w, r, http.StatusNotFound, viewGoneFragment, data)
	return nil, false
}

// BoutiqueSelectHandler applies a category selection and returns the filter
// row and grid.
func (a *app) BoutiqueSelectHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.mountedView(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		mw.WriteError(w, r, http.StatusBadRequest, "invalid form")
		return
	}
	g := m.Select(r.FormValue(nav.CategoryParam))
	hx := mw.HTMXFrom(r.Context())
	observability.FromContext(r.Context()).Debug("category selected",
		zap.String("view_id", m.ID),
		zap.String("selection", g.Selection),
		zap.String("hx_trigger", hx.Trigger),
	)
	w.Header().Set("HX-Push-Url", nav.BoutiqueHref(g.Selection, boutique.Sentinel))
	a.renderTemplate(w, r, boutiqueFragment, a.buildBoutiqueView(mw.Lang(r), m.ID, g))
}

// BoutiqueGridHandler returns the current fragment for clients without event streams.
func (a *app) BoutiqueGridHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.mountedView(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	a.renderTemplate(w, r, boutiqueFragment, a.buildBoutiqueView(mw.Lang(r), m.ID, m.Grid()))
}

// BoutiqueUnmountHandler tears the view down when the page goes away.
func (a *app) BoutiqueUnmountHandler(w http.ResponseWriter, r *http.Request) {
	if !a.views.Unmount(chi.URLParam(r, "id")) {
		mw.WriteError(w, r, http.StatusNotFound, "view not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BoutiqueEventsHandler streams the fragment every time the view changes.
// A dropped stream only unsubscribes: the page may still be open and the
// client reconnects. Teardown is left to DELETE, the idle sweep and shutdown.
func (a *app) BoutiqueEventsHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.mountedView(w, r)
	if !ok {
		return
	}
	logger := observability.FromContext(r.Context()).With(zap.String("view_id", m.ID))
	lang := mw.Lang(r)
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	ch, cancel := m.Subscribe()
	defer func() {
		cancel()
		m.Touch()
	}()

	var buf bytes.Buffer
	send := func(g boutique.Grid) error {
		buf.Reset()
		if err := a.tmpl.fragment(&buf, boutiqueFragment, a.buildBoutiqueView(lang, m.ID, g)); err != nil {
			return err
		}
		if err := writeEvent(w, gridEvent, buf.Bytes()); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.WriteHeader(http.StatusOK)
	if err := send(m.Grid()); err != nil {
		logger.Error("event stream failed", zap.Error(err))
		return
	}

	keepAlive := a.keepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("event stream closed by client")
			return
		case _, open := <-ch:
			if !open {
				return
			}
			if err := send(m.Grid()); err != nil {
				logger.Warn("event stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
			m.Touch()
		}
	}
}

// writeEvent frames data as one server-sent event, one data line per line.
func writeEvent(w io.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if _, err := fmt.Fprintf(w, "data: %s\n", bytes.TrimRight(line, "\r")); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
