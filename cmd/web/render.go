package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	handlersPkg "finitefield.org/saro-web/internal/handlers"
	"finitefield.org/saro-web/internal/i18n"
	mw "finitefield.org/saro-web/internal/middleware"
	"finitefield.org/saro-web/internal/observability"
	"finitefield.org/saro-web/internal/seo"
)

// templateSet holds the shared layout + partials and one clone per page.
type templateSet struct {
	base  *template.Template
	pages map[string]*template.Template
}

// renderer parses templates once, or on every request in dev mode.
type renderer struct {
	dir    string
	dev    bool
	bundle *i18n.Bundle

	mu     sync.Mutex
	cached *templateSet
}

func newRenderer(dir string, dev bool, bundle *i18n.Bundle) (*renderer, error) {
	rd := &renderer{dir: dir, dev: dev, bundle: bundle}
	set, err := rd.parse()
	if err != nil {
		return nil, err
	}
	rd.cached = set
	return rd, nil
}

func (rd *renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"now": time.Now,
		"t": func(lang, key string) string {
			return rd.bundle.T(lang, key)
		},
		"safeJSON": func(s string) template.JS {
			return template.JS(s)
		},
	}
}

// parse discovers every .tmpl file. Files under pages/ each get their own
// clone of the shared set so they can all define "content".
func (rd *renderer) parse() (*templateSet, error) {
	var shared, pages []string
	if err := filepath.WalkDir(rd.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".tmpl") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "pages" {
			pages = append(pages, path)
		} else {
			shared = append(shared, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(shared) == 0 {
		return nil, fmt.Errorf("no templates found under %s", rd.dir)
	}
	base, err := template.New("_root").Funcs(rd.funcs()).ParseFiles(shared...)
	if err != nil {
		return nil, err
	}
	set := &templateSet{base: base, pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFiles(p); err != nil {
			return nil, err
		}
		set.pages[strings.TrimSuffix(filepath.Base(p), ".tmpl")] = clone
	}
	return set, nil
}

func (rd *renderer) current() (*templateSet, error) {
	if rd.dev {
		return rd.parse()
	}
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.cached == nil {
		set, err := rd.parse()
		if err != nil {
			return nil, err
		}
		rd.cached = set
	}
	return rd.cached, nil
}

// page executes the base layout around the named page.
func (rd *renderer) page(w io.Writer, name string, data any) error {
	set, err := rd.current()
	if err != nil {
		return fmt.Errorf("template parse: %w", err)
	}
	t, ok := set.pages[name]
	if !ok {
		return fmt.Errorf("template page %q not found", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}

// fragment executes a shared partial such as frag_boutique.
func (rd *renderer) fragment(w io.Writer, name string, data any) error {
	set, err := rd.current()
	if err != nil {
		return fmt.Errorf("template parse: %w", err)
	}
	return set.base.ExecuteTemplate(w, name, data)
}

// renderPage buffers the full page so a template error still yields a clean 500.
func (a *app) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	a.renderPageStatus(w, r, http.StatusOK, name, data)
}

func (a *app) renderPageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := a.tmpl.page(&buf, name, data); err != nil {
		observability.FromContext(r.Context()).Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderTemplate writes an htmx fragment.
func (a *app) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	a.renderTemplateStatus(w, r, http.StatusOK, name, data)
}

func (a *app) renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := a.tmpl.fragment(&buf, name, data); err != nil {
		observability.FromContext(r.Context()).Error("render fragment", zap.String("fragment", name), zap.Error(err))
		mw.WriteError(w, r, http.StatusInternalServerError, "template exec error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// i18nOrDefault returns the translation for key or def when the key is unknown.
func (a *app) i18nOrDefault(lang, key, def string) string {
	if a.bundle == nil {
		return def
	}
	if v, ok := a.bundle.Lookup(lang, key); ok {
		return v
	}
	return def
}

// absoluteURL rebuilds the request URL against the configured base URL, or
// the request host when none is configured.
func (a *app) absoluteURL(r *http.Request) string {
	return a.absolutePath(r, r.URL.RequestURI())
}

func (a *app) absolutePath(r *http.Request, path string) string {
	if a.cfg.Site.BaseURL != "" {
		return a.cfg.Site.BaseURL + path
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}

// buildAlternates lists the page in every supported language via ?hl=.
func (a *app) buildAlternates(r *http.Request) []handlersPkg.Alternate {
	var out []handlersPkg.Alternate
	for _, lang := range a.bundle.Supported() {
		u := *r.URL
		q := u.Query()
		q.Set("hl", lang)
		u.RawQuery = q.Encode()
		out = append(out, handlersPkg.Alternate{Href: a.absolutePath(r, u.RequestURI()), Hreflang: lang})
	}
	u := *r.URL
	q := u.Query()
	q.Del("hl")
	u.RawQuery = q.Encode()
	out = append(out, handlersPkg.Alternate{Href: a.absolutePath(r, u.RequestURI()), Hreflang: "x-default"})
	return out
}

// canonicalURL drops the language switch so every variant shares one canonical.
// organizationJSONLD describes the shop itself; every page carries it.
func (a *app) organizationJSONLD(r *http.Request, brand string) string {
	return seo.JSON(seo.Organization(brand, a.absolutePath(r, "/"), ""))
}

func (a *app) canonicalURL(r *http.Request) string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Del("hl")
	u.RawQuery = q.Encode()
	return a.absolutePath(r, u.RequestURI())
}
