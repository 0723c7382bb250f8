// Package cms serves localized page copy from local markdown files with YAML
// front matter.
package cms

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no localized variant of a page exists.
var ErrNotFound = errors.New("cms: not found")

const (
	defaultContentDir = "content"
	defaultCacheTTL   = 5 * time.Minute
)

// Page is a localized piece of copy, e.g. the catalog hero.
type Page struct {
	Kind      string
	Slug      string
	Lang      string
	Title     string
	Summary   string
	Body      string
	HTML      template.HTML
	UpdatedAt time.Time
	SEO       PageSEO
}

// PageSEO holds optional metadata overrides.
type PageSEO struct {
	Title       string
	Description string
	OGImage     string
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	Lang      string `yaml:"lang"`
	UpdatedAt string `yaml:"updated_at"`
	SEO       struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		OGImage     string `yaml:"og_image"`
	} `yaml:"seo"`
}

// Client reads pages from <dir>/<kind>/<lang>/<slug>.md and caches them.
type Client struct {
	dir      string
	fallback string
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	page    Page
	expires time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithCacheTTL overrides the cache duration. Zero or less disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.ttl = d }
}

// WithNow injects the clock used for cache expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a Client rooted at dir falling back to fallbackLang.
func NewClient(dir, fallbackLang string, opts ...Option) *Client {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultContentDir
	}
	c := &Client{
		dir:      dir,
		fallback: normalizeLang(fallbackLang),
		ttl:      defaultCacheTTL,
		now:      time.Now,
		cache:    map[string]cacheEntry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPage returns the page in lang, falling back to the default language.
func (c *Client) GetPage(ctx context.Context, kind, slug, lang string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	kind = sanitizeSlug(kind)
	slug = sanitizeSlug(slug)
	if kind == "" || slug == "" {
		return Page{}, ErrNotFound
	}
	lang = normalizeLang(lang)

	key := strings.Join([]string{kind, lang, slug}, "|")
	if page, ok := c.cached(key); ok {
		return page, nil
	}

	priority := []string{lang}
	if c.fallback != "" && c.fallback != lang {
		priority = append(priority, c.fallback)
	}
	for _, candidate := range priority {
		if candidate == "" {
			continue
		}
		page, err := c.read(kind, slug, candidate)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Page{}, err
		}
		c.store(key, page)
		return page, nil
	}
	return Page{}, ErrNotFound
}

func (c *Client) read(kind, slug, lang string) (Page, error) {
	file := filepath.Join(c.dir, kind, lang, slug+".md")
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("cms: read %s: %w", file, err)
	}

	fm, body := splitFrontMatter(string(data))
	var front frontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("cms: parse front matter %s: %w", file, err)
		}
	}
	page := Page{
		Kind:      kind,
		Slug:      slug,
		Lang:      firstNonEmpty(strings.TrimSpace(front.Lang), lang),
		Title:     strings.TrimSpace(front.Title),
		Summary:   strings.TrimSpace(front.Summary),
		Body:      body,
		HTML:      RenderMarkdown(body),
		UpdatedAt: parseDate(front.UpdatedAt),
		SEO: PageSEO{
			Title:       strings.TrimSpace(front.SEO.Title),
			Description: strings.TrimSpace(front.SEO.Description),
			OGImage:     strings.TrimSpace(front.SEO.OGImage),
		},
	}
	if page.UpdatedAt.IsZero() {
		if info, err := os.Stat(file); err == nil {
			page.UpdatedAt = info.ModTime()
		}
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	return page, nil
}

func (c *Client) cached(key string) (Page, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return Page{}, false
	}
	return entry.page, true
}

func (c *Client) store(key string, page Page) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[key] = cacheEntry{page: page, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func prettifySlug(slug string) string {
	parts := strings.Split(strings.TrimSpace(slug), "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		r := []rune(part)
		if r[0] >= 'a' && r[0] <= 'z' {
			r[0] -= 'a' - 'A'
		}
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func sanitizeSlug(slug string) string {
	slug = strings.Trim(strings.TrimSpace(strings.ToLower(slug)), "/")
	if slug == "" || strings.Contains(slug, "..") || strings.ContainsAny(slug, `/\`) {
		return ""
	}
	return slug
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
