package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"finitefield.org/saro-web/internal/i18n"
)

func newTestBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fr.json"), []byte(`{"hello":"bonjour"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{"hello":"hello"}`), 0o600))
	b, err := i18n.Load(dir, "fr", []string{"fr", "en"})
	require.NoError(t, err)
	return b
}

func newTestStack(t *testing.T) (http.Handler, *Sessions) {
	t.Helper()
	store := NewSessions("test-key", false, nil)
	r := chi.NewRouter()
	r.Use(HTMX)
	r.Use(store.Session)
	r.Use(Locale(newTestBundle(t)))
	r.Use(store.CSRF)
	r.Use(VaryLocale)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Lang(r) + ":" + CSRFToken(r)))
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r, store
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionIssuesSignedCookieAndCSRF(t *testing.T) {
	h, _ := newTestStack(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	sess := cookieNamed(rec.Result().Cookies(), sessionCookieName)
	require.NotNil(t, sess)
	require.True(t, sess.HttpOnly)
	csrf := cookieNamed(rec.Result().Cookies(), csrfCookieName)
	require.NotNil(t, csrf)
	require.False(t, csrf.HttpOnly)
	require.Equal(t, "fr:"+csrf.Value, rec.Body.String())
	require.Contains(t, rec.Header().Values("Vary"), "Accept-Language")
	require.Contains(t, rec.Header().Values("Vary"), "HX-Request")
}

func TestHTMXRecordsRequestHeaders(t *testing.T) {
	var got HTMXRequest
	h := HTMX(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = HTMXFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/boutique/views/x/category", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "boutique-view")
	req.Header.Set("HX-Trigger", "filter-jouets")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, got.Enabled)
	require.False(t, got.Boosted)
	require.Equal(t, "boutique-view", got.Target)
	require.Equal(t, "filter-jouets", got.Trigger)
	require.False(t, IsHTMX(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func TestCSRFRejectsMissingOrWrongToken(t *testing.T) {
	h, _ := newTestStack(t)
	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := first.Result().Cookies()
	token := cookieNamed(cookies, csrfCookieName).Value

	post := func(header string, htmx bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		if header != "" {
			req.Header.Set(CSRFHeader, header)
		}
		if htmx {
			req.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusForbidden, post("", false).Code)

	rec := post("nope", true)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "invalid CSRF token", body.Error)

	require.Equal(t, http.StatusNoContent, post(token, true).Code)
}

func TestTamperedSessionIsReplaced(t *testing.T) {
	h, _ := newTestStack(t)
	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	sess := cookieNamed(first.Result().Cookies(), sessionCookieName)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sess.Value + "x"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	fresh := cookieNamed(rec.Result().Cookies(), sessionCookieName)
	require.NotNil(t, fresh)
	require.NotEqual(t, sess.Value, fresh.Value)
}

func TestLocaleQueryOverrideAndAcceptLanguage(t *testing.T) {
	h, _ := newTestStack(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, strings.HasPrefix(rec.Body.String(), "en:"))
	require.Equal(t, "en", rec.Header().Get("Content-Language"))

	req = httptest.NewRequest(http.MethodGet, "/?hl=fr", nil)
	req.Header.Set("Accept-Language", "en")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, strings.HasPrefix(rec.Body.String(), "fr:"))
	require.NotNil(t, cookieNamed(rec.Result().Cookies(), langCookieName))

	req = httptest.NewRequest(http.MethodGet, "/?hl=xx", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, strings.HasPrefix(rec.Body.String(), "fr:"))
}

func TestAssetsServesWithETag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o600))
	h := Assets(dir, "/assets", false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/assets/app.css", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)

	rec = httptest.NewRecorder()
	Assets(dir, "/assets", true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.css", nil))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestResponseRecorderFlushCommitsHook(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseRecorder(rec)
	calls := 0
	rw.SetBeforeWrite(func(w http.ResponseWriter) { calls++ })
	rw.Flush()
	_, _ = rw.Write([]byte("x"))
	require.Equal(t, 1, calls)
	require.True(t, rec.Flushed)
	require.True(t, rw.Wrote())
}
