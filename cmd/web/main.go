package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/catalog"
	"finitefield.org/saro-web/internal/cms"
	"finitefield.org/saro-web/internal/config"
	handlersPkg "finitefield.org/saro-web/internal/handlers"
	"finitefield.org/saro-web/internal/i18n"
	"finitefield.org/saro-web/internal/live"
	mw "finitefield.org/saro-web/internal/middleware"
	"finitefield.org/saro-web/internal/observability"
)

// app carries the dependencies every handler needs.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	bundle    *i18n.Bundle
	tmpl      *renderer
	content   *cms.Client
	catalog   *catalog.Snapshot
	views     *live.Registry
	sessions  *mw.Sessions
	analytics handlersPkg.Analytics
	keepAlive time.Duration
}

func main() {
	var envFile string
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with local overrides")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(envFile, logger); err != nil {
		logger.Fatal("web server stopped", zap.Error(err))
	}
}

func run(envFile string, logger *zap.Logger) error {
	cfg, err := config.Load(config.WithEnvFile(envFile))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSource, err := openSource(cfg.Catalog)
	if err != nil {
		return err
	}
	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	snapshot, err := catalog.Load(loadCtx, src)
	cancelLoad()
	closeSource()
	if err != nil {
		return err
	}
	logger.Info("catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("products", snapshot.Len()),
		zap.Int("categories", len(snapshot.Categories())-1),
	)

	a, err := newApp(cfg, logger, snapshot, boutique.SystemClock)
	if err != nil {
		return err
	}
	go a.views.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	// open event streams only return once their view is gone
	srv.RegisterOnShutdown(a.views.Close)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("web listening",
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.Server.Environment),
		zap.Bool("dev", cfg.Server.DevMode),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("web stopped")
	return nil
}

// newApp wires templates, translations and the view registry.
func newApp(cfg config.Config, logger *zap.Logger, snapshot *catalog.Snapshot, clock boutique.Clock) (*app, error) {
	bundle, err := i18n.Load(cfg.Site.LocalesDir, cfg.Site.FallbackLang, []string{"fr", "en"})
	if err != nil {
		return nil, fmt.Errorf("load i18n: %w", err)
	}
	tmpl, err := newRenderer(cfg.Site.TemplatesDir, cfg.Server.DevMode, bundle)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		bundle:  bundle,
		tmpl:    tmpl,
		content: cms.NewClient(cfg.Site.ContentDir, cfg.Site.FallbackLang),
		catalog: snapshot,
		views: live.NewRegistry(snapshot, live.Config{
			Clock:      clock,
			Delay:      cfg.Views.LoadDelay,
			IdleTTL:    cfg.Views.IdleTTL,
			PendingTTL: cfg.Views.PendingTTL,
			MaxViews:   cfg.Views.MaxViews,
			Logger:     logger,
		}),
		sessions:  mw.NewSessions(cfg.Session.SigningKey, cfg.Session.Secure, logger),
		analytics: handlersPkg.AnalyticsFromConfig(cfg.Analytics),
	}, nil
}

// routes builds the router. Event streams live outside the request timeout.
func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP.
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLogger(a.logger))
	r.Use(observability.Tracing)
	r.Use(observability.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(mw.HTMX)
	r.Use(a.sessions.Session)
	r.Use(mw.Locale(a.bundle))
	r.Use(a.sessions.CSRF)
	r.Use(mw.VaryLocale)

	r.NotFound(a.NotFoundHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/assets/*", mw.Assets(filepath.Join(a.cfg.Site.PublicDir, "assets"), "/assets", a.cfg.Server.DevMode))

	r.Get("/boutique/views/{id}/events", a.BoutiqueEventsHandler)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(chimw.Timeout(30 * time.Second))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/boutique", http.StatusFound)
		})
		r.Get("/boutique", a.BoutiqueHandler)
		r.Get("/boutique/{productID}", a.ProductHandler)
		r.Post("/boutique/views/{id}/category", a.BoutiqueSelectHandler)
		r.Get("/boutique/views/{id}/grid", a.BoutiqueGridHandler)
		r.Delete("/boutique/views/{id}", a.BoutiqueUnmountHandler)
	})
	return r
}

// openSource picks the product source configured for this deployment. The
// returned func releases its client once the snapshot is loaded.
func openSource(cfg config.CatalogConfig) (catalog.Source, func(), error) {
	switch cfg.Source {
	case config.SourceFirestore:
		if cfg.FirestoreEmulator != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.FirestoreEmulator); err != nil {
				return nil, nil, fmt.Errorf("set firestore emulator host: %w", err)
			}
		}
		src, err := catalog.NewFirestoreSource(cfg.FirestoreProjectID, cfg.Collection)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	case config.SourcePostgres:
		src, err := catalog.NewPostgresSource(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	default:
		return catalog.NewStaticSource(cfg.File), func() {}, nil
	}
}
