// Package pagecms is a page-tree blog CMS built with Go, Echo, and templ.
// Pages live in a tree of typed records, blog bodies are free-form streams of
// typed blocks, and every page that supports it is also served as an AMP
// document under /amp/.
//
// Templates are plain html/template files. The built-in set can be replaced
// with WithTemplates or the TemplatesDir setting; page templates with an
// "_amp" variant are picked automatically in AMP mode.
package pagecms

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/pagecms/amp"
	"github.com/eringen/pagecms/analytics"
	"github.com/eringen/pagecms/views"
)

// App is the central pagecms application. It wires together the store,
// cache, templates, handlers, middleware, and scheduler.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     *Store
	Cache     *PageCache
	Templates *views.Set
	Log       *logrus.Logger

	metrics        *metrics
	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	scheduler      gocron.Scheduler
	cancelWatch    context.CancelFunc
	customRoutes   []func(*App)
	serve          func(ctx context.Context, r *http.Request, path string) (Response, error)
	staticDir      string
	templatesFS    fs.FS
}

// New creates a new pagecms App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true
	a.serve = a.Serve

	for _, opt := range opts {
		opt(a)
	}
	if a.Log == nil {
		a.Log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	a.metrics = newMetrics()

	return a
}

// Init opens the databases, loads templates, and registers middleware,
// routes, and scheduled jobs. Start calls it; tests call it directly and
// drive a.Echo with httptest.
func (a *App) Init() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("pagecms: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pagecms: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pagecms: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewPageCache(a.Store, a.Config.PageCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if err := a.initTemplates(); err != nil {
		return err
	}

	if a.Config.AnalyticsEnabled {
		analyticsStore, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("pagecms: init analytics: %w", err)
		}
		a.analyticsStore = analyticsStore
		if err := analytics.InitSalt(analyticsStore); err != nil {
			return fmt.Errorf("pagecms: init analytics salt: %w", err)
		}
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	return a.startScheduler()
}

func (a *App) initTemplates() error {
	fsys := a.templatesFS
	if fsys == nil && a.Config.TemplatesDir != "" {
		fsys = os.DirFS(a.Config.TemplatesDir)
	}
	if fsys == nil {
		fsys = views.DefaultFS()
	}
	set, err := views.NewSet(fsys, nil)
	if err != nil {
		return fmt.Errorf("pagecms: load templates: %w", err)
	}
	a.Templates = set

	if a.Config.TemplatesDir != "" && a.Config.TemplatesReload && a.templatesFS == nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancelWatch = cancel
		if err := set.Watch(ctx, a.Config.TemplatesDir, a.Log); err != nil {
			cancel()
			return fmt.Errorf("pagecms: watch templates: %w", err)
		}
	}
	return nil
}

// Start initializes the app and runs the server until it fails or is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Log.WithFields(logrus.Fields{"addr": a.Config.Addr, "url": a.Config.URL}).Info("pagecms listening")
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/public/pagecms.css", a.handleStylesheet)
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	if a.Config.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(a.metrics.handler()))
	}

	a.registerAdminRoutes(e.Group("/admin/api"))

	if a.analyticsStore != nil {
		h := analytics.NewHandler(a.analyticsStore, a.Log)
		h.RegisterRoutes(e.Group("/api/analytics"), e.Group("/admin/api/analytics", a.requireAdmin))
	}

	e.GET(amp.Prefix+"/*", a.handleAMPServe)
	e.GET("/*", a.handleServe)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			a.Log.WithError(err).Warn("scheduler shutdown failed")
		}
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.analyticsStore != nil {
		a.analyticsStore.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
