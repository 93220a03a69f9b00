package pagecms

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/eringen/pagecms/views"
)

// SiteConfig holds all configuration for a pagecms site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Default author name for JSON-LD

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/pagecms.db")

	AnalyticsEnabled       bool   // Enable analytics (default true)
	AnalyticsDatabasePath  string // Analytics SQLite path (default "data/analytics.db")
	AnalyticsRetentionDays int    // Days of page views kept (default 365)

	AdminPassword string // Required: admin password, plain or bcrypt hash
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	PageCacheTTL      time.Duration // Routing cache TTL (default 5min)
	SchedulerInterval time.Duration // Publishing schedule check interval (default 1min)

	TemplatesDir    string // Load templates from this directory instead of the built-in set
	TemplatesReload bool   // Reload TemplatesDir on change

	LogLevel       string // debug, info, warn, error (default "info")
	LogFormat      string // text or json (default "text")
	MetricsEnabled bool   // Serve Prometheus metrics on /metrics
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pagecms.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.AnalyticsRetentionDays == 0 {
		c.AnalyticsRetentionDays = 365
	}
	if c.PageCacheTTL == 0 {
		c.PageCacheTTL = 5 * time.Minute
	}
	if c.SchedulerInterval == 0 {
		c.SchedulerInterval = time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// LoadConfig reads the optional YAML file at path and PAGECMS_* environment
// variables, which take precedence. Nested keys map to variables with dots
// replaced by underscores: site.name is PAGECMS_SITE_NAME.
func LoadConfig(path string) (SiteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGECMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("site.name", "Blog")
	v.SetDefault("site.url", "http://localhost:3000")
	v.SetDefault("site.description", "")
	v.SetDefault("site.author", "")
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("database.path", "data/pagecms.db")
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.database_path", "data/analytics.db")
	v.SetDefault("analytics.retention_days", 365)
	v.SetDefault("admin.password", "")
	v.SetDefault("session.secret", "")
	v.SetDefault("cookie.secure", false)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("templates.dir", "")
	v.SetDefault("templates.reload", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", false)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return SiteConfig{}, fmt.Errorf("pagecms: read config %s: %w", path, err)
		}
	}

	cfg := SiteConfig{
		Name:                   v.GetString("site.name"),
		URL:                    v.GetString("site.url"),
		Description:            v.GetString("site.description"),
		Author:                 v.GetString("site.author"),
		Addr:                   v.GetString("server.addr"),
		DatabasePath:           v.GetString("database.path"),
		AnalyticsEnabled:       v.GetBool("analytics.enabled"),
		AnalyticsDatabasePath:  v.GetString("analytics.database_path"),
		AnalyticsRetentionDays: v.GetInt("analytics.retention_days"),
		AdminPassword:          v.GetString("admin.password"),
		SessionSecret:          v.GetString("session.secret"),
		CookieSecure:           v.GetBool("cookie.secure"),
		PageCacheTTL:           v.GetDuration("cache.ttl"),
		SchedulerInterval:      v.GetDuration("scheduler.interval"),
		TemplatesDir:           v.GetString("templates.dir"),
		TemplatesReload:        v.GetBool("templates.reload"),
		LogLevel:               v.GetString("log.level"),
		LogFormat:              v.GetString("log.format"),
		MetricsEnabled:         v.GetBool("metrics.enabled"),
	}
	cfg.setDefaults()
	return cfg, nil
}

func (a *App) siteConfig() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithTemplates replaces the built-in templates with fsys.
func WithTemplates(fsys fs.FS) Option {
	return func(a *App) {
		a.templatesFS = fsys
	}
}

// WithLogger sets the logger. By default one is built from the config.
func WithLogger(l *logrus.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}
