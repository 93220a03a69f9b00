package pagecms

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func (a *App) handleSitemap(c echo.Context) error {
	pages, err := a.Store.ListPages()
	if err != nil {
		return err
	}
	return a.renderSitemap(c, pages)
}

func (a *App) handleFeed(c echo.Context) error {
	pages, err := a.Store.ListBlogPages(BlogPageQuery{LiveAt: time.Now(), Limit: feedSize})
	if err != nil {
		return err
	}
	return a.renderRSS(c, pages)
}

func (a *App) handleFavicon(c echo.Context) error {
	if p := filepath.Join(a.staticDir, "favicon.svg"); fileExists(p) {
		return c.File(p)
	}
	b, err := EmbeddedAssets.ReadFile("embedded/favicon.svg")
	if err != nil {
		return echo.ErrNotFound
	}
	return c.Blob(http.StatusOK, "image/svg+xml", b)
}

func (a *App) handleStylesheet(c echo.Context) error {
	b, err := EmbeddedAssets.ReadFile("embedded/pagecms.css")
	if err != nil {
		return echo.ErrNotFound
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", b)
}

// handleRobots serves robots.txt from the static directory, or a default
// that keeps crawlers out of the admin area and points at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	if p := filepath.Join(a.staticDir, "robots.txt"); fileExists(p) {
		return c.File(p)
	}
	return c.String(http.StatusOK, a.defaultRobots())
}

func (a *App) defaultRobots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Allow: /\n\n")
	b.WriteString("Sitemap: " + a.absoluteURL("/sitemap.xml") + "\n")
	return b.String()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ve ValidationErrors
	if errors.As(err, &ve) {
		_ = c.JSON(http.StatusBadRequest, map[string]any{"errors": ve})
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	switch {
	case errors.Is(err, ErrPageNotFound), errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &he):
		code = he.Code
	}

	if strings.HasPrefix(c.Request().URL.Path, "/admin/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if code >= 500 {
			a.logError(c, err)
		}
		msg := http.StatusText(code)
		if he != nil && code < 500 {
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		}
		_ = c.JSON(code, map[string]string{"error": msg})
		return
	}

	switch {
	case code == http.StatusNotFound:
		a.renderErrorPage(c, code, "404.html")
	case code >= 500:
		a.logError(c, err)
		a.renderErrorPage(c, code, "500.html")
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}

// renderErrorPage renders an error template in the request's mode. Error
// pages are written outside any AMP scope, so they always use the
// standard layout.
func (a *App) renderErrorPage(c echo.Context, code int, name string) {
	pc := a.newPageContext(c.Request().Context(), nil, nil)
	pc.Status = code
	pc.Message = http.StatusText(code)
	pc.Meta.Title = http.StatusText(code)
	if err := a.RenderTemplate(c, code, name, pc); err != nil {
		a.Log.WithError(err).WithField("template", name).Error("error page failed")
		_ = c.String(code, http.StatusText(code))
	}
}

func (a *App) logError(c echo.Context, err error) {
	a.Log.WithFields(logrus.Fields{
		"method":     c.Request().Method,
		"uri":        c.Request().RequestURI,
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	}).WithError(err).Error("server error")
}
