package pagecms

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// renderSitemap lists every servable page by its canonical URL. AMP
// versions are discovered through the rel="amphtml" link instead.
func (a *App) renderSitemap(c echo.Context, pages []*Page) error {
	now := time.Now()
	urls := make([]sitemapURL, 0, len(pages))
	for _, p := range pages {
		if !p.Servable(now) {
			continue
		}
		u := sitemapURL{Loc: a.absoluteURL(p.URLPath)}
		if p.LastPublishedAt != nil {
			u.LastMod = p.LastPublishedAt.Format(dateLayout)
		}
		urls = append(urls, u)
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
