package pagecms

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
	Categories  []string `xml:"category"`
}

const feedSize = 20

func (a *App) renderRSS(c echo.Context, pages []*BlogPage) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(pages))
	for _, p := range pages {
		pubDate := ""
		if t, err := time.Parse(dateLayout, p.Date); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		link := a.absoluteURL(p.URLPath)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Intro,
			PubDate:     pubDate,
			GUID:        link,
			Categories:  p.Tags,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
