package views

import "time"

// SiteConfig holds site-wide settings. Every page context carries it so
// templates never hardcode site details.
type SiteConfig struct {
	Name        string // site.name        (default "Blog")
	URL         string // site.url         (default "http://localhost:3000")
	Description string // site.description
	Author      string // site.author
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> partial.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	AMPURL      string // rel=amphtml, empty when the page has no AMP variant
	OGType      string // "website" or "article"
	Image       string
}

// Post summarises a blog page for listings, feeds and structured data.
type Post struct {
	Title   string
	URL     string
	Date    time.Time
	Intro   string
	Tags    []string
	Authors []string
}
