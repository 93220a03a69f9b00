package views

import (
	"encoding/json"
	"html/template"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultFuncs returns the template functions every Set provides.
func DefaultFuncs() template.FuncMap {
	return template.FuncMap{
		"buildURL":          BuildURL,
		"pathEscape":        PathEscape,
		"queryEscape":       url.QueryEscape,
		"tagClass":          TagClass,
		"joinTags":          JoinTags,
		"formatDate":        FormatDate,
		"isoDate":           func(t time.Time) string { return t.Format("2006-01-02") },
		"websiteJSONLD":     WebsiteJsonLD,
		"blogPostingJSONLD": BlogPostingJsonLD,
	}
}

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterRelatedPosts returns posts that share at least one tag with the current post.
func FilterRelatedPosts(current Post, posts []Post) []Post {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []Post
	for _, p := range posts {
		if p.URL == current.URL {
			continue
		}
		for _, t := range p.Tags {
			tag := strings.ToLower(strings.TrimSpace(t))
			if _, ok := tagSet[tag]; ok {
				related = append(related, p)
				break
			}
		}
	}
	return related
}

// PathEscape wraps url.PathEscape for use in templates.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	base := "tag"
	if active {
		base += " tag-active"
	}
	return base
}

// JoinTags formats a tag slice as a comma-separated string.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// FormatDate formats t the way listings show it, e.g. "March 4, 2024".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) template.JS {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return marshalJS(data)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post Post) template.JS {
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Intro,
		"datePublished": post.Date.Format("2006-01-02"),
		"url":           post.URL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   post.URL,
		},
	}
	switch {
	case len(post.Authors) > 0:
		authors := make([]map[string]string, len(post.Authors))
		for i, a := range post.Authors {
			authors[i] = map[string]string{"@type": "Person", "name": a}
		}
		data["author"] = authors
	case cfg.Author != "":
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalJS(data)
}

// marshalJS encodes v for a <script type="application/ld+json"> body.
// encoding/json already escapes <, > and &.
func marshalJS(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return template.JS(b)
}
