package pagecms

import (
	"net/http"
	"strings"

	"github.com/eringen/pagecms/views"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// absoluteURL joins the site's base URL and a page path such as "/blog/".
func (a *App) absoluteURL(p string) string {
	return strings.TrimRight(a.Config.URL, "/") + p
}

// postSummary converts a blog page into the listing form templates use.
func postSummary(p *BlogPage) views.Post {
	authors := make([]string, len(p.Authors))
	for i, au := range p.Authors {
		authors[i] = au.Name
	}
	return views.Post{
		Title:   p.Title,
		URL:     p.URLPath,
		Date:    p.DateTime(),
		Intro:   p.Intro,
		Tags:    p.Tags,
		Authors: authors,
	}
}

func postSummaries(pages []*BlogPage) []views.Post {
	out := make([]views.Post, len(pages))
	for i, p := range pages {
		out[i] = postSummary(p)
	}
	return out
}

// servePath returns the request path relative to the site root, without
// the leading slash, as the serve pattern expects it.
func servePath(r *http.Request, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
}
