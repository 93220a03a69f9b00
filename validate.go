package pagecms

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/pagecms/blocks"
)

// ValidationErrors lists every invalid field of a rejected save.
type ValidationErrors = blocks.ValidationErrors

// ValidationError is one invalid field.
type ValidationError = blocks.ValidationError

const (
	maxTitleLength   = 255
	maxIntroLength   = 250
	maxCaptionLength = 250
	maxNameLength    = 255
)

var slugPattern = regexp.MustCompile(`^[\w\-]+$`)

type fieldErrors struct {
	errs ValidationErrors
}

func (f *fieldErrors) add(path, msg string) {
	f.errs = append(f.errs, ValidationError{Path: path, Message: msg})
}

func (f *fieldErrors) merge(path string, err error) error {
	if err == nil {
		return nil
	}
	if ve, ok := err.(ValidationErrors); ok {
		if path != "" {
			ve = ve.Prefix(path)
		}
		f.errs = append(f.errs, ve...)
		return nil
	}
	return err
}

func (f *fieldErrors) required(path, v string) {
	if strings.TrimSpace(v) == "" {
		f.add(path, "This field is required.")
	}
}

func (f *fieldErrors) maxLength(path, v string, n int) {
	if l := utf8.RuneCountInString(v); l > n {
		f.add(path, "Ensure this value has at most "+strconv.Itoa(n)+" characters (it has "+strconv.Itoa(l)+").")
	}
}

func (f *fieldErrors) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return f.errs
}

// cleanPage normalizes and checks the fields shared by every page type.
// A missing slug is derived from the title.
func cleanPage(p *Page, f *fieldErrors) {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	f.required("title", p.Title)
	f.maxLength("title", p.Title, maxTitleLength)
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.Slug == "" {
		f.add("slug", "This field is required.")
	} else if !slugPattern.MatchString(p.Slug) {
		f.add("slug", "Enter a valid slug consisting of letters, numbers, underscores or hyphens.")
	}
	f.maxLength("seo_title", p.SeoTitle, maxTitleLength)
	if p.GoLiveAt != nil && p.ExpireAt != nil && !p.ExpireAt.After(*p.GoLiveAt) {
		f.add("expire_at", "Expiry date/time must be after the go live date/time.")
	}
}

// CleanBlogIndexPage validates p in place.
func CleanBlogIndexPage(p *BlogIndexPage) error {
	var f fieldErrors
	p.Type = TypeBlogIndexPage
	cleanPage(&p.Page, &f)
	return f.err()
}

// CleanBlogTagIndexPage validates p in place.
func CleanBlogTagIndexPage(p *BlogTagIndexPage) error {
	var f fieldErrors
	p.Type = TypeBlogTagIndexPage
	cleanPage(&p.Page, &f)
	return f.err()
}

// CleanBlogPage validates p in place. The body is replaced by its cleaned
// form, with block definitions attached and ids assigned.
func CleanBlogPage(p *BlogPage) error {
	var f fieldErrors
	p.Type = TypeBlogPage
	cleanPage(&p.Page, &f)

	p.Date = strings.TrimSpace(p.Date)
	if p.Date == "" {
		f.add("date", "This field is required.")
	} else if _, err := time.Parse(dateLayout, p.Date); err != nil {
		f.add("date", "Enter a valid date.")
	}

	p.Intro = strings.TrimSpace(p.Intro)
	f.required("intro", p.Intro)
	f.maxLength("intro", p.Intro, maxIntroLength)

	body, err := BlogPageBody.CleanValue(p.Body)
	if err := f.merge("body", err); err != nil {
		return err
	}
	p.Body = body

	p.Tags = normalizeTags(p.Tags)

	for i := range p.GalleryImages {
		g := &p.GalleryImages[i]
		path := "gallery_images." + strconv.Itoa(i)
		if g.ImageID <= 0 {
			f.add(path+".image", "This field is required.")
		}
		g.Caption = strings.TrimSpace(g.Caption)
		f.maxLength(path+".caption", g.Caption, maxCaptionLength)
	}

	for i := range p.RelatedLinks {
		l := &p.RelatedLinks[i]
		path := "related_links." + strconv.Itoa(i)
		l.Name = strings.TrimSpace(l.Name)
		l.URL = strings.TrimSpace(l.URL)
		f.required(path+".name", l.Name)
		f.maxLength(path+".name", l.Name, maxNameLength)
		if !validLinkURL(l.URL) {
			f.add(path+".url", "Enter a valid URL.")
		}
	}

	for i, a := range p.Authors {
		if a.ID <= 0 {
			f.add("authors."+strconv.Itoa(i), "Select a valid author.")
		}
	}
	return f.err()
}

// CleanAuthor validates a in place.
func CleanAuthor(a *Author) error {
	var f fieldErrors
	a.Name = strings.TrimSpace(a.Name)
	f.required("name", a.Name)
	f.maxLength("name", a.Name, maxNameLength)
	return f.err()
}

func validLinkURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// normalizeTags lowercases, trims and deduplicates tags, keeping order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range FilterEmpty(tags) {
		t = normalizeTag(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
