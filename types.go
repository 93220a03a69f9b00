package pagecms

import (
	"fmt"
	"time"

	"github.com/eringen/pagecms/blocks"
)

// PageType names a page model. Values follow the "app.Model" form stored in
// the pages table.
type PageType string

const (
	TypeBlogIndexPage    PageType = "blog.BlogIndexPage"
	TypeBlogPage         PageType = "blog.BlogPage"
	TypeBlogTagIndexPage PageType = "blog.BlogTagIndexPage"
)

// Page holds the fields shared by every node of the page tree.
type Page struct {
	ID                int64      `json:"id"`
	ParentID          int64      `json:"parent_id"` // 0 for the site root
	Type              PageType   `json:"type"`
	Title             string     `json:"title"`
	Slug              string     `json:"slug"`
	URLPath           string     `json:"url_path"` // "/", "/blog/", "/blog/my-post/"
	Live              bool       `json:"live"`
	SortOrder         int        `json:"sort_order"`
	SeoTitle          string     `json:"seo_title"`
	SearchDescription string     `json:"search_description"`
	ShowInMenus       bool       `json:"show_in_menus"`
	FirstPublishedAt  *time.Time `json:"first_published_at,omitempty"`
	LastPublishedAt   *time.Time `json:"last_published_at,omitempty"`
	GoLiveAt          *time.Time `json:"go_live_at,omitempty"`
	ExpireAt          *time.Time `json:"expire_at,omitempty"`
}

// Base returns the shared page record.
func (p *Page) Base() *Page { return p }

// IsRoot reports whether p is the site root.
func (p *Page) IsRoot() bool { return p.ParentID == 0 }

// Servable reports whether p is live and not expired at now.
func (p *Page) Servable(now time.Time) bool {
	if !p.Live {
		return false
	}
	return p.ExpireAt == nil || p.ExpireAt.After(now)
}

// DisplayTitle returns the SEO title when set, else the title.
func (p *Page) DisplayTitle() string {
	if p.SeoTitle != "" {
		return p.SeoTitle
	}
	return p.Title
}

// Specific is implemented by every concrete page type.
type Specific interface {
	Base() *Page
}

// NewSpecific returns an empty page of type t with its type set.
func NewSpecific(t PageType) (Specific, error) {
	var sp Specific
	switch t {
	case TypeBlogIndexPage:
		sp = &BlogIndexPage{}
	case TypeBlogPage:
		sp = &BlogPage{}
	case TypeBlogTagIndexPage:
		sp = &BlogTagIndexPage{}
	default:
		return nil, fmt.Errorf("pagecms: unknown page type %q", t)
	}
	sp.Base().Type = t
	return sp, nil
}

// BlogIndexPage lists the blog pages beneath it.
type BlogIndexPage struct {
	Page
	Intro string `json:"intro"`
}

// BlogPage is a single blog entry.
type BlogPage struct {
	Page
	Date          string             `json:"date"` // YYYY-MM-DD
	Intro         string             `json:"intro"`
	Body          blocks.StreamValue `json:"body"`
	Tags          []string           `json:"tags"`
	Authors       []Author           `json:"authors"`
	FeedImageID   int64              `json:"feed_image_id,omitempty"`
	GalleryImages []GalleryImage     `json:"gallery_images"`
	RelatedLinks  []RelatedLink      `json:"related_links"`
}

// MainImage returns the first gallery image, or nil when there is none.
func (p *BlogPage) MainImage() *GalleryImage {
	if len(p.GalleryImages) == 0 {
		return nil
	}
	return &p.GalleryImages[0]
}

// DateTime parses Date. It returns the zero time when Date is invalid.
func (p *BlogPage) DateTime() time.Time {
	t, _ := time.Parse(dateLayout, p.Date)
	return t
}

// BlogTagIndexPage lists blog pages carrying the tag given in ?tag=.
type BlogTagIndexPage struct {
	Page
}

// Author is a reusable snippet attached to blog pages.
type Author struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ImageID int64  `json:"author_image_id,omitempty"`
}

// GalleryImage is one inline gallery entry of a blog page.
type GalleryImage struct {
	ID      int64  `json:"id,omitempty"`
	ImageID int64  `json:"image_id"`
	Caption string `json:"caption"`
}

// RelatedLink is one inline related link of a blog page.
type RelatedLink struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Image is an uploaded image stored under the static uploads directory.
type Image struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}

// URL returns the public path of the image file.
func (i Image) URL() string {
	return "/public/" + uploadsSubdir + "/" + i.Filename
}

const dateLayout = "2006-01-02"
