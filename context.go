package pagecms

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/eringen/pagecms/amp"
	"github.com/eringen/pagecms/blocks"
	"github.com/eringen/pagecms/richtext"
	"github.com/eringen/pagecms/views"
)

// PageContext is the data every page template executes with. Its helper
// methods consult the render context, so the same context renders standard
// or AMP markup depending on the mode active when rendering happens.
type PageContext struct {
	Site     views.SiteConfig
	Meta     views.PageMeta
	Page     *Page
	Specific Specific
	Year     int

	// Listing data filled by the page type's context builder.
	Posts []views.Post
	Tag   string
	Tags  []string

	// Status and Message are set on error pages.
	Status  int
	Message string

	app *App
	ctx context.Context
}

func (a *App) newPageContext(ctx context.Context, page *Page, specific Specific) *PageContext {
	pc := &PageContext{
		Site:     a.siteConfig(),
		Page:     page,
		Specific: specific,
		Year:     time.Now().Year(),
		app:      a,
		ctx:      ctx,
	}
	if page != nil {
		pc.Meta = views.PageMeta{
			Title:       page.DisplayTitle(),
			Description: page.SearchDescription,
			URL:         a.absoluteURL(page.URLPath),
			OGType:      "website",
		}
		if m, ok := Model(page.Type); ok && m.SupportsAMP() {
			pc.Meta.AMPURL = a.absoluteURL(amp.Prefix + page.URLPath)
		}
	} else {
		pc.Meta = views.PageMeta{Title: a.Config.Name, Description: a.Config.Description, OGType: "website"}
	}
	return pc
}

// bind sets the context rendering happens under.
func (pc *PageContext) bind(ctx context.Context) {
	pc.ctx = ctx
}

// Context returns the render context.
func (pc *PageContext) Context() context.Context {
	if pc.ctx == nil {
		return context.Background()
	}
	return pc.ctx
}

// AMP reports whether the page is rendering in AMP mode.
func (pc *PageContext) AMP() bool {
	return amp.Active(pc.Context())
}

// PageURL returns the link to a page path, staying under the AMP prefix
// while rendering in AMP mode.
func (pc *PageContext) PageURL(path string) string {
	return amp.Path(pc.Context(), path)
}

// TagURL links to the first tag index page filtered by tag, or to the site
// root when no tag index page exists.
func (pc *PageContext) TagURL(tag string) string {
	base := "/"
	if pc.app != nil {
		if p := pc.app.tagIndexPath(); p != "" {
			base = p
		}
	}
	return pc.PageURL(base) + "?tag=" + url.QueryEscape(tag)
}

// Post returns the specific blog page as a listing summary.
func (pc *PageContext) Post() views.Post {
	bp, ok := pc.Specific.(*BlogPage)
	if !ok {
		return views.Post{}
	}
	post := postSummary(bp)
	post.URL = pc.Meta.URL
	return post
}

// Related returns live blog pages sharing a tag with the specific page.
func (pc *PageContext) Related() []views.Post {
	bp, ok := pc.Specific.(*BlogPage)
	if !ok || pc.app == nil {
		return nil
	}
	pages, err := pc.app.Store.ListBlogPages(BlogPageQuery{LiveAt: time.Now()})
	if err != nil {
		pc.app.Log.WithError(err).Warn("related posts lookup failed")
		return nil
	}
	related := views.FilterRelatedPosts(postSummary(bp), postSummaries(pages))
	if len(related) > 3 {
		related = related[:3]
	}
	return related
}

// PixelURL returns the analytics pixel for this page view, or "" when
// analytics is disabled. AMP requires an absolute URL.
func (pc *PageContext) PixelURL() string {
	if pc.app == nil || pc.app.analyticsStore == nil || pc.Page == nil {
		return ""
	}
	mode := "standard"
	if pc.AMP() {
		mode = "amp"
	}
	q := url.Values{"path": {pc.Page.URLPath}, "mode": {mode}}
	u := "/api/analytics/pixel?" + q.Encode()
	if mode == "amp" {
		// amp-pixel substitutes DOCUMENT_REFERRER itself.
		return pc.app.absoluteURL(u) + "&ref=DOCUMENT_REFERRER"
	}
	return u
}

// InlineCSS returns the embedded stylesheet for <style amp-custom>.
func (pc *PageContext) InlineCSS() template.CSS {
	b, err := EmbeddedAssets.ReadFile("embedded/pagecms.css")
	if err != nil {
		return ""
	}
	return template.CSS(b)
}

// Body renders the specific blog page's stream field.
func (pc *PageContext) Body() (template.HTML, error) {
	bp, ok := pc.Specific.(*BlogPage)
	if !ok {
		return "", nil
	}
	return blocks.RenderStream(pc, bp.Body)
}

// IncludeBlock renders one child of a stream field.
func (pc *PageContext) IncludeBlock(c blocks.StreamChild) (template.HTML, error) {
	return blocks.RenderChild(pc, c)
}

// MainImage renders the blog page's first gallery image, if any.
func (pc *PageContext) MainImage() (template.HTML, error) {
	bp, ok := pc.Specific.(*BlogPage)
	if !ok || bp.MainImage() == nil {
		return "", nil
	}
	return pc.Image(bp.MainImage().ImageID)
}

// HasTemplate implements blocks.Renderer.
func (pc *PageContext) HasTemplate(name string) bool {
	return pc.app != nil && pc.app.Templates.Has(name)
}

// BlockContext is the data block templates execute with.
type BlockContext struct {
	Page  *PageContext
	Value any
}

// Field returns the named child value of a struct block.
func (b BlockContext) Field(name string) any {
	if sv, ok := b.Value.(blocks.StructValue); ok {
		return sv[name]
	}
	return nil
}

// RichText renders the named rich text child of a struct block.
func (b BlockContext) RichText(name string) (template.HTML, error) {
	s, _ := b.Field(name).(blocks.RichText)
	return b.Page.RichText(string(s))
}

// Image renders the named image child of a struct block.
func (b BlockContext) Image(name string) (template.HTML, error) {
	return b.Page.Image(b.Field(name))
}

// Template implements blocks.Renderer.
func (pc *PageContext) Template(name string, value any) (template.HTML, error) {
	if pc.app == nil {
		return "", fmt.Errorf("pagecms: no template set for %s", name)
	}
	return pc.app.Templates.Render(pc.Context(), name, BlockContext{Page: pc, Value: value})
}

// RichText renders Markdown source.
func (pc *PageContext) RichText(src string) (template.HTML, error) {
	return richtext.Render(pc.Context(), src)
}

// Image renders an uploaded image as <img>, or <amp-img> in AMP mode.
// Missing images render nothing.
func (pc *PageContext) Image(id any) (template.HTML, error) {
	var imageID int64
	switch v := id.(type) {
	case blocks.ImageID:
		imageID = int64(v)
	case int64:
		imageID = v
	case int:
		imageID = int64(v)
	}
	if imageID == 0 || pc.app == nil {
		return "", nil
	}
	img, err := pc.app.Store.GetImage(imageID)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	alt := template.HTMLEscapeString(img.Title)
	src := template.HTMLEscapeString(img.URL())
	dims := fmt.Sprintf(`width="%d" height="%d"`, img.Width, img.Height)
	if pc.AMP() {
		return template.HTML(`<amp-img src="` + src + `" alt="` + alt + `" ` + dims + ` layout="responsive"></amp-img>`), nil
	}
	return template.HTML(`<img src="` + src + `" alt="` + alt + `" ` + dims + ` loading="lazy" decoding="async">`), nil
}

// Embed renders embeddable media. YouTube videos become an iframe, or
// <amp-youtube> in AMP mode; anything else renders as a link.
func (pc *PageContext) Embed(u any) (template.HTML, error) {
	var raw string
	switch v := u.(type) {
	case blocks.EmbedURL:
		raw = string(v)
	case string:
		raw = v
	}
	if raw == "" {
		return "", nil
	}
	if id := youTubeID(raw); id != "" {
		id = template.HTMLEscapeString(id)
		if pc.AMP() {
			return template.HTML(`<amp-youtube data-videoid="` + id + `" layout="responsive" width="480" height="270"></amp-youtube>`), nil
		}
		return template.HTML(`<iframe class="embed" src="https://www.youtube-nocookie.com/embed/` + id +
			`" width="480" height="270" loading="lazy" allowfullscreen></iframe>`), nil
	}
	href := template.HTMLEscapeString(raw)
	return template.HTML(`<a class="embed-link" href="` + href + `" rel="noopener">` + href + `</a>`), nil
}

var videoIDPattern = regexp.MustCompile(`^[\w\-]{1,64}$`)

func youTubeID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	var id string
	switch strings.TrimPrefix(strings.ToLower(u.Host), "www.") {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		id = u.Query().Get("v")
		if rest, ok := strings.CutPrefix(u.Path, "/embed/"); ok && id == "" {
			id = strings.Trim(rest, "/")
		}
	}
	if !videoIDPattern.MatchString(id) {
		return ""
	}
	return id
}
