package pagecms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecms/amp"
)

// ErrPageNotFound is returned by Serve when no live page answers a path.
var ErrPageNotFound = errors.New("pagecms: page not found")

// servePattern matches page paths relative to the site root: "" for the
// root, "blog/", "blog/my-post/".
var servePattern = regexp.MustCompile(`^((?:[\w\-]+/)*)$`)

// contextBuilder fills the type-specific listing data of a page context.
type contextBuilder func(a *App, r *http.Request, pc *PageContext) error

var contextBuilders = map[PageType]contextBuilder{
	TypeBlogIndexPage:    buildBlogIndexContext,
	TypeBlogPage:         buildBlogPageContext,
	TypeBlogTagIndexPage: buildBlogTagIndexContext,
}

// Serve routes path to a live page and returns a deferred response for it.
// path is relative to the site root and must end in a slash, e.g.
// "blog/my-post/". A path that used to belong to a page yields a permanent
// redirect to the page's current location, computed with ctx.
func (a *App) Serve(ctx context.Context, r *http.Request, path string) (Response, error) {
	if !servePattern.MatchString(path) {
		return nil, ErrPageNotFound
	}
	urlPath := "/" + path
	page, err := a.Cache.Route(urlPath)
	if err == ErrNotFound {
		return a.redirectFor(ctx, urlPath)
	}
	if err != nil {
		return nil, fmt.Errorf("pagecms: route %s: %w", urlPath, err)
	}
	now := time.Now()
	if !page.Servable(now) {
		return nil, ErrPageNotFound
	}

	model, ok := Model(page.Type)
	if !ok {
		return nil, fmt.Errorf("pagecms: unknown page type %q", page.Type)
	}
	specific, err := a.Store.GetSpecific(page)
	if err == ErrNotFound {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagecms: load page %d: %w", page.ID, err)
	}

	pc := a.newPageContext(ctx, specific.Base(), specific)
	if build, ok := contextBuilders[page.Type]; ok {
		if err := build(a, r, pc); err != nil {
			return nil, fmt.Errorf("pagecms: build context for %s: %w", urlPath, err)
		}
	}
	return &TemplateResponse{
		Status:   http.StatusOK,
		Template: model.Template,
		Context:  pc,
		app:      a,
		pageType: page.Type,
	}, nil
}

func (a *App) redirectFor(ctx context.Context, urlPath string) (Response, error) {
	id, err := a.Store.GetRedirect(urlPath)
	if err == ErrNotFound {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagecms: redirect lookup %s: %w", urlPath, err)
	}
	page, err := a.Store.GetPage(id)
	if err == ErrNotFound {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, err
	}
	if !page.Servable(time.Now()) {
		return nil, ErrPageNotFound
	}
	return &RedirectResponse{
		Status:   http.StatusMovedPermanently,
		Location: amp.Path(ctx, page.URLPath),
	}, nil
}

func buildBlogIndexContext(a *App, r *http.Request, pc *PageContext) error {
	pages, err := a.Store.ListBlogPages(BlogPageQuery{ParentID: pc.Page.ID, LiveAt: time.Now()})
	if err != nil {
		return err
	}
	pc.Posts = postSummaries(pages)
	return nil
}

func buildBlogTagIndexContext(a *App, r *http.Request, pc *PageContext) error {
	pc.Tag = normalizeTag(r.URL.Query().Get("tag"))
	tags, err := a.Cache.ListTags()
	if err != nil {
		return err
	}
	pc.Tags = tags
	if pc.Tag == "" {
		return nil
	}
	pages, err := a.Store.ListBlogPages(BlogPageQuery{Tag: pc.Tag, LiveAt: time.Now()})
	if err != nil {
		return err
	}
	pc.Posts = postSummaries(pages)
	return nil
}

func buildBlogPageContext(a *App, r *http.Request, pc *PageContext) error {
	bp := pc.Specific.(*BlogPage)
	pc.Meta.OGType = "article"
	if pc.Meta.Description == "" {
		pc.Meta.Description = bp.Intro
	}
	imageID := bp.FeedImageID
	if imageID == 0 && bp.MainImage() != nil {
		imageID = bp.MainImage().ImageID
	}
	if imageID != 0 {
		img, err := a.Store.GetImage(imageID)
		if err != nil && err != ErrNotFound {
			return err
		}
		if err == nil {
			pc.Meta.Image = a.absoluteURL(img.URL())
		}
	}
	return nil
}

func (a *App) tagIndexPath() string {
	p, err := a.Cache.TagIndexPath()
	if err != nil {
		a.Log.WithError(err).Warn("tag index lookup failed")
		return ""
	}
	return p
}

func (a *App) handleServe(c echo.Context) error {
	req := c.Request()
	resp, err := a.serve(req.Context(), req, servePath(req, ""))
	if err != nil {
		return err
	}
	return resp.Write(c)
}
