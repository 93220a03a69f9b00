package pagecms

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecms/amp"
)

// Response is the result of serving a page.
type Response interface {
	Write(c echo.Context) error
}

// TemplateResponse renders a page template on demand. Rendering is
// deferred until Render or Write is called, and the template is chosen
// from the context rendering happens under, not the one it was created in.
type TemplateResponse struct {
	Status   int
	Template amp.TemplateResolver
	Context  *PageContext

	app      *App
	pageType PageType
	name     string
	body     []byte
	rendered bool
}

// Render resolves the template name with ctx and executes it. Once it has
// succeeded, later calls do nothing.
func (r *TemplateResponse) Render(ctx context.Context) error {
	if r.rendered {
		return nil
	}
	mode := modeLabel(ctx)
	name := r.Template.ResolveTemplate(ctx)
	r.Context.bind(ctx)

	start := time.Now()
	cmp, err := r.app.Templates.Component(name, r.Context)
	if err != nil {
		r.app.metrics.renderErrors.WithLabelValues(mode).Inc()
		return fmt.Errorf("pagecms: render %s: %w", r.pageType, err)
	}
	var buf bytes.Buffer
	if err := cmp.Render(ctx, &buf); err != nil {
		r.app.metrics.renderErrors.WithLabelValues(mode).Inc()
		return fmt.Errorf("pagecms: render %s with %s: %w", r.pageType, name, err)
	}
	r.app.metrics.renderSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	r.app.metrics.served.WithLabelValues(mode, string(r.pageType)).Inc()

	r.name = name
	r.body = buf.Bytes()
	r.rendered = true
	return nil
}

// IsRendered reports whether the body has been rendered.
func (r *TemplateResponse) IsRendered() bool { return r.rendered }

// TemplateName returns the template the body was rendered with.
func (r *TemplateResponse) TemplateName() string { return r.name }

// Body returns the rendered body.
func (r *TemplateResponse) Body() []byte { return r.body }

// Write renders with the request context if needed and writes the body.
func (r *TemplateResponse) Write(c echo.Context) error {
	if err := r.Render(c.Request().Context()); err != nil {
		return err
	}
	return RenderStatus(c, r.Status, templ.Raw(string(r.body)))
}

// RedirectResponse sends the client to another location.
type RedirectResponse struct {
	Status   int
	Location string
}

// Write implements Response.
func (r *RedirectResponse) Write(c echo.Context) error {
	return c.Redirect(r.Status, r.Location)
}
