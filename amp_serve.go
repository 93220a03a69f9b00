package pagecms

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecms/amp"
)

// handleAMPServe serves any page under the AMP prefix. Serving and template
// rendering both run inside the AMP scope; the response is written after
// the scope has closed, so nothing that outlives the request sees the mode.
func (a *App) handleAMPServe(c echo.Context) error {
	req := c.Request()
	path := servePath(req, amp.Prefix)

	var resp Response
	err := amp.Do(req.Context(), func(ctx context.Context) error {
		r, err := a.serve(ctx, req.WithContext(ctx), path)
		if err != nil {
			return err
		}
		if tr, ok := r.(*TemplateResponse); ok {
			if err := tr.Render(ctx); err != nil {
				return err
			}
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	return resp.Write(c)
}
