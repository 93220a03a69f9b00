package pagecms

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const maxPageBody = 2 << 20

func (a *App) registerAdminRoutes(g *echo.Group) {
	g.GET("/session", a.handleAdminSession)
	g.POST("/login", a.handleAdminLogin)
	g.POST("/logout", handleAdminLogout)

	auth := g.Group("", a.requireAdmin)
	auth.GET("/models", handleAdminModels)

	auth.GET("/pages", a.handleAdminPages)
	auth.POST("/pages", a.handleAdminCreatePage)
	auth.GET("/pages/:id", a.handleAdminPage)
	auth.PUT("/pages/:id", a.handleAdminUpdatePage)
	auth.DELETE("/pages/:id", a.handleAdminDeletePage)
	auth.POST("/pages/:id/publish", a.handleAdminPublish)
	auth.POST("/pages/:id/unpublish", a.handleAdminUnpublish)

	auth.GET("/authors", a.handleAdminAuthors)
	auth.POST("/authors", a.handleAdminSaveAuthor)
	auth.PUT("/authors/:id", a.handleAdminSaveAuthor)
	auth.DELETE("/authors/:id", a.handleAdminDeleteAuthor)

	auth.GET("/images", a.handleImageList)
	auth.POST("/images", a.handleImageUpload)
	auth.DELETE("/images/:id", a.handleImageDelete)
}

// checkPassword accepts the configured password in plain text or as a
// bcrypt hash.
func (a *App) checkPassword(pass string) bool {
	want := a.Config.AdminPassword
	if strings.HasPrefix(want, "$2a$") || strings.HasPrefix(want, "$2b$") || strings.HasPrefix(want, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(want), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1
}

func (a *App) handleAdminSession(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": IsAdmin(c),
		"csrf_token":    CsrfToken(c),
	})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var req struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login request")
	}
	if !a.checkPassword(req.Password) {
		a.loginLimiter.Record(ip)
		a.Log.WithField("ip", ip).Warn("failed admin login")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"authenticated": true})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func handleAdminModels(c echo.Context) error {
	type modelInfo struct {
		*PageModel
		AMP bool `json:"amp"`
	}
	out := make([]modelInfo, len(Models))
	for i, m := range Models {
		out[i] = modelInfo{PageModel: m, AMP: m.SupportsAMP()}
	}
	return c.JSON(http.StatusOK, out)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (a *App) handleAdminPages(c echo.Context) error {
	var (
		pages []*Page
		err   error
	)
	if parent := c.QueryParam("parent"); parent != "" {
		id, perr := strconv.ParseInt(parent, 10, 64)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid parent")
		}
		pages, err = a.Store.ListChildren(id)
	} else {
		pages, err = a.Store.ListPages()
	}
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []*Page{}
	}
	return c.JSON(http.StatusOK, pages)
}

func (a *App) handleAdminPage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	page, err := a.Store.GetPage(id)
	if err != nil {
		return err
	}
	sp, err := a.Store.GetSpecific(page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sp)
}

func readJSON(c echo.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPageBody))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return raw, nil
}

func (a *App) handleAdminCreatePage(c echo.Context) error {
	raw, err := readJSON(c)
	if err != nil {
		return err
	}
	var head struct {
		Type PageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	sp, err := NewSpecific(head.Type)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := json.Unmarshal(raw, sp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page: "+err.Error())
	}
	sp.Base().ID = 0
	sp.Base().Type = head.Type
	if err := a.Store.SaveSpecific(sp); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Log.WithField("page_id", sp.Base().ID).WithField("type", head.Type).Info("page created")
	saved, err := a.Store.GetSpecific(sp.Base())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, saved)
}

func (a *App) handleAdminUpdatePage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	page, err := a.Store.GetPage(id)
	if err != nil {
		return err
	}
	raw, err := readJSON(c)
	if err != nil {
		return err
	}
	sp, err := NewSpecific(page.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, sp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page: "+err.Error())
	}
	sp.Base().ID = id
	if err := a.Store.SaveSpecific(sp); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Log.WithField("page_id", id).Info("page saved")
	saved, err := a.Store.GetSpecific(sp.Base())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleAdminDeletePage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeletePage(id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Log.WithField("page_id", id).Info("page deleted")
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleAdminPublish(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := a.Store.PublishPage(id, time.Now()); err != nil {
		return err
	}
	a.Cache.Invalidate()
	page, err := a.Store.GetPage(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (a *App) handleAdminUnpublish(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := a.Store.UnpublishPage(id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	page, err := a.Store.GetPage(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (a *App) handleAdminAuthors(c echo.Context) error {
	authors, err := a.Store.ListAuthors()
	if err != nil {
		return err
	}
	if authors == nil {
		authors = []Author{}
	}
	return c.JSON(http.StatusOK, authors)
}

func (a *App) handleAdminSaveAuthor(c echo.Context) error {
	var au Author
	if err := c.Bind(&au); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid author")
	}
	status := http.StatusCreated
	au.ID = 0
	if c.Param("id") != "" {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		au.ID = id
		status = http.StatusOK
	}
	if err := a.Store.SaveAuthor(&au); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(status, au)
}

func (a *App) handleAdminDeleteAuthor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteAuthor(id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.NoContent(http.StatusNoContent)
}
