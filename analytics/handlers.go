package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// pixelGIF is a transparent 1x1 GIF.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Input validation limits for the pixel endpoint.
const (
	maxPathLen      = 2048
	maxReferrerLen  = 2048
	maxUserAgentLen = 512
)

// Handler handles analytics HTTP requests.
type Handler struct {
	store        *Store
	log          logrus.FieldLogger
	pixelLimiter *rateLimiter
	now          func() time.Time
}

// NewHandler creates a new analytics handler.
// The pixel endpoint records at most 60 views per IP per minute.
func NewHandler(store *Store, log logrus.FieldLogger) *Handler {
	return &Handler{
		store:        store,
		log:          log,
		pixelLimiter: newRateLimiter(60, time.Minute),
		now:          time.Now,
	}
}

// RegisterRoutes mounts the pixel on public and the stats API on admin,
// which the caller protects.
func (h *Handler) RegisterRoutes(public, admin *echo.Group) {
	public.GET("/pixel", h.Pixel)
	admin.GET("/stats", h.GetStats)
	admin.GET("/bot-stats", h.GetBotStats)
}

// Pixel records a page view and always answers with the tracking image, so
// pages never show a broken image. The page path and rendering mode come
// from the query string; the referrer is the page's own referrer when the
// page passes it, else the Referer header.
func (h *Handler) Pixel(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	if err := h.record(c); err != nil {
		h.log.WithError(err).Warn("analytics: record view failed")
	}
	return c.Blob(http.StatusOK, "image/gif", pixelGIF)
}

func (h *Handler) record(c echo.Context) error {
	req := c.Request()
	if req.Header.Get("DNT") == "1" || req.Header.Get("Sec-GPC") == "1" {
		return nil
	}
	ip := c.RealIP()
	if !h.pixelLimiter.allow(ip) {
		return nil
	}

	path := c.QueryParam("path")
	referrer := c.QueryParam("ref")
	if referrer == "" {
		referrer = req.Referer()
	}
	userAgent := req.UserAgent()
	if path == "" || !strings.HasPrefix(path, "/") || len(path) > maxPathLen ||
		len(referrer) > maxReferrerLen || len(userAgent) > maxUserAgentLen {
		return nil
	}
	mode := NormalizeMode(c.QueryParam("mode"))
	now := h.now().UTC()

	if name, ok := BotName(userAgent); ok {
		return h.store.SaveBotVisit(&BotVisit{
			BotName:   name,
			IPHash:    HashIP(ip),
			UserAgent: userAgent,
			Path:      path,
			Mode:      mode,
			Timestamp: now,
		})
	}

	agent := ParseUserAgent(userAgent)
	visitorID := GenerateVisitorID(ip, userAgent)
	return h.store.SaveVisit(&Visit{
		VisitorID: visitorID,
		SessionID: sessionID(visitorID, now),
		IPHash:    HashIP(ip),
		Browser:   agent.Browser,
		OS:        agent.OS,
		Device:    agent.Device,
		Path:      path,
		Mode:      mode,
		Referrer:  CleanReferrer(referrer),
		Timestamp: now,
	})
}

// StatsResponse is the JSON response for the stats endpoint.
type StatsResponse struct {
	Stats    *Stats `json:"stats"`
	Realtime int    `json:"realtime_visitors"`
	Period   string `json:"period"`
}

// GetStats returns visitor statistics for ?period=today|week|month|year.
func (h *Handler) GetStats(c echo.Context) error {
	period, days, hourly, monthly := parsePeriod(c.QueryParam("period"))
	from, to := calcTimeRange(h.now().UTC(), days, hourly)

	stats, err := h.store.GetStats(from, to, hourly, monthly)
	if err != nil {
		return fmt.Errorf("analytics: stats: %w", err)
	}
	if hourly {
		stats.DailyViews = fillHourlyData(stats.DailyViews, from)
	}
	realtime, err := h.store.GetRealtimeVisitors()
	if err != nil {
		return fmt.Errorf("analytics: realtime visitors: %w", err)
	}
	return c.JSON(http.StatusOK, StatsResponse{Stats: stats, Realtime: realtime, Period: period})
}

// BotStatsResponse is the JSON response for the bot stats endpoint.
type BotStatsResponse struct {
	Stats  *BotStats `json:"stats"`
	Period string    `json:"period"`
}

// GetBotStats returns crawler statistics for ?period=.
func (h *Handler) GetBotStats(c echo.Context) error {
	period, days, hourly, monthly := parsePeriod(c.QueryParam("period"))
	from, to := calcTimeRange(h.now().UTC(), days, hourly)

	stats, err := h.store.GetBotStats(from, to, hourly, monthly)
	if err != nil {
		return fmt.Errorf("analytics: bot stats: %w", err)
	}
	if hourly {
		stats.DailyVisits = fillHourlyData(stats.DailyVisits, from)
	}
	return c.JSON(http.StatusOK, BotStatsResponse{Stats: stats, Period: period})
}

// parsePeriod maps the period query parameter to a number of days and the
// bucket size: hourly for today, monthly for a year, else daily.
func parsePeriod(period string) (name string, days int, hourly, monthly bool) {
	switch period {
	case "today":
		return period, 1, true, false
	case "month":
		return period, 30, false, false
	case "year":
		return period, 365, false, true
	default:
		return "week", 7, false, false
	}
}

// calcTimeRange returns the from/to times for the given period.
func calcTimeRange(now time.Time, days int, hourly bool) (time.Time, time.Time) {
	if hourly {
		from := now.Truncate(time.Hour).Add(-23 * time.Hour)
		return from, now.Add(time.Second)
	}
	from := now.AddDate(0, 0, -days).Truncate(24 * time.Hour)
	to := now.Add(24 * time.Hour).Truncate(24 * time.Hour)
	return from, to
}

// fillHourlyData ensures all 24 hourly slots are present, filling gaps with zero.
func fillHourlyData(sparse []DailyView, from time.Time) []DailyView {
	views := make(map[string]int, len(sparse))
	for _, v := range sparse {
		views[v.Date] = v.Views
	}
	result := make([]DailyView, 24)
	for i := range result {
		label := fmt.Sprintf("%02d:00", from.Add(time.Duration(i)*time.Hour).Hour())
		result[i] = DailyView{Date: label, Views: views[label]}
	}
	return result
}

// sessionID derives a per-day session from the visitor identity.
func sessionID(visitorID string, now time.Time) string {
	h := sha256.Sum256([]byte(visitorID + "|" + now.Format("2006-01-02")))
	return hex.EncodeToString(h[:])[:16]
}
