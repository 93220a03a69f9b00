// Package analytics provides privacy-first page view analytics. Views are
// recorded through a tracking pixel, which works on AMP pages where custom
// scripts are not allowed; IP addresses are only stored as salted hashes.
package analytics

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// salt holds the per-installation random salt for IP hashing, protected by sync.Once.
var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads or generates a persistent salt for IP hashing.
// Must be called once at startup before any requests are served.
func InitSalt(store *Store) error {
	var initErr error
	salt.once.Do(func() {
		s, err := store.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if s == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			s = hex.EncodeToString(b)
			if err := store.SetSetting("hash_salt", s); err != nil {
				initErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		salt.value = s
	})
	return initErr
}

// getSalt returns the initialized salt value.
func getSalt() string {
	return salt.value
}

// Mode values recorded with each page view.
const (
	ModeStandard = "standard"
	ModeAMP      = "amp"
)

// Visit represents a single page view.
type Visit struct {
	ID        int64     `json:"-"`
	VisitorID string    `json:"visitor_id"` // Anonymous fingerprint hash
	SessionID string    `json:"session_id"`
	IPHash    string    `json:"-"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Device    string    `json:"device"` // Desktop, Mobile, Tablet
	Path      string    `json:"path"`
	Mode      string    `json:"mode"` // standard or amp
	Referrer  string    `json:"referrer"`
	Timestamp time.Time `json:"timestamp"`
}

// BotVisit represents a single bot/crawler page view.
type BotVisit struct {
	ID        int64     `json:"-"`
	BotName   string    `json:"bot_name"` // e.g. "Googlebot"
	IPHash    string    `json:"-"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats holds aggregated analytics data.
type Stats struct {
	Period         string            `json:"period"`
	UniqueVisitors int               `json:"unique_visitors"`
	TotalViews     int               `json:"total_views"`
	AMPViews       int               `json:"amp_views"`
	AMPShare       float64           `json:"amp_share"` // AMPViews / TotalViews, 0 without views
	TopPages       []PageStat        `json:"top_pages"`
	LatestPages    []LatestPageVisit `json:"latest_pages"`
	BrowserStats   []DimensionStat   `json:"browsers"`
	OSStats        []DimensionStat   `json:"os"`
	DeviceStats    []DimensionStat   `json:"devices"`
	ReferrerStats  []DimensionStat   `json:"referrers"`
	ModeStats      []DimensionStat   `json:"modes"`
	DailyViews     []DailyView       `json:"daily_views"`
}

// BotStats holds aggregated bot analytics data.
type BotStats struct {
	Period      string          `json:"period"`
	TotalVisits int             `json:"total_visits"`
	TopBots     []DimensionStat `json:"top_bots"`
	TopPages    []PageStat      `json:"top_pages"`
	DailyVisits []DailyView     `json:"daily_visits"`
}

// PageStat represents page view statistics.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// LatestPageVisit represents a single recent page visit.
type LatestPageVisit struct {
	Path      string `json:"path"`
	Mode      string `json:"mode"`
	Timestamp string `json:"timestamp"`
	Browser   string `json:"browser"`
}

// DimensionStat represents a dimension breakdown (browser, OS, etc.).
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyView represents views per day.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// HashIP creates a salted SHA-256 hash of an IP address.
func HashIP(ip string) string {
	h := sha256.New()
	h.Write([]byte(getSalt() + ip))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateVisitorID creates a salted visitor ID from IP and User-Agent.
func GenerateVisitorID(ip, userAgent string) string {
	h := sha256.New()
	h.Write([]byte(getSalt() + ip + "|" + userAgent))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Agent is what analytics keeps of a User-Agent string.
type Agent struct {
	Browser string
	OS      string
	Device  string
}

// ParseUserAgent extracts browser, OS, and device from a User-Agent string.
// Order matters within each switch: Edge and Opera announce Chrome, Android
// announces Linux and iPads announce Mobile.
func ParseUserAgent(ua string) Agent {
	ua = strings.ToLower(ua)
	var a Agent

	switch {
	case strings.Contains(ua, "firefox"):
		a.Browser = "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr/"):
		a.Browser = "Opera"
	case strings.Contains(ua, "edg"):
		a.Browser = "Edge"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		a.Browser = "Chrome"
	case strings.Contains(ua, "safari"):
		a.Browser = "Safari"
	default:
		a.Browser = "Other"
	}

	switch {
	case strings.Contains(ua, "windows"):
		a.OS = "Windows"
	case strings.Contains(ua, "android"):
		a.OS = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		a.OS = "iOS"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		a.OS = "macOS"
	case strings.Contains(ua, "linux"):
		a.OS = "Linux"
	default:
		a.OS = "Other"
	}

	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		a.Device = "Tablet"
	case strings.Contains(ua, "mobile"):
		a.Device = "Mobile"
	default:
		a.Device = "Desktop"
	}
	return a
}

// knownBots maps User-Agent fragments to bot names, most specific first.
var knownBots = []struct{ pattern, name string }{
	{"googlebot", "Googlebot"},
	{"google-amphtml", "Google AMP"},
	{"bingbot", "Bingbot"},
	{"yandex", "Yandex"},
	{"baidu", "Baidu"},
	{"duckduckbot", "DuckDuckBot"},
	{"facebookexternalhit", "Facebook"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedIn"},
	{"ahrefsbot", "Ahrefs"},
	{"semrushbot", "SEMrush"},
	{"mj12bot", "Majestic"},
	{"dotbot", "Moz"},
	{"slurp", "Yahoo Slurp"},
	{"crawler", "Generic Crawler"},
	{"crawl", "Generic Crawler"},
	{"spider", "Generic Spider"},
	{"scrape", "Scraper"},
	{"bot", "Other Bot"},
}

// BotName reports whether ua looks like a bot or crawler and names it.
func BotName(ua string) (string, bool) {
	ua = strings.ToLower(ua)
	for _, b := range knownBots {
		if strings.Contains(ua, b.pattern) {
			return b.name, true
		}
	}
	return "", false
}

// referrerDomainRegex is pre-compiled for use in CleanReferrer.
var referrerDomainRegex = regexp.MustCompile(`^https?://(?:www\.)?([^/]+)`)

// CleanReferrer extracts the domain from a referrer URL.
func CleanReferrer(ref string) string {
	if ref == "" {
		return "Direct"
	}

	// Check for common search engines
	refLower := strings.ToLower(ref)
	if strings.Contains(refLower, "google.") {
		return "Google"
	}
	if strings.Contains(refLower, "bing.") {
		return "Bing"
	}
	if strings.Contains(refLower, "duckduckgo.") {
		return "DuckDuckGo"
	}
	if strings.Contains(refLower, "yahoo.") {
		return "Yahoo"
	}
	if strings.Contains(refLower, "github.") {
		return "GitHub"
	}

	// Extract domain
	matches := referrerDomainRegex.FindStringSubmatch(ref)
	if len(matches) > 1 {
		return matches[1]
	}

	return "Other"
}

// NormalizeMode maps anything but "amp" to the standard mode.
func NormalizeMode(m string) string {
	if m == ModeAMP {
		return ModeAMP
	}
	return ModeStandard
}
