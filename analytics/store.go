package analytics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// tsLayout stores timestamps as UTC text that sorts chronologically and
// that SQLite's strftime understands.
const tsLayout = "2006-01-02 15:04:05"

// Store provides database operations for analytics.
type Store struct {
	db *sql.DB
}

// NewStore creates a new analytics store.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bot_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			path TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_id ON visits(visitor_id);
		CREATE INDEX IF NOT EXISTS idx_visits_path ON visits(path);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_timestamp ON bot_visits(timestamp);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 2

// migrate applies incremental schema migrations based on a version stored
// in the settings table.
func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}

	if version < 2 {
		// Rendering mode of the viewed page.
		for _, table := range []string{"visits", "bot_visits"} {
			if !s.hasColumn(table, "mode") {
				if _, err := s.db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN mode TEXT NOT NULL DEFAULT 'standard'`); err != nil {
					return fmt.Errorf("add %s.mode: %w", table, err)
				}
			}
		}
		version = 2
	}
	return s.SetSetting("schema_version", strconv.Itoa(version))
}

func (s *Store) hasColumn(table, column string) bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	return err == nil && n > 0
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveVisit stores a new visit in the database.
func (s *Store) SaveVisit(v *Visit) error {
	res, err := s.db.Exec(`INSERT INTO visits
		(visitor_id, session_id, ip_hash, browser, os, device, path, mode, referrer, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.SessionID, v.IPHash, v.Browser, v.OS, v.Device, v.Path,
		NormalizeMode(v.Mode), v.Referrer, v.Timestamp.UTC().Format(tsLayout))
	if err != nil {
		return err
	}
	v.ID, err = res.LastInsertId()
	return err
}

// SaveBotVisit stores a new bot visit in the database.
func (s *Store) SaveBotVisit(bv *BotVisit) error {
	res, err := s.db.Exec(`INSERT INTO bot_visits (bot_name, ip_hash, user_agent, path, mode, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		bv.BotName, bv.IPHash, bv.UserAgent, bv.Path, NormalizeMode(bv.Mode), bv.Timestamp.UTC().Format(tsLayout))
	if err != nil {
		return err
	}
	bv.ID, err = res.LastInsertId()
	return err
}

// bucketFormat returns the strftime format grouping views by hour, day or month.
func bucketFormat(hourly, monthly bool) string {
	switch {
	case hourly:
		return "%H:00"
	case monthly:
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

func (s *Store) count(query string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRow(query, args...).Scan(&n)
	return n, err
}

func (s *Store) dimension(query string, args ...any) ([]DimensionStat, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DimensionStat{}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) pageStats(query string, args ...any) ([]PageStat, error) {
	dims, err := s.dimension(query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]PageStat, len(dims))
	for i, d := range dims {
		out[i] = PageStat{Path: d.Name, Views: d.Count}
	}
	return out, nil
}

func (s *Store) series(query string, args ...any) ([]DailyView, error) {
	dims, err := s.dimension(query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]DailyView, len(dims))
	for i, d := range dims {
		out[i] = DailyView{Date: d.Name, Views: d.Count}
	}
	return out, nil
}

// GetStats returns aggregated statistics for views in [from, to).
func (s *Store) GetStats(from, to time.Time, hourly, monthly bool) (*Stats, error) {
	f, t := from.UTC().Format(tsLayout), to.UTC().Format(tsLayout)
	const where = ` FROM visits WHERE timestamp >= ? AND timestamp < ?`
	stats := &Stats{
		Period: from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
	}

	var err error
	if stats.TotalViews, err = s.count(`SELECT COUNT(*)`+where, f, t); err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	if stats.UniqueVisitors, err = s.count(`SELECT COUNT(DISTINCT visitor_id)`+where, f, t); err != nil {
		return nil, fmt.Errorf("count unique visitors: %w", err)
	}
	if stats.AMPViews, err = s.count(`SELECT COUNT(*)`+where+` AND mode = 'amp'`, f, t); err != nil {
		return nil, fmt.Errorf("count amp views: %w", err)
	}
	if stats.TotalViews > 0 {
		stats.AMPShare = float64(stats.AMPViews) / float64(stats.TotalViews)
	}

	if stats.TopPages, err = s.pageStats(`SELECT path, COUNT(*) AS n`+where+` GROUP BY path ORDER BY n DESC, path LIMIT 10`, f, t); err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	dims := []struct {
		column string
		dst    *[]DimensionStat
	}{
		{"browser", &stats.BrowserStats},
		{"os", &stats.OSStats},
		{"device", &stats.DeviceStats},
		{"referrer", &stats.ReferrerStats},
		{"mode", &stats.ModeStats},
	}
	for _, d := range dims {
		if *d.dst, err = s.dimension(`SELECT `+d.column+`, COUNT(*) AS n`+where+` GROUP BY `+d.column+` ORDER BY n DESC, `+d.column+` LIMIT 10`, f, t); err != nil {
			return nil, fmt.Errorf("%s stats: %w", d.column, err)
		}
	}
	if stats.DailyViews, err = s.series(`SELECT strftime('`+bucketFormat(hourly, monthly)+`', timestamp) AS bucket, COUNT(*)`+where+` GROUP BY bucket ORDER BY MIN(timestamp)`, f, t); err != nil {
		return nil, fmt.Errorf("views over time: %w", err)
	}

	rows, err := s.db.Query(`SELECT path, mode, timestamp, browser`+where+` ORDER BY timestamp DESC, id DESC LIMIT 10`, f, t)
	if err != nil {
		return nil, fmt.Errorf("latest pages: %w", err)
	}
	defer rows.Close()
	stats.LatestPages = []LatestPageVisit{}
	for rows.Next() {
		var v LatestPageVisit
		if err := rows.Scan(&v.Path, &v.Mode, &v.Timestamp, &v.Browser); err != nil {
			return nil, err
		}
		stats.LatestPages = append(stats.LatestPages, v)
	}
	return stats, rows.Err()
}

// GetBotStats returns aggregated bot statistics for visits in [from, to).
func (s *Store) GetBotStats(from, to time.Time, hourly, monthly bool) (*BotStats, error) {
	f, t := from.UTC().Format(tsLayout), to.UTC().Format(tsLayout)
	const where = ` FROM bot_visits WHERE timestamp >= ? AND timestamp < ?`
	stats := &BotStats{
		Period: from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
	}

	var err error
	if stats.TotalVisits, err = s.count(`SELECT COUNT(*)`+where, f, t); err != nil {
		return nil, fmt.Errorf("count bot visits: %w", err)
	}
	if stats.TopBots, err = s.dimension(`SELECT bot_name, COUNT(*) AS n`+where+` GROUP BY bot_name ORDER BY n DESC, bot_name LIMIT 10`, f, t); err != nil {
		return nil, fmt.Errorf("top bots: %w", err)
	}
	if stats.TopPages, err = s.pageStats(`SELECT path, COUNT(*) AS n`+where+` GROUP BY path ORDER BY n DESC, path LIMIT 10`, f, t); err != nil {
		return nil, fmt.Errorf("top bot pages: %w", err)
	}
	if stats.DailyVisits, err = s.series(`SELECT strftime('`+bucketFormat(hourly, monthly)+`', timestamp) AS bucket, COUNT(*)`+where+` GROUP BY bucket ORDER BY MIN(timestamp)`, f, t); err != nil {
		return nil, fmt.Errorf("bot visits over time: %w", err)
	}
	return stats, nil
}

// CleanupOldVisits removes visits and bot visits older than the retention period.
func (s *Store) CleanupOldVisits(retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(tsLayout)
	if _, err := s.db.Exec(`DELETE FROM visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup visits: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM bot_visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup bot_visits: %w", err)
	}
	return nil
}

// GetRealtimeVisitors returns the number of unique visitors in the last 5 minutes.
func (s *Store) GetRealtimeVisitors() (int, error) {
	cutoff := time.Now().UTC().Add(-5 * time.Minute).Format(tsLayout)
	return s.count(`SELECT COUNT(DISTINCT visitor_id) FROM visits WHERE timestamp >= ?`, cutoff)
}
