package pagecms

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pagecms/blocks"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = sql.ErrNoRows

// Store wraps a SQLite database holding the page tree, its content and the
// uploaded image metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// busy_timeout and foreign_keys are per connection, so they go in the
	// DSN where every pooled connection picks them up.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT '',
    filename TEXT NOT NULL UNIQUE,
    original_name TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id INTEGER REFERENCES pages(id) ON DELETE CASCADE,
    page_type TEXT NOT NULL,
    title TEXT NOT NULL,
    slug TEXT NOT NULL,
    url_path TEXT NOT NULL UNIQUE,
    live INTEGER NOT NULL DEFAULT 0,
    sort_order INTEGER NOT NULL DEFAULT 0,
    seo_title TEXT NOT NULL DEFAULT '',
    search_description TEXT NOT NULL DEFAULT '',
    show_in_menus INTEGER NOT NULL DEFAULT 0,
    first_published_at TEXT,
    last_published_at TEXT,
    go_live_at TEXT,
    expire_at TEXT
);
CREATE INDEX IF NOT EXISTS pages_parent_idx ON pages(parent_id);
CREATE TABLE IF NOT EXISTS blog_index_pages (
    page_id INTEGER PRIMARY KEY REFERENCES pages(id) ON DELETE CASCADE,
    intro TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS blog_pages (
    page_id INTEGER PRIMARY KEY REFERENCES pages(id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    intro TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '[]',
    feed_image_id INTEGER REFERENCES images(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS blog_tag_index_pages (
    page_id INTEGER PRIMARY KEY REFERENCES pages(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS blog_page_tags (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    tag TEXT NOT NULL,
    PRIMARY KEY (page_id, tag)
);
CREATE INDEX IF NOT EXISTS blog_page_tags_tag_idx ON blog_page_tags(tag);
CREATE TABLE IF NOT EXISTS authors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    image_id INTEGER REFERENCES images(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS blog_page_authors (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
    sort_order INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (page_id, author_id)
);
CREATE TABLE IF NOT EXISTS blog_page_related_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    sort_order INTEGER NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS blog_page_gallery_images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    sort_order INTEGER NOT NULL,
    image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
    caption TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS redirects (
    old_path TEXT PRIMARY KEY,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE
);
`)
	return err
}

type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const pageColumns = `p.id, COALESCE(p.parent_id, 0), p.page_type, p.title, p.slug, p.url_path, p.live,
	p.sort_order, p.seo_title, p.search_description, p.show_in_menus,
	p.first_published_at, p.last_published_at, p.go_live_at, p.expire_at`

// scanPage scans pageColumns followed by extra destinations.
func scanPage(sc scanner, extra ...any) (*Page, error) {
	var (
		p                           Page
		typ                         string
		live, menus                 int
		first, last, golive, expire sql.NullString
	)
	dest := append([]any{
		&p.ID, &p.ParentID, &typ, &p.Title, &p.Slug, &p.URLPath, &live,
		&p.SortOrder, &p.SeoTitle, &p.SearchDescription, &menus,
		&first, &last, &golive, &expire,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	p.Type = PageType(typ)
	p.Live = live == 1
	p.ShowInMenus = menus == 1
	p.FirstPublishedAt = parseTime(first)
	p.LastPublishedAt = parseTime(last)
	p.GoLiveAt = parseTime(golive)
	p.ExpireAt = parseTime(expire)
	return &p, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetPage returns the page with the given id.
func (s *Store) GetPage(id int64) (*Page, error) {
	return scanPage(s.db.QueryRow(`SELECT `+pageColumns+` FROM pages p WHERE p.id = ?`, id))
}

// GetPageByPath returns the page whose URL path is path, e.g. "/blog/".
func (s *Store) GetPageByPath(path string) (*Page, error) {
	return scanPage(s.db.QueryRow(`SELECT `+pageColumns+` FROM pages p WHERE p.url_path = ?`, path))
}

// FirstLivePage returns the live page of type t closest to the root.
func (s *Store) FirstLivePage(t PageType) (*Page, error) {
	return scanPage(s.db.QueryRow(`SELECT `+pageColumns+` FROM pages p
		WHERE p.page_type = ? AND p.live = 1 ORDER BY length(p.url_path), p.url_path LIMIT 1`, string(t)))
}

// ListChildren returns the direct children of parentID in menu order.
func (s *Store) ListChildren(parentID int64) ([]*Page, error) {
	return s.queryPages(`SELECT `+pageColumns+` FROM pages p WHERE COALESCE(p.parent_id, 0) = ? ORDER BY p.sort_order, p.id`, parentID)
}

// ListPages returns every page ordered by URL path, so parents precede
// their children.
func (s *Store) ListPages() ([]*Page, error) {
	return s.queryPages(`SELECT ` + pageColumns + ` FROM pages p ORDER BY p.url_path`)
}

// ScheduledPages returns unpublished pages whose go-live time has passed
// and that have not expired since.
func (s *Store) ScheduledPages(now time.Time) ([]*Page, error) {
	return s.queryPages(`SELECT `+pageColumns+` FROM pages p WHERE p.live = 0 AND p.go_live_at IS NOT NULL AND p.go_live_at <= ?
		AND (p.expire_at IS NULL OR p.expire_at > ?) ORDER BY p.id`, formatTime(&now), formatTime(&now))
}

// ExpiredPages returns live pages whose expiry time has passed.
func (s *Store) ExpiredPages(now time.Time) ([]*Page, error) {
	return s.queryPages(`SELECT `+pageColumns+` FROM pages p WHERE p.live = 1 AND p.expire_at IS NOT NULL AND p.expire_at <= ? ORDER BY p.id`, formatTime(&now))
}

func (s *Store) queryPages(query string, args ...any) ([]*Page, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []*Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetSpecific loads the concrete page behind p.
func (s *Store) GetSpecific(p *Page) (Specific, error) {
	switch p.Type {
	case TypeBlogIndexPage:
		return s.GetBlogIndexPage(p.ID)
	case TypeBlogPage:
		return s.GetBlogPage(p.ID)
	case TypeBlogTagIndexPage:
		return s.GetBlogTagIndexPage(p.ID)
	default:
		return nil, fmt.Errorf("pagecms: unknown page type %q", p.Type)
	}
}

// SaveSpecific saves a concrete page of any registered type.
func (s *Store) SaveSpecific(sp Specific) error {
	switch p := sp.(type) {
	case *BlogIndexPage:
		return s.SaveBlogIndexPage(p)
	case *BlogPage:
		return s.SaveBlogPage(p)
	case *BlogTagIndexPage:
		return s.SaveBlogTagIndexPage(p)
	default:
		return fmt.Errorf("pagecms: cannot save %T", sp)
	}
}

// GetBlogIndexPage returns the blog index page with the given id.
func (s *Store) GetBlogIndexPage(id int64) (*BlogIndexPage, error) {
	var intro string
	p, err := scanPage(s.db.QueryRow(`SELECT `+pageColumns+`, b.intro FROM pages p
		JOIN blog_index_pages b ON b.page_id = p.id WHERE p.id = ?`, id), &intro)
	if err != nil {
		return nil, err
	}
	return &BlogIndexPage{Page: *p, Intro: intro}, nil
}

// GetBlogTagIndexPage returns the tag index page with the given id.
func (s *Store) GetBlogTagIndexPage(id int64) (*BlogTagIndexPage, error) {
	p, err := scanPage(s.db.QueryRow(`SELECT `+pageColumns+` FROM pages p
		JOIN blog_tag_index_pages b ON b.page_id = p.id WHERE p.id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &BlogTagIndexPage{Page: *p}, nil
}

const blogPageQuery = `SELECT ` + pageColumns + `, b.date, b.intro, b.body, COALESCE(b.feed_image_id, 0)
	FROM pages p JOIN blog_pages b ON b.page_id = p.id`

func scanBlogPage(sc scanner) (*BlogPage, error) {
	var (
		bp   BlogPage
		body string
	)
	p, err := scanPage(sc, &bp.Date, &bp.Intro, &body, &bp.FeedImageID)
	if err != nil {
		return nil, err
	}
	bp.Page = *p
	// Stored bodies were valid when saved. Cleaning again attaches the block
	// definitions rendering needs; validation problems introduced by later
	// schema changes are tolerated here.
	v, err := BlogPageBody.Clean(json.RawMessage(body))
	if err != nil {
		if _, ok := err.(ValidationErrors); !ok {
			return nil, fmt.Errorf("pagecms: decode body of page %d: %w", bp.ID, err)
		}
	}
	bp.Body, _ = v.(blocks.StreamValue)
	return &bp, nil
}

// GetBlogPage returns the blog page with the given id, including its tags,
// authors, gallery images and related links.
func (s *Store) GetBlogPage(id int64) (*BlogPage, error) {
	bp, err := scanBlogPage(s.db.QueryRow(blogPageQuery+` WHERE p.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadBlogPageRelations(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// BlogPageQuery filters ListBlogPages.
type BlogPageQuery struct {
	ParentID int64     // direct children of this page only; 0 for all
	Tag      string    // only pages carrying this tag
	LiveAt   time.Time // only pages servable at this time; zero for all
	Limit    int
}

// ListBlogPages returns blog pages ordered by first publication, newest
// first. Pages never published sort last.
func (s *Store) ListBlogPages(q BlogPageQuery) ([]*BlogPage, error) {
	var (
		where []string
		args  []any
	)
	if q.ParentID != 0 {
		where = append(where, `p.parent_id = ?`)
		args = append(args, q.ParentID)
	}
	if !q.LiveAt.IsZero() {
		where = append(where, `p.live = 1 AND (p.expire_at IS NULL OR p.expire_at > ?)`)
		args = append(args, formatTime(&q.LiveAt))
	}
	if tag := normalizeTag(q.Tag); tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM blog_page_tags t WHERE t.page_id = p.id AND t.tag = ?)`)
		args = append(args, tag)
	}
	query := blogPageQuery
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.first_published_at IS NULL, p.first_published_at DESC, p.id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var pages []*BlogPage
	for rows.Next() {
		bp, err := scanBlogPage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pages = append(pages, bp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, bp := range pages {
		if err := s.loadBlogPageRelations(bp); err != nil {
			return nil, err
		}
	}
	return pages, nil
}

func (s *Store) loadBlogPageRelations(bp *BlogPage) error {
	tags, err := s.queryStrings(`SELECT tag FROM blog_page_tags WHERE page_id = ? ORDER BY tag`, bp.ID)
	if err != nil {
		return err
	}
	bp.Tags = tags

	rows, err := s.db.Query(`SELECT a.id, a.name, COALESCE(a.image_id, 0) FROM authors a
		JOIN blog_page_authors pa ON pa.author_id = a.id
		WHERE pa.page_id = ? ORDER BY pa.sort_order, a.id`, bp.ID)
	if err != nil {
		return err
	}
	bp.Authors = nil
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name, &a.ImageID); err != nil {
			rows.Close()
			return err
		}
		bp.Authors = append(bp.Authors, a)
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT id, image_id, caption FROM blog_page_gallery_images WHERE page_id = ? ORDER BY sort_order`, bp.ID)
	if err != nil {
		return err
	}
	bp.GalleryImages = nil
	for rows.Next() {
		var g GalleryImage
		if err := rows.Scan(&g.ID, &g.ImageID, &g.Caption); err != nil {
			rows.Close()
			return err
		}
		bp.GalleryImages = append(bp.GalleryImages, g)
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT id, name, url FROM blog_page_related_links WHERE page_id = ? ORDER BY sort_order`, bp.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	bp.RelatedLinks = nil
	for rows.Next() {
		var l RelatedLink
		if err := rows.Scan(&l.ID, &l.Name, &l.URL); err != nil {
			return err
		}
		bp.RelatedLinks = append(bp.RelatedLinks, l)
	}
	return rows.Err()
}

func (s *Store) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListTags returns the sorted, distinct tags of live blog pages.
func (s *Store) ListTags() ([]string, error) {
	return s.queryStrings(`SELECT DISTINCT t.tag FROM blog_page_tags t
		JOIN pages p ON p.id = t.page_id WHERE p.live = 1 ORDER BY t.tag`)
}

// SaveBlogIndexPage validates and creates or updates p.
func (s *Store) SaveBlogIndexPage(p *BlogIndexPage) error {
	return s.save(&p.Page, CleanBlogIndexPage(p), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO blog_index_pages (page_id, intro) VALUES (?, ?)
			ON CONFLICT(page_id) DO UPDATE SET intro = excluded.intro`, p.ID, p.Intro)
		return err
	})
}

// SaveBlogTagIndexPage validates and creates or updates p.
func (s *Store) SaveBlogTagIndexPage(p *BlogTagIndexPage) error {
	return s.save(&p.Page, CleanBlogTagIndexPage(p), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR IGNORE INTO blog_tag_index_pages (page_id) VALUES (?)`, p.ID)
		return err
	})
}

// SaveBlogPage validates and creates or updates p. Pages whose body holds
// fewer than two or more than seven blocks are rejected with
// ValidationErrors.
func (s *Store) SaveBlogPage(p *BlogPage) error {
	return s.save(&p.Page, CleanBlogPage(p), func(tx *sql.Tx) error {
		var f fieldErrors
		if p.FeedImageID != 0 && !rowExists(tx, "images", p.FeedImageID) {
			f.add("feed_image_id", "Select a valid image.")
		}
		for i, a := range p.Authors {
			if !rowExists(tx, "authors", a.ID) {
				f.add(fmt.Sprintf("authors.%d", i), "Select a valid author.")
			}
		}
		for i, g := range p.GalleryImages {
			if !rowExists(tx, "images", g.ImageID) {
				f.add(fmt.Sprintf("gallery_images.%d.image", i), "Select a valid image.")
			}
		}
		if err := f.err(); err != nil {
			return err
		}

		body := p.Body
		if body == nil {
			body = blocks.StreamValue{}
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("pagecms: encode body: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO blog_pages (page_id, date, intro, body, feed_image_id) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(page_id) DO UPDATE SET date = excluded.date, intro = excluded.intro,
				body = excluded.body, feed_image_id = excluded.feed_image_id`,
			p.ID, p.Date, p.Intro, string(raw), nullID(p.FeedImageID)); err != nil {
			return err
		}

		for _, table := range []string{"blog_page_tags", "blog_page_authors", "blog_page_related_links", "blog_page_gallery_images"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE page_id = ?`, p.ID); err != nil {
				return err
			}
		}
		for _, t := range p.Tags {
			if _, err := tx.Exec(`INSERT INTO blog_page_tags (page_id, tag) VALUES (?, ?)`, p.ID, t); err != nil {
				return err
			}
		}
		for i, a := range p.Authors {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO blog_page_authors (page_id, author_id, sort_order) VALUES (?, ?, ?)`, p.ID, a.ID, i); err != nil {
				return err
			}
		}
		for i := range p.RelatedLinks {
			l := &p.RelatedLinks[i]
			res, err := tx.Exec(`INSERT INTO blog_page_related_links (page_id, sort_order, name, url) VALUES (?, ?, ?, ?)`, p.ID, i, l.Name, l.URL)
			if err != nil {
				return err
			}
			l.ID, _ = res.LastInsertId()
		}
		for i := range p.GalleryImages {
			g := &p.GalleryImages[i]
			res, err := tx.Exec(`INSERT INTO blog_page_gallery_images (page_id, sort_order, image_id, caption) VALUES (?, ?, ?, ?)`, p.ID, i, g.ImageID, g.Caption)
			if err != nil {
				return err
			}
			g.ID, _ = res.LastInsertId()
		}
		return nil
	})
}

func rowExists(q querier, table string, id int64) bool {
	var one int
	return q.QueryRow(`SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one) == nil
}

// save runs the tree checks for p and writes the pages row, then the
// type's own rows, in one transaction. cleanErr is the result of the type's
// field validation; its ValidationErrors are reported together with the
// tree errors.
func (s *Store) save(p *Page, cleanErr error, saveSpecific func(tx *sql.Tx) error) error {
	var f fieldErrors
	if err := f.merge("", cleanErr); err != nil {
		return err
	}
	model, ok := Model(p.Type)
	if !ok {
		return fmt.Errorf("pagecms: unknown page type %q", p.Type)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Restore p unless the transaction commits, so a rejected new page
	// can be fixed and saved again.
	orig := *p
	committed := false
	defer func() {
		if !committed {
			*p = orig
		}
	}()

	oldPath, parentPath, err := checkTree(tx, p, model, &f)
	if err != nil {
		return err
	}
	if err := f.err(); err != nil {
		return err
	}

	newPath := "/"
	if p.ParentID != 0 {
		newPath = parentPath + p.Slug + "/"
	}

	if p.ID == 0 {
		now := time.Now().UTC().Truncate(time.Second)
		if p.Live && p.GoLiveAt != nil && p.GoLiveAt.After(now) {
			// Scheduled: RunSchedule publishes it at GoLiveAt.
			p.Live = false
		}
		if p.Live {
			if p.FirstPublishedAt == nil {
				p.FirstPublishedAt = &now
			}
			p.LastPublishedAt = &now
		}
		res, err := tx.Exec(`INSERT INTO pages (parent_id, page_type, title, slug, url_path, live, sort_order,
			seo_title, search_description, show_in_menus, first_published_at, last_published_at, go_live_at, expire_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullID(p.ParentID), string(p.Type), p.Title, p.Slug, newPath, boolInt(p.Live), p.SortOrder,
			p.SeoTitle, p.SearchDescription, boolInt(p.ShowInMenus),
			formatTime(p.FirstPublishedAt), formatTime(p.LastPublishedAt), formatTime(p.GoLiveAt), formatTime(p.ExpireAt))
		if err != nil {
			return err
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else {
		// Live state and publication times change only through
		// PublishPage and UnpublishPage.
		if _, err := tx.Exec(`UPDATE pages SET parent_id = ?, title = ?, slug = ?, sort_order = ?,
			seo_title = ?, search_description = ?, show_in_menus = ?, go_live_at = ?, expire_at = ?
			WHERE id = ?`,
			nullID(p.ParentID), p.Title, p.Slug, p.SortOrder, p.SeoTitle, p.SearchDescription,
			boolInt(p.ShowInMenus), formatTime(p.GoLiveAt), formatTime(p.ExpireAt), p.ID); err != nil {
			return err
		}
		if oldPath != newPath {
			if err := movePaths(tx, oldPath, newPath); err != nil {
				return err
			}
		}
	}
	p.URLPath = newPath
	if _, err := tx.Exec(`DELETE FROM redirects WHERE old_path = ?`, newPath); err != nil {
		return err
	}

	if err := saveSpecific(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// checkTree validates p's position in the tree. It returns p's current URL
// path (empty for new pages) and the parent's URL path.
func checkTree(tx *sql.Tx, p *Page, model *PageModel, f *fieldErrors) (oldPath, parentPath string, err error) {
	if p.ID != 0 {
		var typ string
		err := tx.QueryRow(`SELECT url_path, page_type FROM pages WHERE id = ?`, p.ID).Scan(&oldPath, &typ)
		if err != nil {
			return "", "", err
		}
		if PageType(typ) != p.Type {
			f.add("type", "The page type cannot be changed.")
		}
	}

	if p.ParentID == 0 {
		if !model.AllowsParent("") {
			f.add("parent_id", model.Label+" pages cannot be created at the site root.")
		}
		var other int64
		err := tx.QueryRow(`SELECT id FROM pages WHERE parent_id IS NULL AND id != ?`, p.ID).Scan(&other)
		if err == nil {
			f.add("parent_id", "A site root already exists.")
		} else if err != sql.ErrNoRows {
			return "", "", err
		}
		return oldPath, "", nil
	}

	var parentType string
	err = tx.QueryRow(`SELECT url_path, page_type FROM pages WHERE id = ?`, p.ParentID).Scan(&parentPath, &parentType)
	if err == sql.ErrNoRows {
		f.add("parent_id", "Select a valid parent page.")
		return oldPath, "", nil
	}
	if err != nil {
		return "", "", err
	}
	if !model.AllowsParent(PageType(parentType)) {
		f.add("parent_id", fmt.Sprintf("%s pages cannot be created under %s pages.", model.Label, parentType))
	} else if pm, ok := Model(PageType(parentType)); ok && !pm.AllowsSubpage(p.Type) {
		f.add("parent_id", fmt.Sprintf("%s pages do not allow %s subpages.", pm.Label, model.Label))
	}
	if oldPath != "" && strings.HasPrefix(parentPath, oldPath) {
		f.add("parent_id", "A page cannot be moved below itself.")
	}

	var dup int
	err = tx.QueryRow(`SELECT 1 FROM pages WHERE parent_id = ? AND slug = ? AND id != ?`, p.ParentID, p.Slug, p.ID).Scan(&dup)
	if err == nil {
		f.add("slug", fmt.Sprintf("The slug '%s' is already in use within the parent page.", p.Slug))
	} else if err != sql.ErrNoRows {
		return "", "", err
	}
	return oldPath, parentPath, nil
}

// movePaths rewrites the URL paths of the subtree rooted at oldPath and
// records a redirect from every old path.
func movePaths(tx *sql.Tx, oldPath, newPath string) error {
	rows, err := tx.Query(`SELECT id, url_path FROM pages WHERE substr(url_path, 1, length(?)) = ? ORDER BY length(url_path)`, oldPath, oldPath)
	if err != nil {
		return err
	}
	type move struct {
		id   int64
		path string
	}
	var moves []move
	for rows.Next() {
		var m move
		if err := rows.Scan(&m.id, &m.path); err != nil {
			rows.Close()
			return err
		}
		moves = append(moves, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range moves {
		moved := newPath + strings.TrimPrefix(m.path, oldPath)
		if _, err := tx.Exec(`UPDATE pages SET url_path = ? WHERE id = ?`, moved, m.id); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO redirects (old_path, page_id) VALUES (?, ?)`, m.path, m.id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM redirects WHERE old_path = ?`, moved); err != nil {
			return err
		}
	}
	return nil
}

// PublishPage makes the page live. The first publication time is kept when
// already set, and a pending schedule is cleared.
func (s *Store) PublishPage(id int64, now time.Time) error {
	ts := formatTime(&now)
	res, err := s.db.Exec(`UPDATE pages SET live = 1,
		first_published_at = COALESCE(first_published_at, ?),
		last_published_at = ?,
		go_live_at = NULL,
		expire_at = CASE WHEN expire_at IS NOT NULL AND expire_at <= ? THEN NULL ELSE expire_at END
		WHERE id = ?`, ts, ts, ts, id)
	return checkAffected(res, err)
}

// UnpublishPage takes the page offline. Descendants keep their own state.
func (s *Store) UnpublishPage(id int64) error {
	res, err := s.db.Exec(`UPDATE pages SET live = 0 WHERE id = ?`, id)
	return checkAffected(res, err)
}

// DeletePage removes the page and its whole subtree.
func (s *Store) DeletePage(id int64) error {
	res, err := s.db.Exec(`DELETE FROM pages WHERE id IN (
		WITH RECURSIVE subtree(id) AS (
			SELECT ?
			UNION ALL
			SELECT p.id FROM pages p JOIN subtree ON p.parent_id = subtree.id
		)
		SELECT id FROM subtree
	)`, id)
	return checkAffected(res, err)
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRedirect returns the id of the page that used to live at path.
func (s *Store) GetRedirect(path string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT page_id FROM redirects WHERE old_path = ?`, path).Scan(&id)
	return id, err
}

// SaveAuthor validates and creates or updates a.
func (s *Store) SaveAuthor(a *Author) error {
	if err := CleanAuthor(a); err != nil {
		return err
	}
	if a.ImageID != 0 && !rowExists(s.db, "images", a.ImageID) {
		return ValidationErrors{{Path: "author_image", Message: "Select a valid image."}}
	}
	if a.ID == 0 {
		res, err := s.db.Exec(`INSERT INTO authors (name, image_id) VALUES (?, ?)`, a.Name, nullID(a.ImageID))
		if err != nil {
			return err
		}
		a.ID, err = res.LastInsertId()
		return err
	}
	res, err := s.db.Exec(`UPDATE authors SET name = ?, image_id = ? WHERE id = ?`, a.Name, nullID(a.ImageID), a.ID)
	return checkAffected(res, err)
}

// GetAuthor returns the author with the given id.
func (s *Store) GetAuthor(id int64) (Author, error) {
	var a Author
	err := s.db.QueryRow(`SELECT id, name, COALESCE(image_id, 0) FROM authors WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.ImageID)
	return a, err
}

// ListAuthors returns every author ordered by name.
func (s *Store) ListAuthors() ([]Author, error) {
	rows, err := s.db.Query(`SELECT id, name, COALESCE(image_id, 0) FROM authors ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var authors []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name, &a.ImageID); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// DeleteAuthor removes an author and detaches it from every page.
func (s *Store) DeleteAuthor(id int64) error {
	res, err := s.db.Exec(`DELETE FROM authors WHERE id = ?`, id)
	return checkAffected(res, err)
}

// SaveImage records the metadata of an uploaded image and sets its id.
func (s *Store) SaveImage(img *Image) error {
	res, err := s.db.Exec(`INSERT INTO images (title, filename, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.Title, img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	if err != nil {
		return err
	}
	img.ID, err = res.LastInsertId()
	return err
}

const imageColumns = `id, title, filename, original_name, width, height, size, uploaded_at`

func scanImage(sc scanner) (Image, error) {
	var img Image
	err := sc.Scan(&img.ID, &img.Title, &img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt)
	return img, err
}

// GetImage returns the image with the given id.
func (s *Store) GetImage(id int64) (Image, error) {
	return scanImage(s.db.QueryRow(`SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
}

// ImageFilenameExists reports whether an image is stored under filename.
func (s *Store) ImageFilenameExists(filename string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM images WHERE filename = ?`, filename).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListImages returns every image, newest first.
func (s *Store) ListImages() ([]Image, error) {
	rows, err := s.db.Query(`SELECT ` + imageColumns + ` FROM images ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteImage removes the image metadata. Gallery entries using it are
// removed; feed and author images are cleared.
func (s *Store) DeleteImage(id int64) error {
	res, err := s.db.Exec(`DELETE FROM images WHERE id = ?`, id)
	return checkAffected(res, err)
}
