package pagecms

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/pagecms/blocks"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test_blog.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func section(heading string) blocks.StreamChild {
	return blocks.StreamChild{Type: "common_content", Value: []any{
		map[string]any{"type": "heading", "value": heading},
		map[string]any{"type": "paragraph", "value": "Some *text*."},
	}}
}

func testBody(n int) blocks.StreamValue {
	body := make(blocks.StreamValue, n)
	for i := range body {
		body[i] = section("Section")
	}
	return body
}

// seedTree creates a live root index with one tag index below it.
func seedTree(t *testing.T, s *Store) (root *BlogIndexPage, tags *BlogTagIndexPage) {
	t.Helper()
	root = &BlogIndexPage{Page: Page{Title: "Home", Slug: "home", Live: true}, Intro: "Welcome"}
	if err := s.SaveBlogIndexPage(root); err != nil {
		t.Fatalf("save root: %v", err)
	}
	tags = &BlogTagIndexPage{Page: Page{ParentID: root.ID, Title: "Tags", Live: true}}
	if err := s.SaveBlogTagIndexPage(tags); err != nil {
		t.Fatalf("save tag index: %v", err)
	}
	return root, tags
}

func newTestPost(parentID int64, slug string, tags ...string) *BlogPage {
	return &BlogPage{
		Page:  Page{ParentID: parentID, Title: "Post " + slug, Slug: slug, Live: true},
		Date:  "2024-01-15",
		Intro: "Intro of " + slug,
		Body:  testBody(2),
		Tags:  tags,
	}
}

func validationPaths(t *testing.T, err error) []string {
	t.Helper()
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	paths := make([]string, len(ve))
	for i, e := range ve {
		paths[i] = e.Path
	}
	return paths
}

func containsPath(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	pages, err := s.ListPages()
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected empty store, got %d pages", len(pages))
	}
}

func TestSaveAndGetBlogPage(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	author := Author{Name: "Ada"}
	if err := s.SaveAuthor(&author); err != nil {
		t.Fatalf("SaveAuthor: %v", err)
	}
	img := Image{Title: "Cat", Filename: "cat.webp", OriginalName: "cat.png", Width: 800, Height: 600, UploadedAt: "2024-01-15 10:00:00"}
	if err := s.SaveImage(&img); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	post := newTestPost(root.ID, "first-post", " Go ", "go", "Web")
	post.Authors = []Author{{ID: author.ID}}
	post.GalleryImages = []GalleryImage{{ImageID: img.ID, Caption: "A cat"}}
	post.RelatedLinks = []RelatedLink{{Name: "Docs", URL: "https://go.dev/doc/"}}
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	if post.URLPath != "/first-post/" {
		t.Errorf("URLPath = %q, want /first-post/", post.URLPath)
	}
	if post.FirstPublishedAt == nil {
		t.Error("live page should get a first publication time")
	}

	got, err := s.GetBlogPage(post.ID)
	if err != nil {
		t.Fatalf("GetBlogPage: %v", err)
	}
	if got.Title != "Post first-post" || got.Intro != "Intro of first-post" || got.Date != "2024-01-15" {
		t.Errorf("unexpected page fields: %+v", got.Page)
	}
	if strings.Join(got.Tags, ",") != "go,web" {
		t.Errorf("tags = %v, want [go web]", got.Tags)
	}
	if len(got.Authors) != 1 || got.Authors[0].Name != "Ada" {
		t.Errorf("authors = %+v", got.Authors)
	}
	if got.MainImage() == nil || got.MainImage().Caption != "A cat" {
		t.Errorf("gallery = %+v", got.GalleryImages)
	}
	if len(got.RelatedLinks) != 1 || got.RelatedLinks[0].URL != "https://go.dev/doc/" {
		t.Errorf("related links = %+v", got.RelatedLinks)
	}
	if len(got.Body) != 2 || got.Body[0].Block() == nil {
		t.Fatalf("body should round-trip with definitions attached: %+v", got.Body)
	}
	if got.Body[0].ID == "" {
		t.Error("stream children should keep their ids")
	}

	sp, err := s.GetSpecific(&got.Page)
	if err != nil {
		t.Fatalf("GetSpecific: %v", err)
	}
	if _, ok := sp.(*BlogPage); !ok {
		t.Errorf("GetSpecific returned %T", sp)
	}
}

func TestGetBlogPageNotFound(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.GetBlogPage(42); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetPageByPath("/missing/"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for path, got %v", err)
	}
}

func TestSlugDerivedFromTitle(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	post := newTestPost(root.ID, "")
	post.Title = "Hello, World Again"
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	if post.Slug != "hello-world-again" {
		t.Errorf("slug = %q", post.Slug)
	}
}

func TestTreeRules(t *testing.T) {
	s := setupTestStore(t)
	root, tags := seedTree(t, s)

	tests := []struct {
		name string
		page Specific
		path string
	}{
		{
			name: "second root",
			page: &BlogIndexPage{Page: Page{Title: "Other", Slug: "other"}},
			path: "parent_id",
		},
		{
			name: "blog page at root",
			page: newTestPost(0, "orphan"),
			path: "parent_id",
		},
		{
			name: "blog page under tag index",
			page: newTestPost(tags.ID, "misplaced"),
			path: "parent_id",
		},
		{
			name: "missing parent",
			page: newTestPost(999, "lost"),
			path: "parent_id",
		},
		{
			name: "duplicate sibling slug",
			page: &BlogTagIndexPage{Page: Page{ParentID: root.ID, Title: "Tags again", Slug: tags.Slug}},
			path: "slug",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SaveSpecific(tt.page)
			if !containsPath(validationPaths(t, err), tt.path) {
				t.Errorf("expected error on %s, got %v", tt.path, err)
			}
			if tt.page.Base().ID != 0 {
				t.Error("rejected page should not be saved")
			}
		})
	}

	post := newTestPost(root.ID, "leaf")
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	child := &BlogIndexPage{Page: Page{ParentID: post.ID, Title: "Below leaf"}}
	if !containsPath(validationPaths(t, s.SaveBlogIndexPage(child)), "parent_id") {
		t.Error("blog pages should not accept subpages")
	}
}

func TestMoveBelowItselfRejected(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	section := &BlogIndexPage{Page: Page{ParentID: root.ID, Title: "Section"}}
	if err := s.SaveBlogIndexPage(section); err != nil {
		t.Fatalf("save section: %v", err)
	}
	sub := &BlogIndexPage{Page: Page{ParentID: section.ID, Title: "Sub"}}
	if err := s.SaveBlogIndexPage(sub); err != nil {
		t.Fatalf("save sub: %v", err)
	}
	section.ParentID = sub.ID
	if !containsPath(validationPaths(t, s.SaveBlogIndexPage(section)), "parent_id") {
		t.Error("moving a page below itself should fail")
	}
}

func TestSlugChangeRewritesSubtreeAndRecordsRedirects(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	blog := &BlogIndexPage{Page: Page{ParentID: root.ID, Title: "Blog", Live: true}}
	if err := s.SaveBlogIndexPage(blog); err != nil {
		t.Fatalf("save blog: %v", err)
	}
	post := newTestPost(blog.ID, "my-post")
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("save post: %v", err)
	}
	if post.URLPath != "/blog/my-post/" {
		t.Fatalf("URLPath = %q", post.URLPath)
	}

	blog.Slug = "journal"
	if err := s.SaveBlogIndexPage(blog); err != nil {
		t.Fatalf("rename blog: %v", err)
	}
	moved, err := s.GetPage(post.ID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if moved.URLPath != "/journal/my-post/" {
		t.Errorf("descendant path = %q, want /journal/my-post/", moved.URLPath)
	}
	for old, want := range map[string]int64{"/blog/": blog.ID, "/blog/my-post/": post.ID} {
		id, err := s.GetRedirect(old)
		if err != nil || id != want {
			t.Errorf("redirect %s = %d, %v; want %d", old, id, err, want)
		}
	}

	// Renaming back frees the old path again.
	blog.Slug = "blog"
	if err := s.SaveBlogIndexPage(blog); err != nil {
		t.Fatalf("rename back: %v", err)
	}
	if _, err := s.GetRedirect("/blog/"); err != ErrNotFound {
		t.Errorf("redirect for a live path should be removed, got %v", err)
	}
	if id, err := s.GetRedirect("/journal/my-post/"); err != nil || id != post.ID {
		t.Errorf("redirect /journal/my-post/ = %d, %v", id, err)
	}
}

func TestSaveKeepsLiveState(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	post := newTestPost(root.ID, "draft")
	post.Live = false
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	post.Live = true
	post.Title = "Edited"
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetPage(post.ID)
	if got.Live {
		t.Error("updating a page should not publish it")
	}
	if got.Title != "Edited" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestPublishAndUnpublish(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	post := newTestPost(root.ID, "later")
	post.Live = false
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.PublishPage(post.ID, first); err != nil {
		t.Fatalf("PublishPage: %v", err)
	}
	if err := s.UnpublishPage(post.ID); err != nil {
		t.Fatalf("UnpublishPage: %v", err)
	}
	got, _ := s.GetPage(post.ID)
	if got.Live {
		t.Error("page should be offline")
	}

	second := first.Add(48 * time.Hour)
	if err := s.PublishPage(post.ID, second); err != nil {
		t.Fatalf("PublishPage again: %v", err)
	}
	got, _ = s.GetPage(post.ID)
	if !got.Live {
		t.Fatal("page should be live")
	}
	if got.FirstPublishedAt == nil || !got.FirstPublishedAt.Equal(first) {
		t.Errorf("first published = %v, want %v", got.FirstPublishedAt, first)
	}
	if got.LastPublishedAt == nil || !got.LastPublishedAt.Equal(second) {
		t.Errorf("last published = %v, want %v", got.LastPublishedAt, second)
	}

	if err := s.PublishPage(999, second); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListBlogPages(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, slug := range []string{"old", "mid", "new"} {
		p := newTestPost(root.ID, slug, "go")
		p.Live = false
		if slug == "mid" {
			p.Tags = []string{"web"}
		}
		if err := s.SaveBlogPage(p); err != nil {
			t.Fatalf("save %s: %v", slug, err)
		}
		if err := s.PublishPage(p.ID, now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("publish %s: %v", slug, err)
		}
	}
	draft := newTestPost(root.ID, "draft", "go")
	draft.Live = false
	if err := s.SaveBlogPage(draft); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	slugs := func(pages []*BlogPage) string {
		var out []string
		for _, p := range pages {
			out = append(out, p.Slug)
		}
		return strings.Join(out, ",")
	}

	all, err := s.ListBlogPages(BlogPageQuery{})
	if err != nil {
		t.Fatalf("ListBlogPages: %v", err)
	}
	if got := slugs(all); got != "new,mid,old,draft" {
		t.Errorf("all = %s", got)
	}

	live, _ := s.ListBlogPages(BlogPageQuery{LiveAt: now.Add(time.Hour * 24)})
	if got := slugs(live); got != "new,mid,old" {
		t.Errorf("live = %s", got)
	}

	tagged, _ := s.ListBlogPages(BlogPageQuery{Tag: " GO ", LiveAt: now.Add(time.Hour * 24)})
	if got := slugs(tagged); got != "new,old" {
		t.Errorf("tagged = %s", got)
	}

	limited, _ := s.ListBlogPages(BlogPageQuery{Limit: 1})
	if got := slugs(limited); got != "new" {
		t.Errorf("limited = %s", got)
	}

	tags, err := s.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if strings.Join(tags, ",") != "go,web" {
		t.Errorf("tags = %v", tags)
	}
}

func TestScheduledAndExpiredPages(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	longAgo := now.Add(-48 * time.Hour)

	due := newTestPost(root.ID, "due")
	due.Live = false
	due.GoLiveAt = &past
	pending := newTestPost(root.ID, "pending")
	pending.Live = false
	pending.GoLiveAt = &future
	missed := newTestPost(root.ID, "missed")
	missed.Live = false
	missed.GoLiveAt = &longAgo
	missed.ExpireAt = &past
	expiring := newTestPost(root.ID, "expiring")
	expiring.ExpireAt = &past
	for _, p := range []*BlogPage{due, pending, missed, expiring} {
		if err := s.SaveBlogPage(p); err != nil {
			t.Fatalf("save %s: %v", p.Slug, err)
		}
	}

	scheduled, err := s.ScheduledPages(now)
	if err != nil {
		t.Fatalf("ScheduledPages: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0].ID != due.ID {
		t.Errorf("scheduled = %+v, want only %q", scheduled, due.Slug)
	}

	expired, err := s.ExpiredPages(now)
	if err != nil {
		t.Fatalf("ExpiredPages: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != expiring.ID {
		t.Errorf("expired = %+v, want only %q", expired, expiring.Slug)
	}

	got, _ := s.GetPage(expiring.ID)
	if got.Servable(now) {
		t.Error("expired page should not be servable")
	}
	if !got.Servable(longAgo) {
		t.Error("page should be servable before expiry")
	}
}

func TestPublishClearsSchedule(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	goLive := now.Add(-time.Minute)
	p := newTestPost(root.ID, "scheduled")
	p.Live = false
	p.GoLiveAt = &goLive
	if err := s.SaveBlogPage(p); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	if err := s.PublishPage(p.ID, now); err != nil {
		t.Fatalf("PublishPage: %v", err)
	}
	got, _ := s.GetPage(p.ID)
	if got.GoLiveAt != nil {
		t.Errorf("go live time should be cleared, got %v", got.GoLiveAt)
	}
	if pages, _ := s.ScheduledPages(now); len(pages) != 0 {
		t.Errorf("expected no scheduled pages, got %d", len(pages))
	}
}

func TestDeletePageRemovesSubtree(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	blog := &BlogIndexPage{Page: Page{ParentID: root.ID, Title: "Blog"}}
	if err := s.SaveBlogIndexPage(blog); err != nil {
		t.Fatalf("save blog: %v", err)
	}
	post := newTestPost(blog.ID, "child")
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("save post: %v", err)
	}

	if err := s.DeletePage(blog.ID); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if _, err := s.GetPage(post.ID); err != ErrNotFound {
		t.Errorf("child should be deleted, got %v", err)
	}
	if err := s.DeletePage(blog.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListChildren(t *testing.T) {
	s := setupTestStore(t)
	root, tags := seedTree(t, s)

	post := newTestPost(root.ID, "a-post")
	post.SortOrder = -1
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	children, err := s.ListChildren(root.ID)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 2 || children[0].ID != post.ID || children[1].ID != tags.ID {
		t.Errorf("children = %+v", children)
	}
	roots, _ := s.ListChildren(0)
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("roots = %+v", roots)
	}
}

func TestFirstLivePage(t *testing.T) {
	s := setupTestStore(t)
	_, tags := seedTree(t, s)

	got, err := s.FirstLivePage(TypeBlogTagIndexPage)
	if err != nil {
		t.Fatalf("FirstLivePage: %v", err)
	}
	if got.ID != tags.ID {
		t.Errorf("got page %d, want %d", got.ID, tags.ID)
	}
	if err := s.UnpublishPage(tags.ID); err != nil {
		t.Fatalf("UnpublishPage: %v", err)
	}
	if _, err := s.FirstLivePage(TypeBlogTagIndexPage); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBlogPageReferencesMustExist(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	post := newTestPost(root.ID, "refs")
	post.Authors = []Author{{ID: 77}}
	post.GalleryImages = []GalleryImage{{ImageID: 88}}
	paths := validationPaths(t, s.SaveBlogPage(post))
	for _, want := range []string{"authors.0", "gallery_images.0.image"} {
		if !containsPath(paths, want) {
			t.Errorf("missing error for %s in %v", want, paths)
		}
	}
}

func TestRejectedNewPageCanBeSavedAgain(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	post := newTestPost(root.ID, "retry")
	post.Authors = []Author{{ID: 999}}
	paths := validationPaths(t, s.SaveBlogPage(post))
	if !containsPath(paths, "authors.0") {
		t.Fatalf("paths = %v, want authors.0", paths)
	}
	if post.ID != 0 || post.URLPath != "" || post.FirstPublishedAt != nil || post.LastPublishedAt != nil {
		t.Fatalf("rejected save left state behind: %+v", post.Page)
	}

	post.Authors = nil
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if post.ID == 0 || post.URLPath != "/retry/" {
		t.Errorf("saved page = %+v", post.Page)
	}
	got, err := s.GetPage(post.ID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !got.Live || got.LastPublishedAt == nil {
		t.Errorf("page should be live after the second save: %+v", got)
	}
}

func TestNewPageWithFutureGoLiveIsScheduled(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	goLive := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	post := newTestPost(root.ID, "later")
	post.GoLiveAt = &goLive
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	got, err := s.GetPage(post.ID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got.Live || got.FirstPublishedAt != nil {
		t.Errorf("page with a future go live time should wait: live=%v first=%v", got.Live, got.FirstPublishedAt)
	}
	if got.Servable(time.Now()) {
		t.Error("scheduled page should not be servable yet")
	}

	if due, _ := s.ScheduledPages(time.Now()); len(due) != 0 {
		t.Errorf("page is not due yet, got %d", len(due))
	}
	due, err := s.ScheduledPages(goLive.Add(time.Minute))
	if err != nil {
		t.Fatalf("ScheduledPages: %v", err)
	}
	if len(due) != 1 || due[0].ID != post.ID {
		t.Errorf("due = %+v", due)
	}
}

func TestAuthors(t *testing.T) {
	s := setupTestStore(t)

	if err := s.SaveAuthor(&Author{Name: "  "}); err == nil {
		t.Error("blank author name should be rejected")
	}
	if err := s.SaveAuthor(&Author{Name: "Ghost", ImageID: 5}); err == nil {
		t.Error("missing author image should be rejected")
	}

	b := Author{Name: "Bob"}
	a := Author{Name: "Alice"}
	for _, au := range []*Author{&b, &a} {
		if err := s.SaveAuthor(au); err != nil {
			t.Fatalf("SaveAuthor: %v", err)
		}
	}
	b.Name = "Bobby"
	if err := s.SaveAuthor(&b); err != nil {
		t.Fatalf("update author: %v", err)
	}
	authors, err := s.ListAuthors()
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if len(authors) != 2 || authors[0].Name != "Alice" || authors[1].Name != "Bobby" {
		t.Errorf("authors = %+v", authors)
	}

	if err := s.DeleteAuthor(a.ID); err != nil {
		t.Fatalf("DeleteAuthor: %v", err)
	}
	if _, err := s.GetAuthor(a.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestImages(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	first := Image{Title: "One", Filename: "one.webp", UploadedAt: "2024-01-01 10:00:00"}
	second := Image{Title: "Two", Filename: "two.webp", UploadedAt: "2024-01-02 10:00:00"}
	for _, img := range []*Image{&first, &second} {
		if err := s.SaveImage(img); err != nil {
			t.Fatalf("SaveImage: %v", err)
		}
	}
	if first.URL() != "/public/uploads/one.webp" {
		t.Errorf("URL = %q", first.URL())
	}

	exists, err := s.ImageFilenameExists("one.webp")
	if err != nil || !exists {
		t.Errorf("ImageFilenameExists = %v, %v", exists, err)
	}
	exists, _ = s.ImageFilenameExists("nope.webp")
	if exists {
		t.Error("unknown filename should not exist")
	}

	images, _ := s.ListImages()
	if len(images) != 2 || images[0].ID != second.ID {
		t.Errorf("images should be newest first: %+v", images)
	}

	post := newTestPost(root.ID, "pictures")
	post.FeedImageID = first.ID
	post.GalleryImages = []GalleryImage{{ImageID: first.ID}, {ImageID: second.ID}}
	if err := s.SaveBlogPage(post); err != nil {
		t.Fatalf("SaveBlogPage: %v", err)
	}
	if err := s.DeleteImage(first.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	got, err := s.GetBlogPage(post.ID)
	if err != nil {
		t.Fatalf("GetBlogPage: %v", err)
	}
	if got.FeedImageID != 0 {
		t.Errorf("feed image should be cleared, got %d", got.FeedImageID)
	}
	if len(got.GalleryImages) != 1 || got.GalleryImages[0].ImageID != second.ID {
		t.Errorf("gallery = %+v", got.GalleryImages)
	}
}
