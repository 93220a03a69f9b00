package views

import (
	"context"
	"errors"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sirupsen/logrus"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"partials/layout.html": {Data: []byte(`{{ define "wrap" }}<main>{{ . }}</main>{{ end }}`)},
		"page.html":            {Data: []byte(`{{ template "wrap" .Title }}`)},
		"page_amp.html":        {Data: []byte(`<html amp>{{ template "wrap" .Title }}</html>`)},
		"blocks/quote.html":    {Data: []byte(`<q>{{ shout . }}</q>`)},
		"notes.txt":            {Data: []byte(`ignored`)},
	}
}

func testFuncs() template.FuncMap {
	return template.FuncMap{"shout": strings.ToUpper}
}

func TestSetLookup(t *testing.T) {
	s, err := NewSet(testFS(), testFuncs())
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	for _, name := range []string{"page.html", "page_amp.html", "blocks/quote.html"} {
		if !s.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
	}
	for _, name := range []string{"partials/layout.html", "notes.txt", "missing.html"} {
		if s.Has(name) {
			t.Errorf("Has(%q) = true", name)
		}
	}
	if len(s.Names()) != 3 {
		t.Errorf("Names() = %v", s.Names())
	}

	_, err = s.Lookup("missing.html")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Lookup(missing) err = %v, want ErrTemplateNotFound", err)
	}
}

func TestSetRender(t *testing.T) {
	s, err := NewSet(testFS(), testFuncs())
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	ctx := context.Background()

	out, err := s.Render(ctx, "page.html", map[string]string{"Title": "<Hi>"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if string(out) != "<main>&lt;Hi&gt;</main>" {
		t.Errorf("page.html = %q", out)
	}

	out, err = s.Render(ctx, "blocks/quote.html", "hey")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if string(out) != "<q>HEY</q>" {
		t.Errorf("quote = %q", out)
	}

	if _, err := s.Render(ctx, "nope.html", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Render(nope) err = %v", err)
	}
}

func TestSetReloadKeepsOldOnError(t *testing.T) {
	fsys := testFS()
	s, err := NewSet(fsys, testFuncs())
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}

	fsys["extra.html"] = &fstest.MapFile{Data: []byte(`extra`)}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !s.Has("extra.html") {
		t.Error("Reload should pick up new templates")
	}

	fsys["broken.html"] = &fstest.MapFile{Data: []byte(`{{ if }}`)}
	if err := s.Reload(); err == nil {
		t.Fatal("Reload should fail on a broken template")
	}
	if !s.Has("extra.html") {
		t.Error("failed reload should keep the previous templates")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestSetWatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.html"), []byte(`v1`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := NewSet(os.DirFS(dir), nil)
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, dir, log) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watch should return once the watcher is running")
	}

	if err := os.WriteFile(filepath.Join(dir, "page.html"), []byte(`v2`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "added.html"), []byte(`added`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok := waitFor(t, func() bool {
		out, err := s.Render(context.Background(), "page.html", nil)
		return err == nil && out == "v2" && s.Has("added.html")
	})
	if !ok {
		t.Error("changes under the watched directory should reload the set")
	}
}

func TestSetWatchMissingDir(t *testing.T) {
	s, err := NewSet(testFS(), testFuncs())
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	missing := filepath.Join(t.TempDir(), "nope")
	if err := s.Watch(context.Background(), missing, logrus.New()); err == nil {
		t.Error("Watch should fail for a missing directory")
	}
}

func TestDefaultTemplatesParse(t *testing.T) {
	s, err := NewSet(DefaultFS(), nil)
	if err != nil {
		t.Fatalf("NewSet(DefaultFS) failed: %v", err)
	}
	for _, name := range []string{
		"blog/blog_index_page.html",
		"blog/blog_page.html",
		"blog/blog_page_amp.html",
		"blog/blog_tag_index_page.html",
		"blog/blocks/person.html",
		"blog/blocks/person_amp.html",
		"404.html",
		"500.html",
	} {
		if !s.Has(name) {
			t.Errorf("default templates missing %s", name)
		}
	}
}

func TestFilterRelatedPosts(t *testing.T) {
	current := Post{URL: "/blog/a/", Tags: []string{"Go", " web "}}
	posts := []Post{
		current,
		{URL: "/blog/b/", Tags: []string{"go"}},
		{URL: "/blog/c/", Tags: []string{"rust"}},
		{URL: "/blog/d/", Tags: []string{"WEB"}},
	}
	got := FilterRelatedPosts(current, posts)
	if len(got) != 2 || got[0].URL != "/blog/b/" || got[1].URL != "/blog/d/" {
		t.Errorf("FilterRelatedPosts = %+v", got)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"blog", "post"}, "https://example.com/blog/post/"},
		{"https://example.com/root/", []string{"a"}, "https://example.com/root/a/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "Site", Author: "Fallback"}
	post := Post{Title: "T", URL: "https://x/blog/t/", Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}

	got := string(BlogPostingJsonLD(cfg, post))
	if !strings.Contains(got, `"datePublished":"2024-03-04"`) || !strings.Contains(got, `"name":"Fallback"`) {
		t.Errorf("JSON-LD = %s", got)
	}

	post.Authors = []string{"Ada"}
	post.Title = "</script>"
	got = string(BlogPostingJsonLD(cfg, post))
	if !strings.Contains(got, `"name":"Ada"`) || strings.Contains(got, "</script>") {
		t.Errorf("JSON-LD = %s", got)
	}
}
