package pagecms

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eringen/pagecms/views"
)

func TestInitWithTemplateReload(t *testing.T) {
	dir := t.TempDir()
	tdir := filepath.Join(dir, "templates")
	if err := os.CopyFS(tdir, views.DefaultFS()); err != nil {
		t.Fatalf("copy templates: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	a := New(SiteConfig{
		URL:             "https://example.com",
		DatabasePath:    filepath.Join(dir, "blog.db"),
		AdminPassword:   "secret",
		SessionSecret:   "0123456789abcdef0123456789abcdef",
		TemplatesDir:    tdir,
		TemplatesReload: true,
	}, WithStaticDir(dir), WithLogger(log))
	t.Cleanup(func() { a.Close() })

	done := make(chan error, 1)
	go func() { done <- a.Init() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Init: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Init should return with template reload enabled")
	}

	seedSite(t, a)
	if rec := get(a, "/first-post/"); !strings.Contains(rec.Body.String(), `<article class="blog-page">`) {
		t.Fatalf("initial render = %d %q", rec.Code, rec.Body.String())
	}

	page := filepath.Join(tdir, "blog", "blog_page.html")
	if err := os.WriteFile(page, []byte(`reloaded {{ .Page.Title }}`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	var body string
	for time.Now().Before(deadline) {
		body = get(a, "/first-post/").Body.String()
		if body == "reloaded Post first-post" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("template change not picked up, body = %q", body)
}
