package pagecms

import (
	"strings"
	"testing"
	"time"

	"github.com/eringen/pagecms/blocks"
)

func TestSaveBlogPageBodyLength(t *testing.T) {
	s := setupTestStore(t)
	root, _ := seedTree(t, s)

	tests := []struct {
		blocks int
		ok     bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{5, true},
		{7, true},
		{8, false},
	}
	for _, tt := range tests {
		p := newTestPost(root.ID, "")
		p.Title = "Body " + strings.Repeat("x", tt.blocks+1)
		p.Body = testBody(tt.blocks)
		err := s.SaveBlogPage(p)
		if tt.ok {
			if err != nil {
				t.Errorf("%d blocks: unexpected error %v", tt.blocks, err)
			}
			continue
		}
		if !containsPath(validationPaths(t, err), "body") {
			t.Errorf("%d blocks: expected a body error, got %v", tt.blocks, err)
		}
		if p.ID != 0 {
			t.Errorf("%d blocks: rejected page was saved", tt.blocks)
		}
	}
}

func TestCleanBlogPageFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *BlogPage)
		path   string
	}{
		{"missing title", func(p *BlogPage) { p.Title = " "; p.Slug = "x" }, "title"},
		{"bad slug", func(p *BlogPage) { p.Slug = "no spaces" }, "slug"},
		{"missing date", func(p *BlogPage) { p.Date = "" }, "date"},
		{"bad date", func(p *BlogPage) { p.Date = "15/01/2024" }, "date"},
		{"missing intro", func(p *BlogPage) { p.Intro = "" }, "intro"},
		{"long intro", func(p *BlogPage) { p.Intro = strings.Repeat("a", maxIntroLength+1) }, "intro"},
		{"bad link", func(p *BlogPage) { p.RelatedLinks = []RelatedLink{{Name: "x", URL: "ftp://example.com"}} }, "related_links.0.url"},
		{"unnamed link", func(p *BlogPage) { p.RelatedLinks = []RelatedLink{{URL: "https://example.com"}} }, "related_links.0.name"},
		{"gallery without image", func(p *BlogPage) { p.GalleryImages = []GalleryImage{{Caption: "x"}} }, "gallery_images.0.image"},
		{"unknown block", func(p *BlogPage) { p.Body[0] = blocks.StreamChild{Type: "poll"} }, "body.0"},
		{"too many headings", func(p *BlogPage) {
			p.Body[0] = blocks.StreamChild{Type: "common_content", Value: []any{
				map[string]any{"type": "heading", "value": "1"},
				map[string]any{"type": "heading", "value": "2"},
				map[string]any{"type": "heading", "value": "3"},
				map[string]any{"type": "heading", "value": "4"},
			}}
		}, "body.0"},
		{"expiry before go live", func(p *BlogPage) {
			early, late := mustTime(t, "2024-01-01T00:00:00Z"), mustTime(t, "2024-02-01T00:00:00Z")
			p.GoLiveAt, p.ExpireAt = &late, &early
		}, "expire_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPost(1, "valid")
			tt.mutate(p)
			if !containsPath(validationPaths(t, CleanBlogPage(p)), tt.path) {
				t.Errorf("expected error on %s", tt.path)
			}
		})
	}
}

func TestCleanBlogPageNormalizes(t *testing.T) {
	p := newTestPost(1, "")
	p.Title = "  Ünïcode & Friends  "
	p.Tags = []string{"Go", " go", "", "AMP"}
	if err := CleanBlogPage(p); err != nil {
		t.Fatalf("CleanBlogPage: %v", err)
	}
	if p.Title != "Ünïcode & Friends" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Slug == "" || strings.ContainsAny(p.Slug, " &") {
		t.Errorf("slug = %q", p.Slug)
	}
	if strings.Join(p.Tags, ",") != "go,amp" {
		t.Errorf("tags = %v", p.Tags)
	}
	for _, c := range p.Body {
		if c.ID == "" || c.Block() == nil {
			t.Errorf("cleaned child missing id or definition: %+v", c)
		}
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}
