package pagecms

import (
	"strings"
	"testing"
)

const testSite = `
authors:
  - Ada
  - Grace
pages:
  - type: blog.BlogIndexPage
    title: Home
    slug: home
    live: true
    intro: Welcome.
    children:
      - type: blog.BlogTagIndexPage
        title: Tags
        live: true
      - type: blog.BlogPage
        title: Hello, world
        live: true
        date: "2024-01-15"
        intro: The first post.
        tags: [Go, amp]
        authors: [Grace, Ada]
        related_links:
          - name: Go
            url: https://go.dev/
        body:
          - type: common_content
            value:
              - type: heading
                value: Hello
              - type: paragraph
                value: First paragraph.
          - type: person
            value:
              first_name: Ada
              surname: Lovelace
              biography: Wrote the first program.
`

func TestImport(t *testing.T) {
	s := setupTestStore(t)

	res, err := s.Import(strings.NewReader(testSite))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Authors != 2 || res.Pages != 3 {
		t.Errorf("result = %+v, want 2 authors and 3 pages", res)
	}

	p, err := s.GetPageByPath("/hello-world/")
	if err != nil {
		t.Fatalf("GetPageByPath: %v", err)
	}
	bp, err := s.GetBlogPage(p.ID)
	if err != nil {
		t.Fatalf("GetBlogPage: %v", err)
	}
	if !bp.Live {
		t.Error("imported page should be live")
	}
	if strings.Join(bp.Tags, ",") != "amp,go" {
		t.Errorf("tags = %v", bp.Tags)
	}
	if len(bp.Authors) != 2 || bp.Authors[0].Name != "Grace" {
		t.Errorf("authors should keep import order: %+v", bp.Authors)
	}
	if len(bp.Body) != 2 || bp.Body[1].Type != "person" {
		t.Errorf("body = %+v", bp.Body)
	}
	if len(bp.RelatedLinks) != 1 || bp.RelatedLinks[0].URL != "https://go.dev/" {
		t.Errorf("related links = %+v", bp.RelatedLinks)
	}

	if _, err := s.GetPageByPath("/tags/"); err != nil {
		t.Errorf("tag index should be imported: %v", err)
	}
}

func TestImportReusesAuthors(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SaveAuthor(&Author{Name: "Ada"}); err != nil {
		t.Fatalf("SaveAuthor: %v", err)
	}
	res, err := s.Import(strings.NewReader("authors: [Ada, Linus]\n"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Authors != 1 {
		t.Errorf("created %d authors, want 1", res.Authors)
	}
	authors, _ := s.ListAuthors()
	if len(authors) != 2 {
		t.Errorf("authors = %+v", authors)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "pages:\n  - type: blog.BlogIndexPage\n    colour: red\n", "parse site file"},
		{"unknown type", "pages:\n  - type: blog.Unknown\n    title: X\n", "unknown page type"},
		{"unknown author", "pages:\n  - type: blog.BlogIndexPage\n    title: Home\n    children:\n      - type: blog.BlogPage\n        title: P\n        date: \"2024-01-01\"\n        intro: I\n        authors: [Nobody]\n", "unknown author"},
		{"short body", "pages:\n  - type: blog.BlogIndexPage\n    title: Home\n    children:\n      - type: blog.BlogPage\n        title: P\n        date: \"2024-01-01\"\n        intro: I\n", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			_, err := s.Import(strings.NewReader(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
