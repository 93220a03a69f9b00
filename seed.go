package pagecms

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eringen/pagecms/blocks"
)

// SiteFile is the YAML form of a site import: authors first, then the page
// tree from the root down.
type SiteFile struct {
	Authors []string   `yaml:"authors"`
	Pages   []PageSeed `yaml:"pages"`
}

// PageSeed is one page of an import. Fields that do not apply to Type are
// ignored.
type PageSeed struct {
	Type              PageType      `yaml:"type"`
	Title             string        `yaml:"title"`
	Slug              string        `yaml:"slug"`
	Live              bool          `yaml:"live"`
	SeoTitle          string        `yaml:"seo_title"`
	SearchDescription string        `yaml:"search_description"`
	ShowInMenus       bool          `yaml:"show_in_menus"`
	GoLiveAt          *time.Time    `yaml:"go_live_at"`
	ExpireAt          *time.Time    `yaml:"expire_at"`
	Intro             string        `yaml:"intro"`
	Date              string        `yaml:"date"`
	Tags              []string      `yaml:"tags"`
	Authors           []string      `yaml:"authors"`
	Body              []BlockSeed   `yaml:"body"`
	RelatedLinks      []RelatedLink `yaml:"related_links"`
	Children          []PageSeed    `yaml:"children"`
}

// BlockSeed is one stream child of a page body.
type BlockSeed struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// ImportResult counts what an import created.
type ImportResult struct {
	Authors int
	Pages   int
}

// ImportFile reads a YAML site description from path and imports it.
func (s *Store) ImportFile(path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()
	return s.Import(f)
}

// Import creates the authors and pages described by the YAML in r. Authors
// that already exist by name are reused. Import stops at the first page
// that fails validation; pages saved before it are kept.
func (s *Store) Import(r io.Reader) (ImportResult, error) {
	var site SiteFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&site); err != nil {
		return ImportResult{}, fmt.Errorf("pagecms: parse site file: %w", err)
	}

	var res ImportResult
	existing, err := s.ListAuthors()
	if err != nil {
		return res, err
	}
	authors := make(map[string]Author, len(existing))
	for _, a := range existing {
		authors[a.Name] = a
	}
	for _, name := range site.Authors {
		if _, ok := authors[name]; ok {
			continue
		}
		a := Author{Name: name}
		if err := s.SaveAuthor(&a); err != nil {
			return res, fmt.Errorf("pagecms: import author %q: %w", name, err)
		}
		authors[name] = a
		res.Authors++
	}

	for i := range site.Pages {
		if err := s.importPage(&site.Pages[i], 0, authors, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Store) importPage(ps *PageSeed, parentID int64, authors map[string]Author, res *ImportResult) error {
	sp, err := NewSpecific(ps.Type)
	if err != nil {
		return err
	}
	base := sp.Base()
	base.ParentID = parentID
	base.Title = ps.Title
	base.Slug = ps.Slug
	base.Live = ps.Live
	base.SeoTitle = ps.SeoTitle
	base.SearchDescription = ps.SearchDescription
	base.ShowInMenus = ps.ShowInMenus
	base.GoLiveAt = ps.GoLiveAt
	base.ExpireAt = ps.ExpireAt

	switch p := sp.(type) {
	case *BlogIndexPage:
		p.Intro = ps.Intro
	case *BlogPage:
		p.Date = ps.Date
		p.Intro = ps.Intro
		p.Tags = ps.Tags
		p.RelatedLinks = ps.RelatedLinks
		for _, name := range ps.Authors {
			a, ok := authors[name]
			if !ok {
				return fmt.Errorf("pagecms: import %q: unknown author %q", ps.Title, name)
			}
			p.Authors = append(p.Authors, a)
		}
		for _, b := range ps.Body {
			p.Body = append(p.Body, blocks.StreamChild{Type: b.Type, Value: b.Value})
		}
	}

	if err := s.SaveSpecific(sp); err != nil {
		return fmt.Errorf("pagecms: import %q: %w", ps.Title, err)
	}
	res.Pages++
	for i := range ps.Children {
		if err := s.importPage(&ps.Children[i], base.ID, authors, res); err != nil {
			return err
		}
	}
	return nil
}
