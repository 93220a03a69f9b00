package pagecms

import (
	"github.com/eringen/pagecms/amp"
	"github.com/eringen/pagecms/blocks"
)

// Panel describes one element of a page type's editor layout. The admin
// API serves panels as data; clients build their forms from them.
type Panel struct {
	Kind      PanelKind `json:"kind"`
	Field     string    `json:"field,omitempty"`
	Heading   string    `json:"heading,omitempty"`
	Label     string    `json:"label,omitempty"`
	Widget    string    `json:"widget,omitempty"`
	Classname string    `json:"classname,omitempty"`
	Children  []Panel   `json:"children,omitempty"`
}

// PanelKind identifies how a panel is rendered.
type PanelKind string

const (
	KindField           PanelKind = "field"
	KindMultiField      PanelKind = "multi_field"
	KindInline          PanelKind = "inline"
	KindObjectList      PanelKind = "object_list"
	KindTabbedInterface PanelKind = "tabbed_interface"
)

// FieldPanel edits a single field.
func FieldPanel(field string) Panel {
	return Panel{Kind: KindField, Field: field}
}

// WithWidget returns a copy of p using the named form widget.
func (p Panel) WithWidget(widget string) Panel {
	p.Widget = widget
	return p
}

// MultiFieldPanel groups fields under one heading.
func MultiFieldPanel(heading string, children ...Panel) Panel {
	return Panel{Kind: KindMultiField, Heading: heading, Children: children}
}

// InlinePanel edits an ordered list of child objects of relation.
func InlinePanel(relation, heading, label string) Panel {
	return Panel{Kind: KindInline, Field: relation, Heading: heading, Label: label}
}

// ObjectList is one tab of a tabbed interface.
func ObjectList(heading string, children ...Panel) Panel {
	return Panel{Kind: KindObjectList, Heading: heading, Children: children}
}

// TabbedInterface lays out tabs.
func TabbedInterface(tabs ...Panel) Panel {
	return Panel{Kind: KindTabbedInterface, Children: tabs}
}

// PromotePanels are the search engine and menu settings common to every
// page type.
var PromotePanels = []Panel{
	MultiFieldPanel("For search engines",
		FieldPanel("slug"),
		FieldPanel("seo_title"),
		FieldPanel("search_description"),
	),
	MultiFieldPanel("For site menus",
		FieldPanel("show_in_menus"),
	),
}

// SettingsPanels hold the publishing schedule.
var SettingsPanels = []Panel{
	MultiFieldPanel("Scheduled publishing",
		FieldPanel("go_live_at"),
		FieldPanel("expire_at"),
	),
}

// PageModel declares a page type: how it renders, where it may live in the
// tree and how it is edited.
type PageModel struct {
	Type        PageType             `json:"type"`
	Label       string               `json:"label"`
	Description string               `json:"description,omitempty"`
	Template    amp.TemplateResolver `json:"-"`
	// ParentTypes restricts the parent's type. Nil allows any parent and the
	// site root position.
	ParentTypes []PageType `json:"parent_types"`
	// SubpageTypes restricts children. Nil allows any type, an empty slice
	// allows none.
	SubpageTypes []PageType `json:"subpage_types"`
	EditHandler  Panel      `json:"edit_handler"`
}

// SupportsAMP reports whether the model has an AMP template variant.
func (m *PageModel) SupportsAMP() bool {
	return amp.Supports(m.Template)
}

// AllowsParent reports whether a page of this model may be placed under a
// page of type parent. An empty parent means the site root position.
func (m *PageModel) AllowsParent(parent PageType) bool {
	if m.ParentTypes == nil {
		return true
	}
	for _, t := range m.ParentTypes {
		if t == parent {
			return true
		}
	}
	return false
}

// AllowsSubpage reports whether pages of type child may be placed below.
func (m *PageModel) AllowsSubpage(child PageType) bool {
	if m.SubpageTypes == nil {
		return true
	}
	for _, t := range m.SubpageTypes {
		if t == child {
			return true
		}
	}
	return false
}

// BlogPageBody is the stream of blocks making up a blog page's body.
var BlogPageBody = &blocks.StreamBlock{
	Children: []blocks.Child{
		{Name: "person", Block: &blocks.StructBlock{
			Children: []blocks.Child{
				{Name: "first_name", Block: &blocks.CharBlock{}},
				{Name: "surname", Block: &blocks.CharBlock{}},
				{Name: "photo", Block: &blocks.ImageChooserBlock{Optional: true}},
				{Name: "biography", Block: &blocks.RichTextBlock{}},
			},
			BlockMeta: blocks.Meta{Template: "blog/blocks/person.html", Icon: "user"},
		}},
		{Name: "gallery", Block: &blocks.ListBlock{
			Child: &blocks.ImageChooserBlock{},
		}},
		{Name: "carousel", Block: &blocks.StreamBlock{
			Children: []blocks.Child{
				{Name: "image", Block: &blocks.ImageChooserBlock{}},
				{Name: "video", Block: &blocks.EmbedBlock{}},
			},
			BlockMeta: blocks.Meta{Icon: "image"},
		}},
		{Name: "common_content", Block: &blocks.StreamBlock{
			Children: []blocks.Child{
				{Name: "heading", Block: &blocks.CharBlock{BlockMeta: blocks.Meta{FormClassname: "title"}}},
				{Name: "paragraph", Block: &blocks.RichTextBlock{}},
				{Name: "image", Block: &blocks.ImageChooserBlock{}},
			},
			BlockCounts: map[string]blocks.Count{
				"heading": {Min: 1, Max: 3},
			},
		}},
	},
	MinNum: 2,
	MaxNum: 7,
}

var blogPageModel = &PageModel{
	Type:         TypeBlogPage,
	Label:        "Blog page",
	Description:  "Use this page for converting users",
	Template:     amp.Template{Name: "blog/blog_page.html"},
	ParentTypes:  []PageType{TypeBlogIndexPage},
	SubpageTypes: []PageType{},
	EditHandler: TabbedInterface(
		ObjectList("Content",
			FieldPanel("title"),
			MultiFieldPanel("Blog information",
				FieldPanel("date"),
				FieldPanel("authors").WithWidget("checkbox_select_multiple"),
				FieldPanel("tags"),
			),
			FieldPanel("intro"),
			FieldPanel("body"),
			InlinePanel("gallery_images", "Gallery images", "Gallery image"),
		),
		ObjectList("Sidebar content",
			InlinePanel("related_links", "Related links", "Related link"),
		),
		ObjectList("Promote", PromotePanels...),
	),
}

var blogIndexPageModel = &PageModel{
	Type:     TypeBlogIndexPage,
	Label:    "Blog index page",
	Template: amp.Static("blog/blog_index_page.html"),
	EditHandler: TabbedInterface(
		ObjectList("Content",
			FieldPanel("title"),
			FieldPanel("intro"),
		),
		ObjectList("Promote", PromotePanels...),
		ObjectList("Settings", SettingsPanels...),
	),
}

var blogTagIndexPageModel = &PageModel{
	Type:     TypeBlogTagIndexPage,
	Label:    "Blog tag index page",
	Template: amp.Static("blog/blog_tag_index_page.html"),
	EditHandler: TabbedInterface(
		ObjectList("Content",
			FieldPanel("title"),
		),
		ObjectList("Promote", PromotePanels...),
		ObjectList("Settings", SettingsPanels...),
	),
}

// Models lists the registered page types in menu order.
var Models = []*PageModel{blogIndexPageModel, blogPageModel, blogTagIndexPageModel}

// Model returns the model registered for t.
func Model(t PageType) (*PageModel, bool) {
	for _, m := range Models {
		if m.Type == t {
			return m, true
		}
	}
	return nil, false
}

// Related object panels edited inline or as snippets.
var (
	RelatedLinkPanels = []Panel{
		FieldPanel("name"),
		FieldPanel("url"),
	}
	GalleryImagePanels = []Panel{
		FieldPanel("image"),
		FieldPanel("caption"),
	}
	AuthorPanels = []Panel{
		FieldPanel("name"),
		FieldPanel("author_image"),
	}
)
