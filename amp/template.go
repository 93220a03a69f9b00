package amp

import (
	"context"
	"path"
	"strings"
)

// Marker is inserted before a template's extension to name its AMP variant.
const Marker = "_amp"

// TemplateName derives the AMP template name from a page's default template:
// "blog/blog_page.html" becomes "blog/blog_page_amp.html". Names that are
// already AMP variants are returned unchanged.
func TemplateName(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if strings.HasSuffix(base, Marker) {
		return name
	}
	return base + Marker + ext
}

// TemplateResolver picks the template a page renders with.
type TemplateResolver interface {
	ResolveTemplate(ctx context.Context) string
}

// Static always resolves to the same template. Page types without an AMP
// variant use it.
type Static string

// ResolveTemplate implements TemplateResolver.
func (s Static) ResolveTemplate(context.Context) string {
	return string(s)
}

// Template resolves to Name normally and to the AMP variant while the
// request is in AMP mode.
type Template struct {
	Name string
	// AMPName overrides the derived AMP template name when set.
	AMPName string
}

// AMPTemplate returns the template used in AMP mode.
func (t Template) AMPTemplate() string {
	if t.AMPName != "" {
		return t.AMPName
	}
	return TemplateName(t.Name)
}

// ResolveTemplate implements TemplateResolver.
func (t Template) ResolveTemplate(ctx context.Context) string {
	if Active(ctx) {
		return t.AMPTemplate()
	}
	return t.Name
}

// Supports reports whether r switches templates in AMP mode.
func Supports(r TemplateResolver) bool {
	switch r.(type) {
	case Template, *Template:
		return true
	}
	return false
}
