package blocks

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/eringen/pagecms/amp"
)

// Renderer supplies the page-level pieces block rendering depends on.
type Renderer interface {
	Context() context.Context
	HasTemplate(name string) bool
	Template(name string, value any) (template.HTML, error)
	RichText(src string) (template.HTML, error)
	Image(id any) (template.HTML, error)
	Embed(u any) (template.HTML, error)
}

// Render renders a cleaned value of b. A block with its own template renders
// through it, preferring the "_amp" variant in AMP mode when one exists.
func Render(r Renderer, b Block, v any) (template.HTML, error) {
	if name := b.Meta().Template; name != "" {
		if amp.Active(r.Context()) && r.HasTemplate(amp.TemplateName(name)) {
			name = amp.TemplateName(name)
		}
		return r.Template(name, v)
	}

	switch blk := b.(type) {
	case *CharBlock:
		s, _ := v.(string)
		return template.HTML(template.HTMLEscapeString(s)), nil
	case *RichTextBlock:
		s, _ := v.(RichText)
		return r.RichText(string(s))
	case *ImageChooserBlock:
		return r.Image(v)
	case *EmbedBlock:
		return r.Embed(v)
	case *StructBlock:
		return renderStruct(r, blk, v)
	case *ListBlock:
		return renderList(r, blk, v)
	case *StreamBlock:
		return RenderStream(r, v)
	default:
		return "", fmt.Errorf("blocks: no renderer for %T", b)
	}
}

func renderStruct(r Renderer, b *StructBlock, v any) (template.HTML, error) {
	sv, _ := v.(StructValue)
	var buf strings.Builder
	buf.WriteString("<dl>")
	for _, c := range b.Children {
		out, err := Render(r, c.Block, sv[c.Name])
		if err != nil {
			return "", err
		}
		buf.WriteString("<dt>" + template.HTMLEscapeString(c.Label()) + "</dt><dd>")
		buf.WriteString(string(out))
		buf.WriteString("</dd>")
	}
	buf.WriteString("</dl>")
	return template.HTML(buf.String()), nil
}

func renderList(r Renderer, b *ListBlock, v any) (template.HTML, error) {
	lv, _ := v.(ListValue)
	var buf strings.Builder
	buf.WriteString("<ul>")
	for _, item := range lv {
		out, err := Render(r, b.Child, item)
		if err != nil {
			return "", err
		}
		buf.WriteString("<li>" + string(out) + "</li>")
	}
	buf.WriteString("</ul>")
	return template.HTML(buf.String()), nil
}

// RenderStream renders each child of a cleaned stream wrapped in a div
// classed by its type.
func RenderStream(r Renderer, v any) (template.HTML, error) {
	sv, _ := v.(StreamValue)
	var buf strings.Builder
	for _, c := range sv {
		out, err := RenderChild(r, c)
		if err != nil {
			return "", err
		}
		buf.WriteString(`<div class="block-` + template.HTMLEscapeString(c.Type) + `">`)
		buf.WriteString(string(out))
		buf.WriteString("</div>")
	}
	return template.HTML(buf.String()), nil
}

// RenderChild renders one stream child with its own definition.
func RenderChild(r Renderer, c StreamChild) (template.HTML, error) {
	if c.block == nil {
		return "", fmt.Errorf("blocks: %s block %s has not been cleaned", c.Type, c.ID)
	}
	return Render(r, c.block, c.Value)
}
