// Package richtext renders Markdown rich text to HTML. In AMP mode images
// become <amp-img> elements so the output stays valid AMP.
package richtext

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/eringen/pagecms/amp"
)

// Default AMP image box. Stored images are resized to at most 800px wide so
// a 4:3 responsive box scales them without distortion in most cases.
const (
	ampImageWidth  = "1024"
	ampImageHeight = "768"
)

var (
	standard = goldmark.New(goldmark.WithExtensions(extension.GFM))
	ampMD    = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(ampImageRenderer{}, 100)),
		),
	)
)

// Render converts src to HTML. Raw HTML in src is dropped.
func Render(ctx context.Context, src string) (template.HTML, error) {
	md := standard
	if amp.Active(ctx) {
		md = ampMD
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("richtext: convert: %w", err)
	}
	return template.HTML(buf.String()), nil
}

type ampImageRenderer struct{}

func (r ampImageRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindImage, r.renderImage)
}

func (r ampImageRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	if html.IsDangerousURL(n.Destination) {
		return ast.WalkSkipChildren, nil
	}
	_, _ = w.WriteString(`<amp-img layout="responsive" width="` + ampImageWidth + `" height="` + ampImageHeight + `" src="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.Write(util.EscapeHTML(altText(n, source)))
	_ = w.WriteByte('"')
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_ = w.WriteByte('"')
	}
	_, _ = w.WriteString(`></amp-img>`)
	return ast.WalkSkipChildren, nil
}

func altText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.Write(altText(c, source))
		}
	}
	return buf.Bytes()
}
