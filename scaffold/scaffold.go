// Package scaffold provides the embedded project template used by
// "pagecms new".
package scaffold

import "embed"

// Templates contains all scaffold template files. Files with a .tmpl
// suffix use Go text/template syntax; the rest are copied verbatim.
//
//go:embed all:templates
var Templates embed.FS
