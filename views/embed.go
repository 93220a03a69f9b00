package views

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var templates embed.FS

// DefaultFS returns the built-in templates rooted at the template directory.
// Sites override them by pointing templates.dir at a copy.
func DefaultFS() fs.FS {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
