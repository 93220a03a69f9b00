// Package blocks declares structured rich-content blocks: typed units of
// content nested inside a page's body, with the count and required-field
// constraints enforced when a page is saved.
//
// A block definition cleans raw JSON into a typed value (Clean) and renders
// a cleaned value to HTML (Render). Definitions are plain data; page models
// compose them into stream fields.
package blocks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies the shape of a block's value.
type Kind string

const (
	KindChar     Kind = "char"
	KindRichText Kind = "rich_text"
	KindImage    Kind = "image"
	KindEmbed    Kind = "embed"
	KindStruct   Kind = "struct"
	KindList     Kind = "list"
	KindStream   Kind = "stream"
)

// Meta carries the editor- and renderer-facing options of a block.
type Meta struct {
	Label         string `json:"label,omitempty"`
	Icon          string `json:"icon,omitempty"`
	Template      string `json:"template,omitempty"`
	FormClassname string `json:"form_classname,omitempty"`
}

// Block is a block definition.
type Block interface {
	Kind() Kind
	Meta() Meta
	// Clean decodes and validates raw. It returns a best-effort value even
	// when validation fails, together with ValidationErrors.
	Clean(raw json.RawMessage) (any, error)
}

// Child names a block inside a struct or stream block.
type Child struct {
	Name  string
	Block Block
}

// Label returns the child's display label, derived from its name unless the
// block sets one.
func (c Child) Label() string {
	if l := c.Block.Meta().Label; l != "" {
		return l
	}
	return labelFromName(c.Name)
}

func labelFromName(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ValidationError describes one invalid value. Path is dot separated,
// e.g. "body.2.first_name".
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects every problem found while cleaning a value.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Prefix returns a copy of errs with p prepended to every path.
func (e ValidationErrors) Prefix(p string) ValidationErrors {
	out := make(ValidationErrors, len(e))
	for i, v := range e {
		if v.Path == "" {
			v.Path = p
		} else {
			v.Path = p + "." + v.Path
		}
		out[i] = v
	}
	return out
}

// collect appends err to errs. Validation errors are prefixed with p; any
// other error is fatal and returned as is.
func collect(errs ValidationErrors, err error, p string) (ValidationErrors, error) {
	if err == nil {
		return errs, nil
	}
	if ve, ok := err.(ValidationErrors); ok {
		return append(errs, ve.Prefix(p)...), nil
	}
	return errs, err
}

func invalid(format string, args ...any) ValidationErrors {
	return ValidationErrors{{Message: fmt.Sprintf(format, args...)}}
}

func errOrNil(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// isNull reports whether raw is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// Raw marshals a Go value into the raw form Clean accepts.
func Raw(v any) (json.RawMessage, error) {
	if r, ok := v.(json.RawMessage); ok {
		return r, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("blocks: marshal value: %w", err)
	}
	return b, nil
}

const (
	msgRequired = "This field is required."
	msgMinItems = "The minimum number of items is %d"
	msgMaxItems = "The maximum number of items is %d"
)
