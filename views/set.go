package views

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ErrTemplateNotFound is returned when a named template does not exist in
// the set.
var ErrTemplateNotFound = errors.New("views: template not found")

// PartialsDir holds templates shared by every page template. Files under it
// are parsed into each page template and are not addressable by name.
const PartialsDir = "partials"

const reloadDebounce = 200 * time.Millisecond

// Set is a collection of named html/template templates loaded from a file
// system. Names are slash separated paths relative to the root, e.g.
// "blog/blog_page.html".
type Set struct {
	fsys  fs.FS
	funcs template.FuncMap

	mu    sync.RWMutex
	tmpls map[string]*template.Template
}

// NewSet parses every *.html file in fsys.
func NewSet(fsys fs.FS, funcs template.FuncMap) (*Set, error) {
	s := &Set{fsys: fsys, funcs: funcs}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-parses the set from its file system. On error the previously
// loaded templates stay in place.
func (s *Set) Reload() error {
	base := template.New("").Funcs(DefaultFuncs()).Funcs(s.funcs)
	var pages []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		if strings.HasPrefix(p, PartialsDir+"/") {
			b, err := fs.ReadFile(s.fsys, p)
			if err != nil {
				return err
			}
			if _, err := base.New(p).Parse(string(b)); err != nil {
				return fmt.Errorf("views: parse %s: %w", p, err)
			}
			return nil
		}
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("views: load templates: %w", err)
	}

	tmpls := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		b, err := fs.ReadFile(s.fsys, p)
		if err != nil {
			return fmt.Errorf("views: read %s: %w", p, err)
		}
		t, err := base.Clone()
		if err != nil {
			return fmt.Errorf("views: clone base for %s: %w", p, err)
		}
		if _, err := t.New(p).Parse(string(b)); err != nil {
			return fmt.Errorf("views: parse %s: %w", p, err)
		}
		tmpls[p] = t.Lookup(p)
	}

	s.mu.Lock()
	s.tmpls = tmpls
	s.mu.Unlock()
	return nil
}

// Has reports whether name exists in the set.
func (s *Set) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tmpls[name]
	return ok
}

// Names returns the loaded template names.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tmpls))
	for n := range s.tmpls {
		names = append(names, n)
	}
	return names
}

// Lookup returns the named template or an error wrapping
// ErrTemplateNotFound.
func (s *Set) Lookup(name string) (*template.Template, error) {
	s.mu.RLock()
	t, ok := s.tmpls[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t, nil
}

// Component returns the named template bound to data as a templ component.
func (s *Set) Component(name string, data any) (templ.Component, error) {
	t, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	return templ.FromGoHTML(t, data), nil
}

// Execute renders the named template to w.
func (s *Set) Execute(ctx context.Context, w io.Writer, name string, data any) error {
	cmp, err := s.Component(name, data)
	if err != nil {
		return err
	}
	if err := cmp.Render(ctx, w); err != nil {
		return fmt.Errorf("views: execute %s: %w", name, err)
	}
	return nil
}

// Render renders the named template to a string of trusted HTML.
func (s *Set) Render(ctx context.Context, name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := s.Execute(ctx, &buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Watch reloads the set whenever a file under dir changes. It returns once
// the watcher is set up; reloading continues in the background until ctx is
// done. dir must be the directory the set's file system reads from.
func (s *Set) Watch(ctx context.Context, dir string, log logrus.FieldLogger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("views: create watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("views: watch %s: %w", dir, err)
	}

	go s.watchLoop(ctx, watcher, dir, log)
	return nil
}

func (s *Set) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, dir string, log logrus.FieldLogger) {
	defer watcher.Close()

	var timer *time.Timer
	reload := func() {
		if err := s.Reload(); err != nil {
			log.WithError(err).Error("template reload failed")
			return
		}
		log.WithField("dir", dir).Info("templates reloaded")
	}
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("template watcher error")
		}
	}
}
