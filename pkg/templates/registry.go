// Package templates holds the agents' prompt templates. Prompts ship
// embedded in the binary and can be overridden file by file from a
// directory at startup.
package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"strategist/pkg/errors"
)

//go:embed assets
var embeddedFS embed.FS

const ext = ".tmpl"

// Prompt is one parsed template. Source records where it was loaded from.
type Prompt struct {
	ID     string
	Source string

	parsed *template.Template
}

// Render executes the prompt. Surrounding whitespace is trimmed so
// templates can be laid out freely.
func (p *Prompt) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := p.parsed.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", p.ID)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Registry resolves prompts by id: the path below the root without the
// .tmpl extension, e.g. "prompts/validation/system".
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]*Prompt
}

// Load parses every .tmpl file in fsys.
func Load(fsys fs.FS, source string) (*Registry, error) {
	r := &Registry{prompts: make(map[string]*Prompt)}
	if err := r.load(fsys, source); err != nil {
		return nil, err
	}
	return r, nil
}

// Overlay replaces or adds prompts from dir. All files are parsed
// before any is swapped in, so a broken file leaves the registry as it was.
func (r *Registry) Overlay(dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "prompt overrides %s", dir)
	}
	if !info.IsDir() {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "prompt overrides %s is not a directory", dir)
	}

	staged, err := Load(os.DirFS(dir), dir)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range staged.prompts {
		r.prompts[id] = p
	}
	return len(staged.prompts), nil
}

// Lookup returns the prompt for id, or ErrNotFound.
func (r *Registry) Lookup(id string) (*Prompt, error) {
	r.mu.RLock()
	p, ok := r.prompts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "template %s", id)
	}
	return p, nil
}

// Render looks up id and executes it with data.
func (r *Registry) Render(id string, data any) (string, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return p.Render(data)
}

// List returns all prompt ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) load(fsys fs.FS, source string) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ext {
			return nil
		}

		id := strings.TrimSuffix(p, ext)
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrapf(err, "read template %s", id)
		}
		parsed, err := template.New(id).Funcs(FuncMap()).Parse(string(content))
		if err != nil {
			return errors.Wrapf(err, "parse template %s", id)
		}

		r.prompts[id] = &Prompt{ID: id, Source: path.Join(source, p), parsed: parsed}
		return nil
	})
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Get returns the process-wide registry built from the embedded prompts.
// It panics if an embedded prompt fails to parse.
func Get() *Registry {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embeddedFS, "assets")
		if err != nil {
			defaultErr = errors.Wrap(err, "prepare embedded templates")
			return
		}
		defaultRegistry, defaultErr = Load(sub, "embedded")
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultRegistry
}
