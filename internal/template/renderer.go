// Package template renders alerting payload templates to JSON documents.
package template

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/template"

	"github.com/apmonboard/apmonboard/internal/controller"
)

// ErrTemplateNotFound indicates a configured template name has no backing
// file. Callers treat this as fatal: a missing template means the run was
// misconfigured, not that the controller misbehaved.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed templates/*.json
var embedded embed.FS

// Params carries the per-run values substituted into payload templates.
type Params struct {
	Environment     string
	BusinessName    string
	ApplicationName string
	TierName        string
	UserEmails      []string
	CriticalValue   string
	WarningValue    string

	// Database onboarding values. RuleBaseName is the shared name prefix
	// ("BUSINESS | env | dbType", with the server name appended for rules
	// scoped to one database). DatabaseScope is spliced verbatim into the
	// affects block of database health rules.
	RuleBaseName  string
	DatabaseType  string
	DatabaseScope controller.Document
}

// Renderer renders named templates into JSON documents. The zero value is
// not usable; construct with NewRenderer or NewRendererFromDir.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer builds a renderer over the built-in template set.
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return newRenderer(sub)
}

// NewRendererFromDir builds a renderer over a directory of template files,
// replacing the built-in set entirely.
func NewRendererFromDir(dir string) (*Renderer, error) {
	return newRenderer(os.DirFS(dir))
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.New("").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			// json marshals a value so slices can be spliced into the
			// payload as proper JSON arrays.
			"json": func(v any) (string, error) {
				b, err := json.Marshal(v)
				return string(b), err
			},
		}).
		ParseFS(fsys, "*.json")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes one template and parses the output as a JSON document.
func (r *Renderer) Render(name string, params Params) (controller.Document, error) {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrTemplateNotFound)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("rendering %q: %w", name, err)
	}

	var doc controller.Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("template %q did not render valid JSON: %w", name, err)
	}
	return doc, nil
}

// RenderAll renders every named template in order. One failure aborts the
// whole set: a partially rendered set would provision a partial tier.
func (r *Renderer) RenderAll(names []string, params Params) ([]controller.Document, error) {
	docs := make([]controller.Document, 0, len(names))
	for _, name := range names {
		doc, err := r.Render(name, params)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
