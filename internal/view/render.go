package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

// Renderer executes the dashboard templates.
type Renderer struct {
	tmpl *template.Template
}

// pageData is the root of the full page template.
type pageData struct {
	Title    string
	Subtitle string
	Page     Page
}

// NewRenderer parses templates/*.html from fsys. The set must define the
// "page" and "body" templates.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, name := range []string{"page", "body"} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("template %q not defined", name)
		}
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderPage writes the full HTML document.
func (r *Renderer) RenderPage(w io.Writer, p Page) error {
	return r.execute(w, "page", pageData{Title: Title, Subtitle: Subtitle, Page: p})
}

// RenderBody writes only the dashboard body, for live replacement.
func (r *Renderer) RenderBody(w io.Writer, p Page) error {
	return r.execute(w, "body", p)
}

// BodyString is RenderBody into a string.
func (r *Renderer) BodyString(p Page) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderBody(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// execute renders into a buffer first so a failing template never leaves a
// half written response.
func (r *Renderer) execute(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
