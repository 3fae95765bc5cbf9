package board

import (
	"html/template"
	"io"
)

// Renderer turns a named view and its data into a response body. It is the
// boundary to the presentation layer; handlers never touch templates
// directly.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// TemplateRenderer renders html/template files loaded from a glob.
type TemplateRenderer struct {
	templates *template.Template
}

var _ Renderer = (*TemplateRenderer)(nil)

func NewTemplateRenderer(glob string) (*TemplateRenderer, error) {
	tpl, err := template.ParseGlob(glob)
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{templates: tpl}, nil
}

func (t *TemplateRenderer) Render(w io.Writer, name string, data any) error {
	return t.templates.ExecuteTemplate(w, name, data)
}
