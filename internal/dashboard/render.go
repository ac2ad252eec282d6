package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

// Renderer renders a View as the dashboard page.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded page template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the page for v. The page is built in memory first so a template
// error never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, v View) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "dashboard.html", v); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
