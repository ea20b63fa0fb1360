// Package view renders the server-side HTML pages. Templates are embedded
// in the binary and parsed once into a single set; every page template
// includes the shared "header" and "footer".
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data passed to every page template. Data holds the
// page-specific values.
type Page struct {
	Title   string
	Nav     string
	User    *model.User
	Errors  map[string]string
	Message string
	Data    any
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	t, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// Render executes the named template.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

var funcMap = template.FuncMap{
	"date":          formatDate,
	"datetimeLocal": func(t time.Time) string { return t.UTC().Format("2006-01-02T15:04") },
	"num":           formatNumber,
	"pct":           percent,
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatNumber prints an optional float without trailing zeros.
func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// percent is n as a whole percentage of peak, for bar widths.
func percent(n, peak int) int {
	if peak <= 0 || n <= 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(peak)))
}
