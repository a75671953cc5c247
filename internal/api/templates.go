package api

import (
	"embed"
	"html/template"
	"strconv"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"pct": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 2, 64) + "%"
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
