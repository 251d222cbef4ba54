// Package web holds the dashboard page template and its stylesheet.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Templates parses every page template. Templates are looked up by file
// name, e.g. "index.html".
func Templates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// Static returns the stylesheet and other assets rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
