// Package web provides the embedded dashboard templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html static/*
var files embed.FS

// Templates returns the filesystem holding templates/*.html.
func Templates() fs.FS {
	return files
}

// GetFileSystem returns the static assets with static/ as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(files, "static")
}

// RegisterStaticRoutes serves the embedded assets under /static/.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	e.GET("/static/*", echo.WrapHandler(fileServer))
	return nil
}

// HasEmbeddedFiles reports whether the dashboard assets were embedded.
func HasEmbeddedFiles() bool {
	for _, name := range []string{"templates/page.html", "templates/body.html", "static/app.js"} {
		if _, err := fs.Stat(files, name); err != nil {
			return false
		}
	}
	return true
}
