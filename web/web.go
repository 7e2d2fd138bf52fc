// Package web embeds the landing page template and the browser client.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// GetTemplatesFS returns the html/template sources, rooted so that the
// page is "index.html"
func GetTemplatesFS() fs.FS {
	return mustSub("templates")
}

// GetStaticFS returns the files served under /static/
func GetStaticFS() fs.FS {
	return mustSub("static")
}

// mustSub panics on error; the embedded directory names are fixed at
// compile time.
func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(assets, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
