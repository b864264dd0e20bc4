// Package web serves the matching API and a small test page over HTTP.
// Binds to localhost by default and has no auth.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static/index.html
var embedded embed.FS

// staticFS is rooted at static/ so "/" resolves to index.html.
var staticFS, _ = fs.Sub(embedded, "static")
