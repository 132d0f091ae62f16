// Package web bundles the static test UI served for unmatched paths.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed public
var content embed.FS

// FileSystem returns the UI rooted at the public directory.
func FileSystem() http.FileSystem {
	sub, err := fs.Sub(content, "public")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
