package uistatic

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var appFS embed.FS

const indexFile = "index.html"

// Handler serves the embedded chat page. Paths that do not name an embedded
// file get the page itself.
func Handler() http.Handler {
	sub, err := fs.Sub(appFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if name == "." || name == "" {
			name = indexFile
		}
		if _, err := fs.Stat(sub, name); err != nil {
			name = indexFile
		}
		if name == indexFile {
			w.Header().Set("Cache-Control", "no-cache")
		}
		http.ServeFileFS(w, r, sub, name)
	})
}
