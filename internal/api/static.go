package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spaHandler serves a built single-page app. Paths that name an existing file
// are served as-is; anything else gets index.html so the client-side router
// can handle it.
type spaHandler struct {
	dir   string
	index string
}

// newSPAHandler returns nil when dir is empty or is not a directory holding
// an index.html.
func newSPAHandler(dir string) *spaHandler {
	if dir == "" {
		return nil
	}
	index := filepath.Join(dir, "index.html")
	if info, err := os.Stat(index); err != nil || info.IsDir() {
		return nil
	}
	return &spaHandler{dir: dir, index: index}
}

func (s *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowedHandler(w, r)
		return
	}

	// path.Clean on a rooted path drops any ".." that would escape dir.
	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.dir, filepath.FromSlash(strings.TrimPrefix(name, "/")))

	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		serveFile(w, r, file)
		return
	}
	serveFile(w, r, s.index)
}

func serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := os.Open(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
