package site

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// IndexFile is served for directory requests.
const IndexFile = "index.html"

// CacheMode selects the Cache-Control policy for static files.
type CacheMode int

const (
	// CacheNone disables caching. Used during development.
	CacheNone CacheMode = iota

	// CacheProduction caches fingerprinted files for a year and
	// everything else for an hour.
	CacheProduction
)

// Static serves files from a directory with the site's cache and CORS
// rules.
type Static struct {
	fsys  fs.FS
	cache CacheMode
}

// NewStatic serves fsys.
func NewStatic(fsys fs.FS, cache CacheMode) *Static {
	return &Static{fsys: fsys, cache: cache}
}

// relPath turns a URL path into a path inside the static directory.
// Traversal, absolute paths and NUL bytes are rejected.
func relPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if strings.IndexByte(rel, 0) != -1 || strings.Contains(rel, "\\") {
		return "", false
	}
	// "//etc/passwd" leaves a leading slash behind.
	if strings.HasPrefix(rel, "/") {
		return "", false
	}
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += IndexFile
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}
	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := relPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := s.fsys.Open(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		// "/jobs" → "/jobs/" so relative links in its index resolve.
		target := r.URL.Path + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.applyCacheHeaders(w, rel)
	http.ServeContent(w, r, rel, info.ModTime(), rs)
}

func (s *Static) applyCacheHeaders(w http.ResponseWriter, rel string) {
	switch s.cache {
	case CacheNone:
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	case CacheProduction:
		if isFingerprinted(rel) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
}

// isFingerprinted reports whether a file name carries a content hash,
// as in "app.a1b2c3d4.js".
func isFingerprinted(rel string) bool {
	parts := strings.Split(path.Base(rel), ".")
	if len(parts) < 3 {
		return false
	}
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
