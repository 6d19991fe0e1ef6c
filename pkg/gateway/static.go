package gateway

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

const staticPrefix = "/static/"

// Content types by extension. Anything else is served as
// application/octet-stream.
var contentTypes = map[string]string{
	".js":        "text/javascript; charset=utf-8",
	".css":       "text/css; charset=utf-8",
	".gif":       "image/gif",
	".jpeg":      "image/jpeg",
	".jpg":       "image/jpeg",
	".png":       "image/png",
	".tiff":      "image/tiff",
	".svg":       "image/svg+xml",
	".mpeg":      "video/mpeg",
	".mp4":       "video/mp4",
	".quicktime": "video/quicktime",
	".mov":       "video/quicktime",
	".webm":      "video/webm",
}

// contentType returns the response content type for name.
func contentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// staticRelPath returns the sanitized path of a static request relative to
// the static root. It rejects traversal and absolute-path tricks before the
// path reaches the os.Root.
func staticRelPath(urlPath string) (string, bool) {
	if !strings.HasPrefix(urlPath, staticPrefix) {
		return "", false
	}
	rel := strings.TrimPrefix(urlPath, staticPrefix)
	if rel == "" {
		return "", false
	}

	// NUL can arrive as %00.
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	if strings.Contains(rel, "\\") {
		return "", false
	}

	// "/static//etc/passwd" leaves "/etc/passwd".
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot segments before cleaning so traversal is not cleaned
	// into a different, valid looking path.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}

// serveStatic streams a file from the static root. Every failure, including
// a directory, is a 404 page.
func (g *Gateway) serveStatic(w http.ResponseWriter, r *http.Request) {
	if g.root == nil {
		g.notFound(w, r)
		return
	}

	rel, ok := staticRelPath(r.URL.Path)
	if !ok {
		g.logger.Debug("rejected static path", "path", r.URL.Path)
		g.notFound(w, r)
		return
	}

	f, err := g.root.Open(filepath.FromSlash(rel))
	if err != nil {
		g.notFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		g.notFound(w, r)
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType(rel))
	h.Set("Cache-Control", "max-age=3600")
	h.Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, rel, info.ModTime(), f)
}
