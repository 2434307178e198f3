package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const fallbackAvatarSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#eef2ff"/><circle cx="100" cy="78" r="34" fill="#94a3b8"/><path d="M40 168c0-33 27-52 60-52s60 19 60 52" fill="#94a3b8"/></svg>`

// StaticFileServer serves user avatars, falling back to a placeholder
// for users who never uploaded one.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(fallbackAvatarSVG))
	})
}
