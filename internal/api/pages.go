package api

import (
	"io/fs"
	"net/http"

	"github.com/snarg/beaverscribe/internal/beaver"
)

// IndexHandler serves index.html from webFS.
func IndexHandler(webFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(webFS, "index.html")
		if err != nil {
			http.Error(w, "upload page not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

type modeInfo struct {
	Name     string            `json:"name"`
	Default  bool              `json:"default"`
	Keywords map[string]string `json:"keywords"`
}

// ModesHandler lists the beaver modes and their keyword maps for the
// upload page's selector.
func ModesHandler(defaultMode beaver.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modes := make([]modeInfo, 0, len(beaver.Modes))
		for _, m := range beaver.Modes {
			modes = append(modes, modeInfo{
				Name:     string(m),
				Default:  m == defaultMode,
				Keywords: beaver.Keywords(m),
			})
		}
		WriteJSON(w, http.StatusOK, modes)
	}
}
