package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/snarg/beaverscribe/internal/beaver"
)

func TestIndexHandler(t *testing.T) {
	t.Run("serves_index", func(t *testing.T) {
		fs := fstest.MapFS{
			"index.html": &fstest.MapFile{Data: []byte(`<!DOCTYPE html><title>Beaverscribe</title>`)},
		}
		rec := httptest.NewRecorder()
		IndexHandler(fs)(rec, httptest.NewRequest("GET", "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("Content-Type = %q", ct)
		}
		if !strings.Contains(rec.Body.String(), "Beaverscribe") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("missing_index_500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		IndexHandler(fstest.MapFS{})(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestModesHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ModesHandler(beaver.ModeMaximum)(rec, httptest.NewRequest("GET", "/api/v1/modes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var modes []modeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &modes); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if len(modes) != 3 {
		t.Fatalf("got %d modes, want 3", len(modes))
	}
	for _, m := range modes {
		if m.Default != (m.Name == "maximum") {
			t.Errorf("mode %q default = %v", m.Name, m.Default)
		}
		if len(m.Keywords) == 0 {
			t.Errorf("mode %q has no keywords", m.Name)
		}
	}
	if modes[0].Keywords["woman"] != "beaver biologist" {
		t.Errorf("mild woman = %q", modes[0].Keywords["woman"])
	}
}
