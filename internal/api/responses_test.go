package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ── ParsePagination ──────────────────────────────────────────────────

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", 50, 0, false},
		{"valid_custom", "limit=25&offset=10", 25, 10, false},
		{"limit_over_max_clamps", "limit=2000", maxLimit, 0, false},
		{"limit_zero_rejected", "limit=0", 0, 0, true},
		{"negative_offset_rejected", "offset=-5", 0, 0, true},
		{"non_numeric_rejected", "limit=abc", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/?"+tt.query, nil)
			p, err := ParsePagination(req)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

// ── WriteJSON ────────────────────────────────────────────────────────

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"msg": "ok"})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body["msg"] != "ok" {
		t.Errorf("body = %v, want msg=ok", body)
	}
}

// ── WriteError* ──────────────────────────────────────────────────────

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad input")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body["error"] != "bad input" {
		t.Errorf("error = %v, want %q", body["error"], "bad input")
	}
	if _, ok := body["code"]; ok {
		t.Error("code should be omitted when empty")
	}
}

func TestWriteErrorWithCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithCode(rec, http.StatusUnsupportedMediaType, ErrUnsupported, "unsupported audio format")

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Code != ErrUnsupported || body.Error != "unsupported audio format" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorDetail(rec, http.StatusBadGateway, ErrUpstream, "transcription service returned an error", "status 503")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Error != "transcription service returned an error" {
		t.Errorf("Error = %q", body.Error)
	}
	if body.Code != ErrUpstream {
		t.Errorf("Code = %q, want %q", body.Code, ErrUpstream)
	}
	if body.Detail != "status 503" {
		t.Errorf("Detail = %q, want %q", body.Detail, "status 503")
	}
}
