package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/database"
	"github.com/snarg/beaverscribe/internal/storage"
)

// HistoryReader lists recorded transcripts. *database.DB satisfies it.
type HistoryReader interface {
	GetTranscript(ctx context.Context, id string) (*database.TranscriptAPI, error)
	ListTranscripts(ctx context.Context, limit, offset int) ([]TranscriptAPI, int, error)
}

// TranscriptAPI is the history row returned by list and get.
type TranscriptAPI = database.TranscriptAPI

// TranscriptListResponse is the body of GET /transcripts.
type TranscriptListResponse struct {
	Transcripts []TranscriptAPI `json:"transcripts"`
	Total       int             `json:"total"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
}

// TranscriptsHandler serves stored transcript files and history.
type TranscriptsHandler struct {
	store   storage.TextStore
	history HistoryReader // nil when DATABASE_URL is unset
	log     zerolog.Logger
}

func NewTranscriptsHandler(store storage.TextStore, history HistoryReader, log zerolog.Logger) *TranscriptsHandler {
	return &TranscriptsHandler{
		store:   store,
		history: history,
		log:     log.With().Str("handler", "transcripts").Logger(),
	}
}

// Routes registers transcript endpoints.
func (h *TranscriptsHandler) Routes(r chi.Router) {
	r.Get("/transcripts", h.List)
	r.Get("/transcripts/{id}", h.Get)
	r.Get("/transcripts/{id}/download", h.Download)
	r.Get("/transcripts/{id}/original", h.Original)
}

// Download serves the beaverified text as a file attachment.
func (h *TranscriptsHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.serveText(w, r, storage.BeaverifiedFile, true)
}

// Original serves the unmodified transcript inline.
func (h *TranscriptsHandler) Original(w http.ResponseWriter, r *http.Request) {
	h.serveText(w, r, storage.OriginalFile, false)
}

func (h *TranscriptsHandler) serveText(w http.ResponseWriter, r *http.Request, file string, attachment bool) {
	id, ok := transcriptID(w, r)
	if !ok {
		return
	}
	rc, err := h.store.Open(r.Context(), storage.Key(id, file))
	if errors.Is(err, storage.ErrNotFound) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "transcript not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Str("file", file).Msg("failed to open transcript")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to read transcript")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if attachment {
		w.Header().Set("Content-Disposition", `attachment; filename="`+file+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn().Err(err).Str("id", id).Msg("transcript download interrupted")
	}
}

// List handles GET /api/v1/transcripts.
func (h *TranscriptsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrUnavailable, "transcript history is disabled (no DATABASE_URL)")
		return
	}
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	items, total, err := h.history.ListTranscripts(r.Context(), p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list transcripts")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to list transcripts")
		return
	}
	WriteJSON(w, http.StatusOK, TranscriptListResponse{
		Transcripts: items,
		Total:       total,
		Limit:       p.Limit,
		Offset:      p.Offset,
	})
}

// Get handles GET /api/v1/transcripts/{id}.
func (h *TranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrUnavailable, "transcript history is disabled (no DATABASE_URL)")
		return
	}
	id, ok := transcriptID(w, r)
	if !ok {
		return
	}
	t, err := h.history.GetTranscript(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "transcript not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("failed to get transcript")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to get transcript")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// transcriptID validates the {id} path parameter as a UUID.
func transcriptID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "invalid transcript id")
		return "", false
	}
	return id.String(), true
}
