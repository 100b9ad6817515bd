package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/audio"
	"github.com/snarg/beaverscribe/internal/beaver"
	"github.com/snarg/beaverscribe/internal/ingest"
	"github.com/snarg/beaverscribe/internal/storage"
	"github.com/snarg/beaverscribe/internal/transcribe"
)

// Processor runs an upload through the beaverify pipeline.
type Processor interface {
	Process(ctx context.Context, up ingest.Upload) (*ingest.Result, error)
}

// BeaverifyResponse is the body of a successful POST /beaverify.
type BeaverifyResponse struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	Mode         string  `json:"mode"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	Original     string  `json:"original"`
	Beaverified  string  `json:"beaverified"`
	Trimmed      bool    `json:"trimmed"`
	AudioSeconds float64 `json:"audio_seconds"`
	DownloadURL  string  `json:"download_url"`
	DirectURL    string  `json:"direct_url,omitempty"`
}

// UploadHandler accepts audio uploads for beaverification.
type UploadHandler struct {
	proc      Processor
	store     storage.TextStore
	maxUpload int64
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler. maxUpload bounds the
// in-memory multipart buffer.
func NewUploadHandler(proc Processor, store storage.TextStore, maxUpload int64, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		proc:      proc,
		store:     store,
		maxUpload: maxUpload,
		log:       log.With().Str("handler", "upload").Logger(),
	}
}

// Routes registers the upload endpoint.
func (h *UploadHandler) Routes(r chi.Router) {
	r.Post("/beaverify", h.Beaverify)
}

// Beaverify handles POST /api/v1/beaverify.
// Multipart form: "audio" file field, optional "mode" field.
func (h *UploadHandler) Beaverify(w http.ResponseWriter, r *http.Request) {
	mem := h.maxUpload
	if mem <= 0 {
		mem = 32 << 20
	}
	if err := r.ParseMultipartForm(mem); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge, "upload exceeds size limit")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "missing \"audio\" file field")
		return
	}
	defer file.Close()

	// A file larger than the guard is rejected before it is read into memory.
	if err := audio.CheckSize(header.Size, h.maxUpload); err != nil {
		WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "failed to read audio file")
		return
	}

	res, err := h.proc.Process(r.Context(), ingest.Upload{
		Filename: header.Filename,
		Data:     data,
		Mode:     r.FormValue("mode"),
		Source:   "upload",
	})
	if err != nil {
		h.writeProcessError(w, err)
		return
	}

	resp := BeaverifyResponse{
		ID:           res.ID,
		Filename:     res.Filename,
		Mode:         string(res.Mode),
		Provider:     res.Provider,
		Model:        res.Model,
		Original:     res.Original,
		Beaverified:  res.Beaverified,
		Trimmed:      res.Trimmed,
		AudioSeconds: res.AudioSeconds,
		DownloadURL:  downloadPath(res.ID),
	}
	if h.store != nil {
		if u, err := h.store.URL(r.Context(), storage.Key(res.ID, storage.BeaverifiedFile)); err == nil {
			resp.DirectURL = u
		}
	}
	WriteJSON(w, http.StatusCreated, resp)
}

// writeProcessError maps pipeline errors to HTTP statuses.
func (h *UploadHandler) writeProcessError(w http.ResponseWriter, err error) {
	var apiErr *transcribe.APIError
	switch {
	case errors.Is(err, audio.ErrTooLarge):
		WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge, err.Error())
	case errors.Is(err, audio.ErrUnsupportedFormat):
		WriteErrorWithCode(w, http.StatusUnsupportedMediaType, ErrUnsupported, err.Error())
	case errors.Is(err, beaver.ErrUnknownMode):
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidMode, err.Error())
	case errors.As(err, &apiErr):
		WriteErrorDetail(w, http.StatusBadGateway, ErrUpstream,
			"transcription service returned an error", apiErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteErrorWithCode(w, http.StatusGatewayTimeout, ErrUpstream, "transcription timed out")
	default:
		h.log.Error().Err(err).Msg("beaverify failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "internal server error")
	}
}

func downloadPath(id string) string {
	return "/api/v1/transcripts/" + id + "/download"
}
