package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/beaverscribe/internal/ingest"
)

type HealthResponse struct {
	Status        string                `json:"status"`
	Version       string                `json:"version"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Checks        map[string]string     `json:"checks"`
	Provider      string                `json:"provider"`
	Model         string                `json:"model,omitempty"`
	TrimStrategy  string                `json:"trim_strategy"`
	Storage       string                `json:"storage"`
	Inbox         *ingest.WatcherStatus `json:"inbox,omitempty"`
	Queue         *ingest.QueueStats    `json:"queue,omitempty"`
}

// Pinger reports database reachability. *database.DB satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthInfo is the static part of the health response plus the optional
// collaborators that are probed on each request.
type HealthInfo struct {
	Version      string
	StartTime    time.Time
	Provider     string
	Model        string
	TrimStrategy string
	Storage      string
	DB           Pinger               // nil = history disabled
	Watcher      *ingest.FileWatcher // nil = no inbox
}

type HealthHandler struct {
	info HealthInfo
}

func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	// History is optional; a broken database degrades but does not stop uploads.
	if h.info.DB != nil {
		if err := h.info.DB.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.info.Version,
		UptimeSeconds: int64(time.Since(h.info.StartTime).Seconds()),
		Checks:        checks,
		Provider:      h.info.Provider,
		Model:         h.info.Model,
		TrimStrategy:  h.info.TrimStrategy,
		Storage:       h.info.Storage,
	}

	if h.info.Watcher != nil {
		ws := h.info.Watcher.Status()
		qs := h.info.Watcher.Pool().Stats()
		checks["inbox"] = ws.Status
		resp.Inbox = &ws
		resp.Queue = &qs
	} else {
		checks["inbox"] = "not_configured"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
