package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/observa-labs/traffic-sentinel/internal/models"
	"github.com/observa-labs/traffic-sentinel/internal/store"
	"github.com/observa-labs/traffic-sentinel/internal/stream"
	"github.com/observa-labs/traffic-sentinel/internal/utils"
)

// Handlers binds the HTTP surface to the detection service and its stores.
type Handlers struct {
	service *stream.Service
	store   *store.SQLiteStore
	// Stream is the WebSocket upgrade handler; exposed so the router can
	// mount it without the hub leaking into every handler.
	Stream  http.Handler
	clients interface{ ClientCount() int }
	logger  *slog.Logger
}

func NewHandlers(service *stream.Service, st *store.SQLiteStore, hub http.Handler, clients interface{ ClientCount() int }, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, store: st, Stream: hub, clients: clients, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestResponse struct {
	Accepted  bool              `json:"accepted"`
	Detection *models.Detection `json:"detection,omitempty"`
}

// IngestEvent accepts one request event and returns the detection when the
// window completed on this event.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var event models.RequestEvent
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid event payload: " + err.Error()})
		return
	}

	det, err := h.service.Ingest(r.Context(), event)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{Accepted: true, Detection: det})
}

type statusResponse struct {
	Domains       []stream.DomainStatus `json:"domains"`
	StreamClients int                   `json:"stream_clients"`
}

// Status reports per-domain pipeline state and connected stream clients.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Domains: h.service.Status()}
	if h.clients != nil {
		resp.StreamClients = h.clients.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAnomalies returns persisted detections, newest first. Filters: domain,
// severity, since, until (RFC3339), limit.
func (h *Handlers) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	q := store.Query{}
	params := r.URL.Query()

	if v := params.Get("domain"); v != "" {
		domain := models.Domain(v)
		if domain != models.DomainLive && domain != models.DomainSimulation {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "domain must be live or simulation"})
			return
		}
		q.Domain = domain
	}
	if v := params.Get("severity"); v != "" {
		sev := models.Severity(strings.ToUpper(v))
		if sev.Rank() == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown severity " + v})
			return
		}
		q.Severity = sev
	}
	if v := params.Get("since"); v != "" {
		t, err := utils.ParseRFC3339(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid since: " + err.Error()})
			return
		}
		q.Since = t
	}
	if v := params.Get("until"); v != "" {
		t, err := utils.ParseRFC3339(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid until: " + err.Error()})
			return
		}
		q.Until = t
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		q.Limit = limit
	}

	records, err := h.store.List(r.Context(), q)
	if err != nil {
		h.logger.Error("list anomalies failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history query failed"})
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": records, "count": len(records)})
}

// GetAnomaly returns one persisted detection by id.
func (h *Handlers) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "anomaly not found"})
			return
		}
		h.logger.Error("get anomaly failed", slog.String("id", id), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history query failed"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
