package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/datacove/exporttrack/internal/domain"
	"github.com/datacove/exporttrack/internal/tracker"
)

// ExportHandler serves the enriched export record lists and the follow-on
// actions to the presentation layer.
type ExportHandler struct {
	registry *tracker.Registry
	logger   *slog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(registry *tracker.Registry, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		registry: registry,
		logger:   logger,
	}
}

// RecordResponse is one enriched export record: the backend's raw fields
// plus every derived flag, evaluated at request time.
type RecordResponse struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Format      string     `json:"format"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	JobState    string     `json:"job_state"`
	Display     string     `json:"display_state"`
	Preparing   bool       `json:"preparing"`
	Ready       bool       `json:"ready"`
	Expired     bool       `json:"expired"`
	UpToDate    bool       `json:"up_to_date"`
	CanDownload bool       `json:"can_download"`
	CanReimport bool       `json:"can_reimport"`
	Busy        bool       `json:"busy"`
	ExpiresIn   string     `json:"expires_in,omitempty"`
}

// ListResponse is the enriched export history of one object.
type ListResponse struct {
	ObjectID  string           `json:"object_id"`
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
	Polling   bool             `json:"polling"`
	Halted    bool             `json:"halted"`
	LastError string           `json:"last_error,omitempty"`
	Exports   []RecordResponse `json:"exports"`
}

// CreateRequest is the request body for requesting a new export.
type CreateRequest struct {
	Format string `json:"format"`
}

// CreateResponse acknowledges a new export request.
type CreateResponse struct {
	RecordID string `json:"record_id"`
	Status   string `json:"status"`
}

// DownloadResponse carries the resolved download URL.
type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// ReimportResponse carries the identifier of the newly created object.
type ReimportResponse struct {
	ObjectID string `json:"object_id"`
}

// LinkResponse carries the share link for a ready export.
type LinkResponse struct {
	URL string `json:"url"`
}

// List handles GET /api/v1/objects/{objectID}/exports
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.track(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse(tr.Snapshot()))
}

// Refresh handles POST /api/v1/objects/{objectID}/exports/refresh
func (h *ExportHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.track(w, r)
	if !ok {
		return
	}

	if err := tr.Refresh(r.Context()); err != nil {
		h.logger.Warn("refresh failed", "object_id", tr.ObjectID(), "error", err)
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse(tr.Snapshot()))
}

// Create handles POST /api/v1/objects/{objectID}/exports
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.track(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Format == "" {
		h.writeError(w, http.StatusBadRequest, "format is required")
		return
	}

	recordID, err := tr.RequestExport(r.Context(), req.Format)
	if err != nil {
		h.writeActionError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, CreateResponse{
		RecordID: recordID.String(),
		Status:   string(domain.JobStatePreparing),
	})
}

// Download handles POST /api/v1/objects/{objectID}/exports/{recordID}/download
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.track(w, r)
	if !ok {
		return
	}

	recordID := domain.RecordID(chi.URLParam(r, "recordID"))
	url, err := tr.Download(r.Context(), recordID)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DownloadResponse{DownloadURL: url})
}

// Reimport handles POST /api/v1/objects/{objectID}/exports/{recordID}/reimport
func (h *ExportHandler) Reimport(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.track(w, r)
	if !ok {
		return
	}

	recordID := domain.RecordID(chi.URLParam(r, "recordID"))
	objectID, err := tr.Reimport(r.Context(), recordID)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ReimportResponse{ObjectID: objectID.String()})
}

// Link handles GET /api/v1/objects/{objectID}/exports/{recordID}/link
func (h *ExportHandler) Link(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.track(w, r)
	if !ok {
		return
	}

	recordID := domain.RecordID(chi.URLParam(r, "recordID"))
	url, err := tr.CopyLink(recordID)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LinkResponse{URL: url})
}

// track resolves the tracker for the request's object, writing the error
// response itself when it cannot.
func (h *ExportHandler) track(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, bool) {
	objectID := chi.URLParam(r, "objectID")
	if objectID == "" {
		h.writeError(w, http.StatusBadRequest, "missing object ID")
		return nil, false
	}

	tr, err := h.registry.Track(domain.ObjectID(objectID))
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "tracker shutting down")
		return nil, false
	}
	return tr, true
}

func listResponse(snap tracker.Snapshot) ListResponse {
	resp := ListResponse{
		ObjectID:  snap.ObjectID.String(),
		Polling:   snap.Polling,
		Halted:    snap.Halted,
		LastError: snap.LastError,
		Exports:   make([]RecordResponse, 0, len(snap.Records)),
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt
		resp.FetchedAt = &t
	}

	for _, rec := range snap.Records {
		resp.Exports = append(resp.Exports, RecordResponse{
			ID:          rec.Record.ID.String(),
			CreatedAt:   rec.Record.CreatedAt,
			Format:      rec.Record.Format,
			ExpiresAt:   rec.Record.ExpiresAt,
			JobState:    string(rec.Record.JobState),
			Display:     string(rec.State.Display),
			Preparing:   rec.State.Preparing,
			Ready:       rec.State.Ready,
			Expired:     rec.State.Expired,
			UpToDate:    rec.State.UpToDate,
			CanDownload: rec.State.CanDownload,
			CanReimport: rec.State.CanReimport,
			Busy:        rec.Busy,
			ExpiresIn:   rec.State.ExpiresIn,
		})
	}
	return resp
}

// writeActionError maps domain errors onto HTTP status codes. A gate
// violation maps to 409: the caller acted on a stale view of the record.
func (h *ExportHandler) writeActionError(w http.ResponseWriter, err error) {
	var pErr *domain.PreconditionError
	var tErr *domain.TransportError

	switch {
	case errors.Is(err, domain.ErrRecordNotFound) || errors.Is(err, domain.ErrObjectNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &pErr):
		h.writeError(w, http.StatusConflict, pErr.Error())
	case errors.As(err, &tErr):
		h.writeError(w, http.StatusBadGateway, tErr.Error())
	case errors.Is(err, domain.ErrTrackerStopped):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("unhandled action error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *ExportHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ExportHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
