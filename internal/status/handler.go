package status

import (
	"errors"
	"net/http"
	"time"

	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// snapshotHistoryWindow is how far back the snapshot endpoint reaches.
const snapshotHistoryWindow = 4 * time.Hour

// Handler exposes read-only status endpoints.
type Handler struct {
	repo Repository
}

// NewHandler creates a new status handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers the read-only status routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/services/{serviceID}", h.GetService)
	r.Get("/services/{serviceID}/snapshots", h.ListSnapshots)
}

// ListServices returns all services with their current overall status.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.repo.ListServices(r.Context())
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to list services")
		return
	}
	httputil.Success(w, http.StatusOK, services)
}

// GetService returns one service by id.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.repo.GetService(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			httputil.Error(w, http.StatusNotFound, "service not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to get service")
		return
	}
	httputil.Success(w, http.StatusOK, svc)
}

// ListSnapshots returns the service's snapshots from the recent history
// window, oldest first.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-snapshotHistoryWindow)
	snaps, err := h.repo.RecentSnapshots(r.Context(), chi.URLParam(r, "serviceID"), since)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	httputil.Success(w, http.StatusOK, snaps)
}
