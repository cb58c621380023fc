package worklist

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saude-gov/regulacao/internal/admission/domain"
	"github.com/saude-gov/regulacao/internal/shared/errors"
)

// Handler handles HTTP requests for sector worklists
type Handler struct {
	service *Service
}

// NewHandler creates a new worklist API handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for worklist endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/sectors/{sector}", h.GetSectorWorklist)
	r.Get("/observation", h.GetObservationQueue)
	r.Get("/dashboard", h.GetDashboard)

	return r
}

// GetSectorWorklist handles GET /worklists/sectors/{sector}
func (h *Handler) GetSectorWorklist(w http.ResponseWriter, r *http.Request) {
	sector := domain.Sector(chi.URLParam(r, "sector"))
	switch sector {
	case domain.SectorNIR, domain.SectorSurgery, domain.SectorBilling:
	default:
		writeError(w, errors.BadRequest("unknown sector: "+string(sector)))
		return
	}

	wl, err := h.service.ForSector(r.Context(), sector)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wl)
}

// GetObservationQueue handles GET /worklists/observation
func (h *Handler) GetObservationQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ObservationQueue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// GetDashboard handles GET /worklists/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	} else {
		appErr = errors.Internal(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"error": appErr,
	})
}
