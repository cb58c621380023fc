package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/saude-gov/regulacao/internal/admission/domain"
	"github.com/saude-gov/regulacao/internal/admission/workflow"
	"github.com/saude-gov/regulacao/internal/shared/auth"
	"github.com/saude-gov/regulacao/internal/shared/errors"
	"github.com/saude-gov/regulacao/internal/shared/types"
)

// Handler handles HTTP requests for admission records
type Handler struct {
	service *workflow.Service
}

// NewHandler creates a new admission API handler
func NewHandler(service *workflow.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for admission endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRecords)
	r.Post("/", h.CreateAdmission)
	r.Post("/observation", h.CreateObservation)

	r.Route("/{recordID}", func(r chi.Router) {
		r.Get("/", h.GetRecord)
		r.Delete("/", h.DeleteRecord)
		r.Post("/sections/{section}", h.SubmitSection)
		r.Post("/evolve", h.EvolveToAdmission)
		r.Post("/cancel-observation", h.CancelObservation)
		r.Get("/section-control", h.GetSectionControl)
		r.Get("/progress", h.GetProgress)
		r.Get("/events", h.GetEvents)
	})

	return r
}

// actorFromRequest resolves the acting user and sector. Outside the
// authenticated API (local development) a header fallback is accepted.
func actorFromRequest(r *http.Request) workflow.Actor {
	if user := auth.GetUser(r.Context()); user != nil {
		return workflow.Actor{ID: user.ID, Sector: domain.Sector(user.Sector)}
	}

	sector := domain.Sector(r.Header.Get("X-User-Sector"))
	if sector == "" {
		sector = domain.SectorNIR
	}
	id := types.ID(r.Header.Get("X-User-ID"))
	if id.IsZero() {
		id = types.NewID()
	}
	return workflow.Actor{ID: id, Sector: sector}
}

// CreateAdmission handles POST /records
func (h *Handler) CreateAdmission(w http.ResponseWriter, r *http.Request) {
	var input workflow.CreateAdmissionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	record, err := h.service.CreateAdmission(r.Context(), input, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// CreateObservation handles POST /records/observation
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	var input workflow.CreateObservationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	record, err := h.service.CreateObservation(r.Context(), input, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// GetRecord handles GET /records/{recordID}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// ListRecords handles GET /records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Search:    r.URL.Query().Get("search"),
		OrderBy:   r.URL.Query().Get("order_by"),
		OrderDesc: r.URL.Query().Get("order") == "desc",
	}

	if v := r.URL.Query().Get("admission_type"); v != "" {
		t := domain.AdmissionType(v)
		filter.AdmissionType = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.RecordStatus(v)
		filter.Status = &st
	}
	if v := r.URL.Query().Get("cancelled"); v != "" {
		cancelled := v == "true"
		filter.Cancelled = &cancelled
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	records, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// DeleteRecord handles DELETE /records/{recordID}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitSection handles POST /records/{recordID}/sections/{section}
func (h *Handler) SubmitSection(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	section := domain.Section(chi.URLParam(r, "section"))

	var input workflow.SectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	record, err := h.service.SubmitSection(r.Context(), id, section, input, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// EvolveToAdmission handles POST /records/{recordID}/evolve
func (h *Handler) EvolveToAdmission(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.EvolveToAdmission(r.Context(), id, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// CancelObservation handles POST /records/{recordID}/cancel-observation
func (h *Handler) CancelObservation(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	record, err := h.service.CancelObservation(r.Context(), id, body.Reason, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// GetSectionControl handles GET /records/{recordID}/section-control. The
// response is the current section-to-sector ownership map, recomputed from
// the record classification.
func (h *Handler) GetSectionControl(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record_id":       record.ID,
		"admission_type":  record.AdmissionType,
		"entry_type":      record.EffectiveEntryType(),
		"section_control": domain.SectionControlConfig(record),
	})
}

// GetProgress handles GET /records/{recordID}/progress: the full computed
// gate state of the record.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	ready := map[domain.Sector]bool{}
	for _, sector := range []domain.Sector{domain.SectorNIR, domain.SectorSurgery, domain.SectorBilling} {
		ready[sector] = domain.IsReadyForSector(record, sector)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record_id":   record.ID,
		"status":      record.Status,
		"phase":       domain.ComputePhase(record),
		"overall":     domain.ComputeOverallStatus(record),
		"next_sector": domain.NextAvailableSector(record),
		"ready":       ready,
		"progress":    domain.ComputeSectorProgress(record),
	})
}

// GetEvents handles GET /records/{recordID}/events
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record_id": record.ID,
		"events":    record.Events,
	})
}

func recordID(r *http.Request) (types.ID, error) {
	id, err := types.ParseID(chi.URLParam(r, "recordID"))
	if err != nil {
		return "", errors.BadRequest("invalid record ID")
	}
	return id, nil
}

// --- Response helpers ---

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
