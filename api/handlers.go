/*
handlers.go - HTTP API handlers for the leave accounting engine

PURPOSE:
  Exposes the absence service via REST API. Handles HTTP request/response,
  JSON serialization, input validation, and delegates to domain logic.

ENDPOINTS:
  Absences:
    GET    /api/absences                      List (filterable by type,
                                              validated, q)
    POST   /api/absences                      Create absence (charges balance)
    GET    /api/absences/{id}                 Get one absence
    PUT    /api/absences/{id}                 Update descriptive fields
    PATCH  /api/absences/{id}/validate        Toggle admin validation
                                              (?validate=true|false)
    DELETE /api/absences/{id}                 Delete (restores balance)
    GET    /api/absences/{id}/ledger          Realized-delta history

  Personnel:
    GET    /api/personnel                     List personnel
    POST   /api/personnel                     Create personnel
    GET    /api/personnel/{personnelId}           Get one record
    GET    /api/personnel/{personnelId}/absences  Absences of one personnel
    GET    /api/personnel/{personnelId}/balance   Current leave balance
    GET    /api/personnel/{personnelId}/ledger    Realized-delta history

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator on the DTO)
  3. Call domain logic (service)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Domain errors map to JSON error bodies with appropriate HTTP status:
  - 400: Validation errors, malformed input
  - 404: Personnel or absence not found
  - 409: Insufficient balance, invalid state transitions
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ../leave/service.go: The domain logic behind every handler
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/hrcore/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *leave.Service
	Log      *logrus.Logger
	validate *validator.Validate
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *leave.Service, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Service:  svc,
		Log:      log,
		validate: validator.New(),
	}
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

// ListAbsences returns all absences, optionally filtered.
// GET /api/absences?type=&validated=&q=
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	var f leave.Filter

	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := leave.ParseAbsenceType(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid absence type", err)
			return
		}
		f.Type = &t
	}
	if raw := r.URL.Query().Get("validated"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid validated flag", err)
			return
		}
		f.Validated = &v
	}
	f.Query = r.URL.Query().Get("q")

	absences, err := h.Service.ListAbsences(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, "Failed to list absences", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTOs(absences))
}

// CreateAbsence creates an absence and applies its balance effect.
// POST /api/absences
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req AbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid absence request", err)
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Service.CreateAbsence(r.Context(), draft)
	if err != nil {
		h.writeDomainError(w, "Failed to create absence", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbsenceDTO(created))
}

// GetAbsence returns a single absence.
// GET /api/absences/{id}
func (h *Handler) GetAbsence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.absenceID(w, r)
	if !ok {
		return
	}

	a, err := h.Service.GetAbsence(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get absence", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

// UpdateAbsence replaces the descriptive fields of an absence.
// PUT /api/absences/{id}
func (h *Handler) UpdateAbsence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.absenceID(w, r)
	if !ok {
		return
	}

	var req AbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid absence request", err)
		return
	}

	updated, err := req.toDraft()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	updated.ID = id

	stored, err := h.Service.UpdateAbsence(r.Context(), updated)
	if err != nil {
		h.writeDomainError(w, "Failed to update absence", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(stored))
}

// SetValidation toggles the admin validation flag.
// PATCH /api/absences/{id}/validate?validate=true|false
func (h *Handler) SetValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.absenceID(w, r)
	if !ok {
		return
	}

	validate, err := strconv.ParseBool(r.URL.Query().Get("validate"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Query parameter 'validate' must be true or false", err)
		return
	}

	a, err := h.Service.SetValidation(r.Context(), id, validate)
	if err != nil {
		h.writeDomainError(w, "Failed to set validation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

// DeleteAbsence deletes an absence and restores its balance effects.
// DELETE /api/absences/{id}
func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.absenceID(w, r)
	if !ok {
		return
	}

	existed, err := h.Service.DeleteAbsence(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to delete absence", err)
		return
	}
	if !existed {
		h.writeError(w, http.StatusNotFound, "Absence not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AbsenceLedger returns the realized-delta history for an absence.
// GET /api/absences/{id}/ledger
func (h *Handler) AbsenceLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := h.absenceID(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.LedgerEntries(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get ledger entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// PERSONNEL HANDLERS
// =============================================================================

// ListPersonnel returns all personnel records.
// GET /api/personnel
func (h *Handler) ListPersonnel(w http.ResponseWriter, r *http.Request) {
	personnel, err := h.Service.ListPersonnel(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list personnel", err)
		return
	}

	dtos := make([]PersonnelDTO, len(personnel))
	for i, p := range personnel {
		dtos[i] = toPersonnelDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePersonnel creates a personnel record.
// POST /api/personnel
func (h *Handler) CreatePersonnel(w http.ResponseWriter, r *http.Request) {
	var req PersonnelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid personnel request", err)
		return
	}

	p := leave.Personnel{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		EmploymentType: req.EmploymentType,
		Active:         true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.LeaveBalance != "" {
		balance, err := leave.ParseBalance(req.LeaveBalance)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid leave balance", err)
			return
		}
		p.LeaveBalance = balance
	}

	created, err := h.Service.CreatePersonnel(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, "Failed to create personnel", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonnelDTO(created))
}

// GetPersonnel returns a single personnel record.
// GET /api/personnel/{personnelId}
func (h *Handler) GetPersonnel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personnelID(w, r)
	if !ok {
		return
	}

	p, err := h.Service.GetPersonnel(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get personnel", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonnelDTO(p))
}

// PersonnelAbsences returns all absences of a personnel.
// GET /api/personnel/{personnelId}/absences
func (h *Handler) PersonnelAbsences(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personnelID(w, r)
	if !ok {
		return
	}

	absences, err := h.Service.ListByPersonnel(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list absences", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTOs(absences))
}

// PersonnelBalance returns the current leave balance of a personnel.
// GET /api/personnel/{personnelId}/balance
func (h *Handler) PersonnelBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personnelID(w, r)
	if !ok {
		return
	}

	balance, err := h.Service.Balance(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		PersonnelID:  int64(id),
		LeaveBalance: balance.String(),
	})
}

// PersonnelLedger returns the realized-delta history of a personnel.
// GET /api/personnel/{personnelId}/ledger
func (h *Handler) PersonnelLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personnelID(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.LedgerEntriesByPersonnel(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get ledger entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) absenceID(w http.ResponseWriter, r *http.Request) (leave.AbsenceID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid absence id", err)
		return 0, false
	}
	return leave.AbsenceID(id), true
}

func (h *Handler) personnelID(w http.ResponseWriter, r *http.Request) (leave.PersonnelID, bool) {
	raw := chi.URLParam(r, "personnelId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid personnel id", err)
		return 0, false
	}
	return leave.PersonnelID(id), true
}

// writeDomainError maps a domain error to its HTTP status. The domain's
// message carries through verbatim: the client is the one who has to act
// on "insufficient balance", not a log reader.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case leave.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, leave.ErrValidation):
		h.writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, leave.ErrInsufficientBalance), errors.Is(err, leave.ErrInvalidState):
		h.writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.WithError(err).Error(message)
		h.writeError(w, http.StatusInternalServerError, message, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
