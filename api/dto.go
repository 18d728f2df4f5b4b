/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; the handler runs
  the validator before touching the service, so malformed payloads never
  reach the domain. The domain re-validates its own invariants regardless.

SEE ALSO:
  - handlers.go: Uses these types
  - ../leave/types.go: The domain model these map to
*/
package api

import (
	"time"

	"github.com/hrcore/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AbsenceRequest is the request body for creating or updating an absence.
type AbsenceRequest struct {
	PersonnelID    int64  `json:"personnel_id" validate:"required,gt=0"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Type           string `json:"type" validate:"required,oneof=ANNUAL_LEAVE SICK EXCEPTIONAL UNJUSTIFIED"`
	Reason         string `json:"reason" validate:"max=500"`
	ProofReference string `json:"proof_reference" validate:"max=200"`
}

// toDraft converts the request to a domain absence. Date formats are already
// checked by the validator; parse errors here would be programming errors.
func (r AbsenceRequest) toDraft() (leave.Absence, error) {
	start, err := leave.ParseDate(r.StartDate)
	if err != nil {
		return leave.Absence{}, err
	}
	end, err := leave.ParseDate(r.EndDate)
	if err != nil {
		return leave.Absence{}, err
	}
	return leave.Absence{
		PersonnelID:    leave.PersonnelID(r.PersonnelID),
		Start:          start,
		End:            end,
		Type:           leave.AbsenceType(r.Type),
		Reason:         r.Reason,
		ProofReference: r.ProofReference,
	}, nil
}

// PersonnelRequest is the request body for creating a personnel record.
type PersonnelRequest struct {
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	EmploymentType string `json:"employment_type" validate:"max=50"`
	LeaveBalance   string `json:"leave_balance" validate:"omitempty,numeric"`
	Active         *bool  `json:"active"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AbsenceDTO represents an absence in API responses.
type AbsenceDTO struct {
	ID             int64  `json:"id"`
	PersonnelID    int64  `json:"personnel_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Type           string `json:"type"`
	DurationDays   int    `json:"duration_days"`
	Reason         string `json:"reason,omitempty"`
	ProofReference string `json:"proof_reference,omitempty"`
	AdminValidated bool   `json:"admin_validated"`
	Justified      bool   `json:"justified"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toAbsenceDTO(a leave.Absence) AbsenceDTO {
	return AbsenceDTO{
		ID:             int64(a.ID),
		PersonnelID:    int64(a.PersonnelID),
		StartDate:      a.Start.String(),
		EndDate:        a.End.String(),
		Type:           string(a.Type),
		DurationDays:   a.Duration(),
		Reason:         a.Reason,
		ProofReference: a.ProofReference,
		AdminValidated: a.AdminValidated,
		Justified:      a.Justified(),
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
}

func toAbsenceDTOs(absences []leave.Absence) []AbsenceDTO {
	dtos := make([]AbsenceDTO, len(absences))
	for i, a := range absences {
		dtos[i] = toAbsenceDTO(a)
	}
	return dtos
}

// PersonnelDTO represents a personnel record in API responses.
type PersonnelDTO struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmploymentType string `json:"employment_type,omitempty"`
	LeaveBalance   string `json:"leave_balance"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at"`
}

func toPersonnelDTO(p leave.Personnel) PersonnelDTO {
	return PersonnelDTO{
		ID:             int64(p.ID),
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		EmploymentType: p.EmploymentType,
		LeaveBalance:   p.LeaveBalance.String(),
		Active:         p.Active,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

// BalanceDTO is the balance summary for a personnel.
type BalanceDTO struct {
	PersonnelID  int64  `json:"personnel_id"`
	LeaveBalance string `json:"leave_balance"`
}

// EntryDTO represents one realized balance delta in API responses.
type EntryDTO struct {
	ID          string `json:"id"`
	AbsenceID   int64  `json:"absence_id"`
	PersonnelID int64  `json:"personnel_id"`
	Kind        string `json:"kind"`
	Requested   string `json:"requested"`
	Applied     string `json:"applied"`
	Reverses    string `json:"reverses,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toEntryDTOs(entries []leave.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			ID:          e.ID,
			AbsenceID:   int64(e.AbsenceID),
			PersonnelID: int64(e.PersonnelID),
			Kind:        string(e.Kind),
			Requested:   e.Requested.String(),
			Applied:     e.Applied.String(),
			Reverses:    e.Reverses,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
