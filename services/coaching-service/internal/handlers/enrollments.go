package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/enrollment"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type onboardingRequest struct {
	Athlete struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		BirthDate string `json:"birthDate"`
		Sport     string `json:"sport"`
	} `json:"athlete"`
	DesiredProgramType tier.Tier `json:"desiredProgramType"`
}

type assignRequest struct {
	AthleteID   string    `json:"athleteId"`
	ProgramType tier.Tier `json:"programType"`
	TemplateID  string    `json:"templateId"`
}

type enrollmentResponse struct {
	ID          string    `json:"id"`
	AthleteID   string    `json:"athleteId"`
	ProgramType tier.Tier `json:"programType"`
	Status      string    `json:"status"`
	AssignedBy  string    `json:"assignedBy,omitempty"`
	TemplateID  string    `json:"templateId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type onboardingResponse struct {
	Athlete    athleteResponse    `json:"athlete"`
	Enrollment enrollmentResponse `json:"enrollment"`
}

func toEnrollment(e model.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:          e.ID,
		AthleteID:   e.AthleteID,
		ProgramType: e.ProgramType,
		Status:      string(e.Status),
		AssignedBy:  e.AssignedBy,
		TemplateID:  e.TemplateID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (h *Handler) SubmitOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	var birthDate *time.Time
	if raw := strings.TrimSpace(req.Athlete.BirthDate); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.writeError(w, r, model.NewValidationError("athlete.birthDate", "must be a date (YYYY-MM-DD)"))
			return
		}
		birthDate = &d
	}

	c := caller(r)
	res, err := h.svc.Enrollments.SubmitOnboarding(r.Context(), enrollment.OnboardingInput{
		GuardianID: c.GuardianKey(),
		UserID:     c.UserID,
		Athlete: enrollment.AthleteProfile{
			FirstName: req.Athlete.FirstName,
			LastName:  req.Athlete.LastName,
			BirthDate: birthDate,
			Sport:     req.Athlete.Sport,
		},
		DesiredProgramType: req.DesiredProgramType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, onboardingResponse{
		Athlete:    toAthlete(res.Athlete),
		Enrollment: toEnrollment(res.Enrollment),
	})
}

// AssignEnrollment answers 201 for a new enrollment and 200 with the stored
// record when the athlete already holds the program type.
func (h *Handler) AssignEnrollment(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	athleteID, err := requiredID("athleteId", req.AthleteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, created, err := h.svc.Enrollments.Assign(r.Context(), enrollment.AssignInput{
		AthleteID:   athleteID,
		ProgramType: req.ProgramType,
		AssignedBy:  caller(r).UserID,
		TemplateID:  strings.TrimSpace(req.TemplateID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, toEnrollment(e))
}

func (h *Handler) UpdateEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "enrollment")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.svc.Enrollments.UpdateStatus(r.Context(), id, model.EnrollmentStatus(strings.TrimSpace(req.Status)), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollment(e))
}

func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "athlete")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	athlete, err := h.svc.Roster.ResolveCaller(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.svc.Enrollments.ListForAthlete(r.Context(), athlete.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]enrollmentResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEnrollment(e))
	}
	writeJSON(w, http.StatusOK, out)
}
