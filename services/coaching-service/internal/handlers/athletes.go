package handlers

import (
	"net/http"
	"time"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type athleteResponse struct {
	ID                 string     `json:"id"`
	GuardianID         string     `json:"guardianId"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	BirthDate          string     `json:"birthDate,omitempty"`
	Sport              string     `json:"sport,omitempty"`
	CurrentProgramTier *tier.Tier `json:"currentProgramTier"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toAthlete(a model.Athlete) athleteResponse {
	out := athleteResponse{
		ID:                 a.ID,
		GuardianID:         a.GuardianID,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		Sport:              a.Sport,
		CurrentProgramTier: a.CurrentProgramTier,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.BirthDate != nil {
		out.BirthDate = a.BirthDate.Format(time.DateOnly)
	}
	return out
}

type assignTierRequest struct {
	ProgramTier string `json:"programTier"`
}

// ListAthletes returns the calling guardian's athletes, or the athlete's own
// record for athlete tokens.
func (h *Handler) ListAthletes(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	var items []model.Athlete
	switch c.Role {
	case auth.RoleGuardian:
		var err error
		if items, err = h.svc.Roster.ListForGuardian(r.Context(), c.GuardianKey()); err != nil {
			h.writeError(w, r, err)
			return
		}
	case auth.RoleAthlete:
		a, err := h.svc.Roster.ResolveCaller(r.Context(), c, "")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items = []model.Athlete{a}
	default:
		guardianID := r.URL.Query().Get("guardianId")
		if guardianID == "" {
			h.writeError(w, r, model.NewValidationError("guardianId", "is required"))
			return
		}
		var err error
		if items, err = h.svc.Roster.ListForGuardian(r.Context(), guardianID); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	out := make([]athleteResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAthlete(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetAthlete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "athlete")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Roster.ResolveCaller(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAthlete(a))
}

func (h *Handler) AssignTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "athlete")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req assignTierRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := tier.Parse(req.ProgramTier)
	if err != nil {
		h.writeError(w, r, model.NewValidationError("programTier", "must be one of "+tier.Names()))
		return
	}
	a, err := h.svc.Roster.AssignTier(r.Context(), id, t, caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAthlete(a))
}
