package handlers

import (
	"net/http"
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/catalog"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type serviceTypeResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	DurationMinutes int        `json:"durationMinutes"`
	Capacity        *int       `json:"capacity"`
	FixedStartTime  *string    `json:"fixedStartTime"`
	ProgramTier     *tier.Tier `json:"programTier"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toServiceType(st model.ServiceType) serviceTypeResponse {
	return serviceTypeResponse{
		ID:              st.ID,
		Name:            st.Name,
		Type:            string(st.Kind),
		DurationMinutes: st.DurationMinutes,
		Capacity:        st.Capacity,
		FixedStartTime:  st.FixedStartTime,
		ProgramTier:     st.MinimumTier,
		Active:          st.Active,
		CreatedAt:       st.CreatedAt,
	}
}

func (h *Handler) CreateServiceType(w http.ResponseWriter, r *http.Request) {
	var in catalog.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.CreatedBy = caller(r).UserID

	st, err := h.svc.ServiceTypes.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceType(st))
}

func (h *Handler) ListServiceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.ServiceTypes.ListActive(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]serviceTypeResponse, 0, len(types))
	for _, st := range types {
		out = append(out, toServiceType(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeactivateServiceType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "service type")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.ServiceTypes.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
