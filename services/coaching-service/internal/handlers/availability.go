package handlers

import (
	"net/http"
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/availability"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

type openAvailabilityRequest struct {
	ServiceTypeID string `json:"serviceTypeId"`
	StartsAt      string `json:"startsAt"`
	EndsAt        string `json:"endsAt"`
}

type availabilityResponse struct {
	ID            string    `json:"id"`
	ServiceTypeID string    `json:"serviceTypeId"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
}

type slotResponse struct {
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Remaining *int      `json:"remaining"`
}

func toAvailability(b model.AvailabilityBlock) availabilityResponse {
	return availabilityResponse{ID: b.ID, ServiceTypeID: b.ServiceTypeID, StartsAt: b.StartsAt, EndsAt: b.EndsAt}
}

func (h *Handler) OpenAvailability(w http.ResponseWriter, r *http.Request) {
	var req openAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in.CreatedBy = caller(r).UserID

	block, err := h.svc.Availability.Open(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAvailability(block))
}

func (req openAvailabilityRequest) input() (availability.OpenInput, error) {
	id, err := requiredID("serviceTypeId", req.ServiceTypeID)
	if err != nil {
		return availability.OpenInput{}, err
	}
	start, err := parseTime("startsAt", req.StartsAt)
	if err != nil {
		return availability.OpenInput{}, err
	}
	end, err := parseTime("endsAt", req.EndsAt)
	if err != nil {
		return availability.OpenInput{}, err
	}
	return availability.OpenInput{ServiceTypeID: id, StartsAt: start, EndsAt: end}, nil
}

func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	serviceTypeID, from, to, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	blocks, err := h.svc.Availability.List(r.Context(), serviceTypeID, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]availabilityResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toAvailability(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	serviceTypeID, from, to, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slots, err := h.svc.Availability.OpenSlots(r.Context(), serviceTypeID, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{StartsAt: s.StartsAt, EndsAt: s.EndsAt, Remaining: s.Remaining})
	}
	writeJSON(w, http.StatusOK, out)
}
