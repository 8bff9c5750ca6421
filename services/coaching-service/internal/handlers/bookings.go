package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/booking"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

type createBookingRequest struct {
	ServiceTypeID string `json:"serviceTypeId"`
	AthleteID     string `json:"athleteId"`
	StartsAt      string `json:"startsAt"`
	EndsAt        string `json:"endsAt"`
	Location      string `json:"location"`
	MeetingLink   string `json:"meetingLink"`
}

type bookingResponse struct {
	ID            string    `json:"id"`
	ServiceTypeID string    `json:"serviceTypeId"`
	AthleteID     string    `json:"athleteId"`
	GuardianID    string    `json:"guardianId"`
	Type          string    `json:"type"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	Status        string    `json:"status"`
	Location      string    `json:"location,omitempty"`
	MeetingLink   string    `json:"meetingLink,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toBooking(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		ServiceTypeID: b.ServiceTypeID,
		AthleteID:     b.AthleteID,
		GuardianID:    b.GuardianID,
		Type:          string(b.Kind),
		StartsAt:      b.StartsAt,
		EndsAt:        b.EndsAt,
		Status:        string(b.Status),
		Location:      b.Location,
		MeetingLink:   b.MeetingLink,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toBookings(items []model.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBooking(b))
	}
	return out
}

// CreateBooking books a slot for the athlete the caller acts for. The
// guardian on the booking is always the athlete's guardian.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	serviceTypeID, err := requiredID("serviceTypeId", req.ServiceTypeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	athleteID, err := optionalID("athleteId", req.AthleteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := parseTime("startsAt", req.StartsAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseTime("endsAt", req.EndsAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c := caller(r)
	athlete, err := h.svc.Roster.ResolveCaller(r.Context(), c, athleteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	b, err := h.svc.Bookings.Create(r.Context(), booking.CreateInput{
		ServiceTypeID: serviceTypeID,
		AthleteID:     athlete.ID,
		GuardianID:    athlete.GuardianID,
		StartsAt:      start,
		EndsAt:        end,
		CreatedBy:     c.UserID,
		Location:      strings.TrimSpace(req.Location),
		MeetingLink:   strings.TrimSpace(req.MeetingLink),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBooking(b))
}

// ListBookings returns the guardian's bookings. Athletes see only their own
// and staff name the guardian with ?guardianId.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	ctx := r.Context()

	switch {
	case c.Role == auth.RoleGuardian:
		items, err := h.svc.Bookings.ListForGuardian(ctx, c.GuardianKey())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookings(items))

	case c.Role == auth.RoleAthlete:
		athlete, err := h.svc.Roster.ResolveCaller(ctx, c, "")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items, err := h.svc.Bookings.ListForGuardian(ctx, athlete.GuardianID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		own := items[:0]
		for _, b := range items {
			if b.AthleteID == athlete.ID {
				own = append(own, b)
			}
		}
		writeJSON(w, http.StatusOK, toBookings(own))

	case c.Role.Staff():
		guardianID := strings.TrimSpace(r.URL.Query().Get("guardianId"))
		if guardianID == "" {
			h.writeError(w, r, model.NewValidationError("guardianId", "is required"))
			return
		}
		items, err := h.svc.Bookings.ListForGuardian(ctx, guardianID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookings(items))

	default:
		h.writeError(w, r, model.ErrForbidden)
	}
}

func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "booking")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.svc.Bookings.UpdateStatus(r.Context(), id, model.BookingStatus(strings.TrimSpace(req.Status)), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBooking(b))
}
