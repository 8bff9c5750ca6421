// Package handlers exposes the coaching service over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/availability"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/booking"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/catalog"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/content"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/enrollment"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/roster"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type ServiceTypes interface {
	Create(ctx context.Context, in catalog.CreateInput) (model.ServiceType, error)
	ListActive(ctx context.Context) ([]model.ServiceType, error)
	Deactivate(ctx context.Context, id string) error
}

type Availability interface {
	Open(ctx context.Context, in availability.OpenInput) (model.AvailabilityBlock, error)
	List(ctx context.Context, serviceTypeID string, from, to time.Time) ([]model.AvailabilityBlock, error)
	OpenSlots(ctx context.Context, serviceTypeID string, from, to time.Time) ([]availability.Slot, error)
}

type Bookings interface {
	Create(ctx context.Context, in booking.CreateInput) (model.Booking, error)
	ListForGuardian(ctx context.Context, guardianID string) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus, actor string) (model.Booking, error)
}

type Enrollments interface {
	SubmitOnboarding(ctx context.Context, in enrollment.OnboardingInput) (enrollment.OnboardingResult, error)
	Assign(ctx context.Context, in enrollment.AssignInput) (model.Enrollment, bool, error)
	UpdateStatus(ctx context.Context, id string, status model.EnrollmentStatus, actor string) (model.Enrollment, error)
	ListForAthlete(ctx context.Context, athleteID string) ([]model.Enrollment, error)
}

type Content interface {
	Visible(ctx context.Context, surface model.Surface, athleteTier *tier.Tier) ([]model.Content, error)
	VisibleForAthlete(ctx context.Context, surface model.Surface, athleteID string) ([]model.Content, error)
	Create(ctx context.Context, in content.CreateInput) (model.Content, error)
}

type Roster interface {
	Get(ctx context.Context, id string) (model.Athlete, error)
	ListForGuardian(ctx context.Context, guardianID string) ([]model.Athlete, error)
	AssignTier(ctx context.Context, athleteID string, t tier.Tier, actor string) (model.Athlete, error)
	ResolveCaller(ctx context.Context, c roster.Caller, requestedAthleteID string) (model.Athlete, error)
}

type Services struct {
	ServiceTypes ServiceTypes
	Availability Availability
	Bookings     Bookings
	Enrollments  Enrollments
	Content      Content
	Roster       Roster
}

type Handler struct {
	svc    Services
	logger *slog.Logger
}

func New(svc Services, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the API under /api/v1. authn verifies the bearer token and
// stores claims in the request context.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	staff := auth.RequireRole(auth.RoleCoach, auth.RoleAdmin)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)

		r.Route("/service-types", func(r chi.Router) {
			r.Get("/", h.ListServiceTypes)
			r.With(staff).Post("/", h.CreateServiceType)
			r.With(staff).Delete("/{id}", h.DeactivateServiceType)
		})

		r.Route("/availability", func(r chi.Router) {
			r.Get("/", h.ListAvailability)
			r.Get("/slots", h.ListSlots)
			r.With(staff).Post("/", h.OpenAvailability)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.With(staff).Patch("/{id}/status", h.UpdateBookingStatus)
		})

		r.With(auth.RequireRole(auth.RoleGuardian)).Post("/onboarding", h.SubmitOnboarding)

		r.Route("/enrollments", func(r chi.Router) {
			r.Use(staff)
			r.Post("/", h.AssignEnrollment)
			r.Patch("/{id}/status", h.UpdateEnrollmentStatus)
		})

		r.Route("/athletes", func(r chi.Router) {
			r.Get("/", h.ListAthletes)
			r.Get("/{id}", h.GetAthlete)
			r.Get("/{id}/enrollments", h.ListEnrollments)
			r.With(staff).Put("/{id}/tier", h.AssignTier)
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/", h.ListContent)
			r.With(staff).Post("/", h.CreateContent)
		})
	})
	return r
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain errors to HTTP responses. Anything unrecognised is
// logged and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: model.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, model.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidSchedule):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrCapacityExceeded):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrDuplicateEnrollment):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrTierRestricted):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewValidationError("body", "must be a valid JSON object")
	}
	return nil
}

func caller(r *http.Request) roster.Caller {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return roster.Caller{}
	}
	return roster.CallerFromClaims(claims)
}

// pathID reads a uuid path parameter. Malformed ids cannot exist, so they
// are reported as not found.
func pathID(r *http.Request, entity string) (string, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &model.NotFoundError{Entity: entity, ID: raw}
	}
	return id.String(), nil
}

// optionalID validates a uuid reference supplied in a body or query.
func optionalID(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", model.NewValidationError(field, "must be a UUID")
	}
	return id.String(), nil
}

func requiredID(field, raw string) (string, error) {
	id, err := optionalID(field, raw)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", model.NewValidationError(field, "is required")
	}
	return id, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseTime accepts RFC 3339 with any offset. Timestamps without an offset
// are read as UTC.
func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, model.NewValidationError(field, "is required")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.NewValidationError(field, "must be an RFC 3339 timestamp")
}

// parseRange reads from/to query parameters and the service type they apply to.
func parseRange(r *http.Request) (serviceTypeID string, from, to time.Time, err error) {
	q := r.URL.Query()
	if serviceTypeID, err = requiredID("serviceTypeId", q.Get("serviceTypeId")); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if from, err = parseTime("from", q.Get("from")); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if to, err = parseTime("to", q.Get("to")); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return serviceTypeID, from, to, nil
}

type statusRequest struct {
	Status string `json:"status"`
}
