package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/content"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type contentResponse struct {
	ID          string     `json:"id"`
	Surface     string     `json:"surface"`
	ProgramTier *tier.Tier `json:"programTier"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	MediaURL    string     `json:"mediaUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toContent(c model.Content) contentResponse {
	return contentResponse{
		ID:          c.ID,
		Surface:     string(c.Surface),
		ProgramTier: c.ProgramTier,
		Title:       c.Title,
		Body:        c.Body,
		MediaURL:    c.MediaURL,
		CreatedAt:   c.CreatedAt,
	}
}

// ListContent filters a surface by the tier of the athlete the caller acts
// for. Staff without an athleteId see every item; guardians without one see
// what the lowest tier sees.
func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	surface := model.Surface(strings.TrimSpace(q.Get("surface")))
	if surface == "" {
		surface = model.SurfaceHome
	}
	athleteID, err := optionalID("athleteId", q.Get("athleteId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c := caller(r)
	ctx := r.Context()
	var items []model.Content
	switch {
	case c.Role.Staff() && athleteID == "":
		highest := tier.Highest()
		items, err = h.svc.Content.Visible(ctx, surface, &highest)
	case c.Role.Staff():
		items, err = h.svc.Content.VisibleForAthlete(ctx, surface, athleteID)
	case athleteID == "" && c.AthleteID == "":
		items, err = h.svc.Content.Visible(ctx, surface, nil)
	default:
		var a model.Athlete
		if a, err = h.svc.Roster.ResolveCaller(ctx, c, athleteID); err == nil {
			items, err = h.svc.Content.Visible(ctx, surface, a.CurrentProgramTier)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]contentResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toContent(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var in content.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.CreatedBy = caller(r).UserID
	c, err := h.svc.Content.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContent(c))
}
