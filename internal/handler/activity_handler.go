package handler

import (
	"net/http"
	"strconv"

	"edudrive/internal/auth"
	"edudrive/internal/domain"
	"edudrive/internal/ratelimit"
	"edudrive/internal/service"
)

type ActivityHandler struct {
	activityService *service.ActivityService
	auth            *auth.Verifier
	limiter         *ratelimit.Limiter
}

func NewActivityHandler(activityService *service.ActivityService, verifier *auth.Verifier, limiter *ratelimit.Limiter) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		auth:            verifier,
		limiter:         limiter,
	}
}

// Query serves GET /activity?action=&page=&limit=.
func (h *ActivityHandler) Query(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowRate(w, h.limiter, actor.ID, ratelimit.OpSearch) {
		return
	}

	filter := domain.ActivityFilter{
		Action: domain.Action(r.URL.Query().Get("action")),
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			filter.Page = page
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	page, err := h.activityService.Query(r.Context(), actor.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if page.Activities == nil {
		page.Activities = []domain.Activity{}
	}

	writeJSON(w, http.StatusOK, page)
}
