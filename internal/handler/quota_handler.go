package handler

import (
	"encoding/json"
	"net/http"

	"edudrive/internal/auth"
	"edudrive/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
	auth         *auth.Verifier
}

func NewQuotaHandler(quotaService *service.QuotaService, verifier *auth.Verifier) *QuotaHandler {
	return &QuotaHandler{
		quotaService: quotaService,
		auth:         verifier,
	}
}

func (h *QuotaHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *QuotaHandler) UpdateLimit(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		NewLimit int64 `json:"new_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}
	if req.NewLimit <= 0 {
		writeInvalid(w, "new_limit must be positive")
		return
	}

	if err := h.quotaService.UpdateStorageLimit(r.Context(), actor.ID, req.NewLimit); err != nil {
		writeError(w, err)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
