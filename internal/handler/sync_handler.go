package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"edudrive/internal/auth"
	"edudrive/internal/service"
)

type SyncHandler struct {
	syncService *service.SyncService
	auth        *auth.Verifier
}

func NewSyncHandler(syncService *service.SyncService, verifier *auth.Verifier) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		auth:        verifier,
	}
}

// SyncSubject mirrors a subject's materials into the actor's drive. Safe to
// retry: already-mirrored materials are skipped.
func (h *SyncHandler) SyncSubject(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	subjectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeInvalid(w, "invalid subject id")
		return
	}

	result, err := h.syncService.SyncSubject(r.Context(), actor.ID, subjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
