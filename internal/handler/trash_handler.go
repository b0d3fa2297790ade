package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"edudrive/internal/auth"
	"edudrive/internal/domain"
	"edudrive/internal/service"
)

type TrashHandler struct {
	trashService *service.TrashService
	auth         *auth.Verifier
}

func NewTrashHandler(trashService *service.TrashService, verifier *auth.Verifier) *TrashHandler {
	return &TrashHandler{
		trashService: trashService,
		auth:         verifier,
	}
}

func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.trashService.List(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.TrashItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// trashTarget identifies one trash entry: a folder id or a file uuid plus
// its type.
type trashTarget struct {
	ID   string `json:"id"`
	Type string `json:"type"` // file | folder
}

func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req trashTarget
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	switch req.Type {
	case "folder":
		folderID, err := strconv.ParseInt(req.ID, 10, 64)
		if err != nil {
			writeInvalid(w, "invalid folder id")
			return
		}
		count, err := h.trashService.RestoreFolder(r.Context(), actor.ID, folderID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"folders_restored": count})
	case "file":
		fileID, err := uuid.Parse(req.ID)
		if err != nil {
			writeInvalid(w, "invalid file uuid")
			return
		}
		if err := h.trashService.RestoreFile(r.Context(), actor.ID, fileID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
	default:
		writeInvalid(w, "type must be file or folder")
	}
}

// Purge permanently deletes one trash entry, releasing its quota.
func (h *TrashHandler) Purge(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req trashTarget
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	switch req.Type {
	case "folder":
		folderID, err := strconv.ParseInt(req.ID, 10, 64)
		if err != nil {
			writeInvalid(w, "invalid folder id")
			return
		}
		if err := h.trashService.PurgeFolder(r.Context(), actor.ID, folderID); err != nil {
			writeError(w, err)
			return
		}
	case "file":
		fileID, err := uuid.Parse(req.ID)
		if err != nil {
			writeInvalid(w, "invalid file uuid")
			return
		}
		if err := h.trashService.PurgeFile(r.Context(), actor.ID, fileID); err != nil {
			writeError(w, err)
			return
		}
	default:
		writeInvalid(w, "type must be file or folder")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (h *TrashHandler) Empty(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	purged, err := h.trashService.EmptyTrash(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}
