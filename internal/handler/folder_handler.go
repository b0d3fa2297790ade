package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"edudrive/internal/auth"
	"edudrive/internal/ratelimit"
	"edudrive/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
	trashService  *service.TrashService
	auth          *auth.Verifier
	limiter       *ratelimit.Limiter
}

func NewFolderHandler(folderService *service.FolderService, trashService *service.TrashService, verifier *auth.Verifier, limiter *ratelimit.Limiter) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		trashService:  trashService,
		auth:          verifier,
		limiter:       limiter,
	}
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowRate(w, h.limiter, actor.ID, ratelimit.OpFolderCreate) {
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), actor.ID, req.Name, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// GetContent serves both GET /folders (root) and GET /folders/{id}.
func (h *FolderHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var folderID *int64
	if raw := chi.URLParam(r, "id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeInvalid(w, "invalid folder id")
			return
		}
		folderID = &id
	}

	content, err := h.folderService.GetContent(r.Context(), actor.ID, folderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, content)
}

func (h *FolderHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	folders, err := h.folderService.GetStructure(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, folders)
}

func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeInvalid(w, "invalid folder id")
		return
	}

	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	folder, err := h.folderService.RenameFolder(r.Context(), actor.ID, folderID, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeInvalid(w, "invalid folder id")
		return
	}

	var req struct {
		NewParentID *int64 `json:"new_parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	folder, err := h.folderService.MoveFolder(r.Context(), actor.ID, folderID, req.NewParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolder soft-deletes the folder subtree into the trash.
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowRate(w, h.limiter, actor.ID, ratelimit.OpFileDelete) {
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeInvalid(w, "invalid folder id")
		return
	}

	count, err := h.trashService.DeleteFolder(r.Context(), actor.ID, folderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"folders_trashed": count})
}
