package preview

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"edudrive/internal/auth"
	"edudrive/internal/service"
)

type Handler struct {
	previews    *Service
	fileService *service.FileService
	auth        *auth.Verifier
}

func NewHandler(previews *Service, fileService *service.FileService, verifier *auth.Verifier) *Handler {
	return &Handler{
		previews:    previews,
		fileService: fileService,
		auth:        verifier,
	}
}

// GetPreview serves the JPEG thumbnail for an owned file.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.GetFile(r.Context(), actor.ID, id)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	thumb, err := h.previews.GetOrGenerate(r.Context(), file)
	if err != nil {
		http.Error(w, "Preview unavailable", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(thumb)
}
