package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"edudrive/internal/auth"
	"edudrive/internal/domain"
	"edudrive/internal/ratelimit"
	"edudrive/internal/service"
)

type FileHandler struct {
	fileService  *service.FileService
	trashService *service.TrashService
	auth         *auth.Verifier
	limiter      *ratelimit.Limiter
	maxFileSize  int64
}

func NewFileHandler(fileService *service.FileService, trashService *service.TrashService, verifier *auth.Verifier, limiter *ratelimit.Limiter, maxFileSize int64) *FileHandler {
	return &FileHandler{
		fileService:  fileService,
		trashService: trashService,
		auth:         verifier,
		limiter:      limiter,
		maxFileSize:  maxFileSize,
	}
}

// Upload accepts a multipart form with a "file" part and an optional
// "folder_id" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowRate(w, h.limiter, actor.ID, ratelimit.OpFileUpload) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeInvalid(w, "invalid multipart form")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeInvalid(w, "file part is required")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeError(w, fmt.Errorf("%w: failed to read upload: %v", domain.ErrIOFailure, err))
		return
	}

	var folderID *int64
	if raw := r.FormValue("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeInvalid(w, "invalid folder_id")
			return
		}
		folderID = &id
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	result, err := h.fileService.Upload(r.Context(), actor.ID, domain.FileUpload{
		Name:     header.Filename,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		FolderID: folderID,
		Data:     data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Download streams the blob. A single "bytes=start-end" Range header is
// honored with a 206 response; bandwidth is charged for the bytes served.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeInvalid(w, "invalid file uuid")
		return
	}

	start, end, ranged, err := parseRange(r.Header.Get("Range"))
	if err != nil {
		writeInvalid(w, "invalid range header")
		return
	}

	file, obj, err := h.fileService.Download(r.Context(), actor.ID, id, start, end, ranged)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", file.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Accept-Ranges", "bytes")

	if ranged {
		if end < 0 || end >= file.SizeBytes {
			end = file.SizeBytes - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, file.SizeBytes))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	}

	if _, err := io.Copy(w, obj); err != nil {
		// Headers already sent; just note the broken transfer.
		return
	}
}

// parseRange understands a single "bytes=start-end" range. end -1 with
// ranged false means a full read.
func parseRange(header string) (start, end int64, ranged bool, err error) {
	if header == "" {
		return 0, -1, false, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false, fmt.Errorf("unsupported range unit")
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false, fmt.Errorf("multiple ranges not supported")
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return 0, 0, false, fmt.Errorf("malformed range")
	}
	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false, fmt.Errorf("malformed range start")
	}

	end = int64(-1)
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || end < start {
			return 0, 0, false, fmt.Errorf("malformed range end")
		}
	}
	return start, end, true, nil
}

func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeInvalid(w, "invalid file uuid")
		return
	}

	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	file, err := h.fileService.RenameFile(r.Context(), actor.ID, id, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) Move(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeInvalid(w, "invalid file uuid")
		return
	}

	var req struct {
		FolderID *int64 `json:"folder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body")
		return
	}

	file, err := h.fileService.MoveFile(r.Context(), actor.ID, id, req.FolderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Delete soft-deletes the file into the trash.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.VerifyToken(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowRate(w, h.limiter, actor.ID, ratelimit.OpFileDelete) {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeInvalid(w, "invalid file uuid")
		return
	}

	if err := h.trashService.DeleteFile(r.Context(), actor.ID, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "trashed"})
}
