package files

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JaimeStill/vertex-agent/pkg/handlers"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
	"github.com/google/uuid"
)

// Handler provides HTTP endpoints for upload sessions.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
}

func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "files"),
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/files",
		Tags:        []string{"Files"},
		Description: "File uploads grouped by session",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/upload", Handler: h.Upload, OpenAPI: Spec.Upload},
			{Method: "DELETE", Pattern: "/sessions/{session}", Handler: h.DeleteSession, OpenAPI: Spec.DeleteSession},
			// ServeMux cannot order /sessions/{session} against /{id}/url,
			// so one pattern serves all three lookups.
			{Method: "GET", Pattern: "/{key}/{leaf}", Handler: h.Lookup},
			{Method: "GET", Pattern: "/sessions/{session}", OpenAPI: Spec.Session},
			{Method: "GET", Pattern: "/{id}/url", OpenAPI: Spec.URL},
			{Method: "GET", Pattern: "/{id}/content", OpenAPI: Spec.Content},
		},
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["files"]
	uploads := make([]Upload, 0, len(parts))
	for _, part := range parts {
		data, err := readPart(part)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		uploads = append(uploads, Upload{
			Filename:    part.Filename,
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result, err := h.sys.Upload(r.Context(), r.FormValue("session_id"), uploads)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// Lookup routes GET /files/sessions/{session}, /files/{id}/url and
// /files/{id}/content.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	key, leaf := r.PathValue("key"), r.PathValue("leaf")
	if key == "sessions" {
		r.SetPathValue("session", leaf)
		h.Session(w, r)
		return
	}

	r.SetPathValue("id", key)
	switch leaf {
	case "url":
		h.URL(w, r)
	case "content":
		h.Content(w, r)
	default:
		handlers.RespondError(w, h.logger, http.StatusNotFound, fmt.Errorf("%w: unknown resource %q", ErrNotFound, leaf))
	}
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.Session(r.Context(), r.PathValue("session"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.DeleteSession(r.Context(), r.PathValue("session"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) URL(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.URL(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Content streams the stored bytes. It backs the URLs issued by storage
// backends that cannot sign.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	f, data, err := h.sys.Content(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	file, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", part.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", part.Filename, err)
	}
	return data, nil
}
