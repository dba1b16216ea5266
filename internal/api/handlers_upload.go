// handlers_upload.go - File upload operation handlers
package api

import (
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/route-plotter/backend/internal/models"
	"github.com/route-plotter/backend/internal/storage"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store        storage.Store
	allowedTypes []string
}

// NewUploadHandler creates a new upload handler instance. allowedTypes is the
// comma-separated extension list from config (e.g. ".csv,.txt").
func NewUploadHandler(store storage.Store, allowedTypes string) UploadHandler {
	var exts []string
	for _, ext := range strings.Split(allowedTypes, ",") {
		if e := strings.ToLower(strings.TrimSpace(ext)); e != "" {
			exts = append(exts, e)
		}
	}
	return &UploadHandlerImpl{
		store:        store,
		allowedTypes: exts,
	}
}

// HandleUploadFile accepts a raw CSV upload (multipart/form-data)
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	if !h.extensionAllowed(file.Filename) {
		return NewBadRequestError("file type not allowed", nil)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadJSON accepts a file as base64 JSON and saves it to storage
func (h *UploadHandlerImpl) HandleUploadJSON(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	if !h.extensionAllowed(req.Name) {
		return NewBadRequestError("file type not allowed", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns a list of recently uploaded address files
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(50)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	// Filter to allowed address files
	recent := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		if h.extensionAllowed(f.Name) {
			recent = append(recent, f)
		}
	}
	if len(recent) > 20 {
		recent = recent[:20]
	}

	return c.JSON(http.StatusOK, recent)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

func (h *UploadHandlerImpl) extensionAllowed(name string) bool {
	if len(h.allowedTypes) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range h.allowedTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
