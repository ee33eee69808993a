package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dukerupert/tenantry/internal/chore"
	"github.com/dukerupert/tenantry/internal/export"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/storage"
	"github.com/dukerupert/tenantry/internal/store"
)

const (
	maxPhotoSize = 10 << 20
	photoFolder  = "photos"
)

var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

type ChoreHandler struct {
	choreStore *store.ChoreStore
	unitStore  *store.UnitStore
	service    *chore.Service
	files      storage.Store
	notifier   Notifier
	logger     *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, us *store.UnitStore, svc *chore.Service, files storage.Store, n Notifier, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, unitStore: us, service: svc, files: files, notifier: n, logger: logger}
}

// --- Definitions (admin) ---

type choreRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
	SortOrder   int    `json:"sort_order"`
}

// Create handles POST /api/admin/units/{id}/chores.
func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	unitID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	unit, err := h.unitStore.GetByID(unitID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "unit not found")
		return
	}

	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	def, err := h.choreStore.Create(unitID, req.Name, req.Description, req.SortOrder)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create chore", err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// List handles GET /api/admin/units/{id}/chores.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	unitID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	defs, err := h.choreStore.ListByUnit(unitID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list chores", err)
		return
	}
	if defs == nil {
		defs = []model.ChoreDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

// Update handles PUT /api/admin/chores/{id}. Changes apply to schedules
// generated afterwards and to weeks still being filled in.
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.choreStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get chore", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}

	def, err := h.choreStore.Update(id, req.Name, req.Description, active, req.SortOrder)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update chore", err)
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// Delete handles DELETE /api/admin/chores/{id}. Chores with finished
// completions cannot be deleted.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	deleted, err := h.choreStore.Delete(id)
	if errors.Is(err, store.ErrHasHistory) {
		writeError(w, http.StatusConflict, "chore has completion history, deactivate it instead")
		return
	}
	if err != nil {
		writeStoreError(w, h.logger, "failed to delete chore", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sortRequest struct {
	IDs []int64 `json:"ids"`
}

// UpdateSortOrder handles PUT /api/admin/units/{id}/chores/sort. The ids are
// the unit's chores in their new order.
func (h *ChoreHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	unitID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req sortRequest
	if err := decodeJSON(r, &req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}
	if err := h.choreStore.Reorder(unitID, req.IDs); err != nil {
		if errors.Is(err, store.ErrWrongUnit) {
			writeError(w, http.StatusBadRequest, "ids must all be chores of this unit")
			return
		}
		writeStoreError(w, h.logger, "failed to reorder chores", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Schedule ---

// Schedule handles GET /api/chores/schedule and
// GET /api/chores/schedule/{week_id}. Without a week id the unit's current
// week is returned.
func (h *ChoreHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	requested, err := queryInt64(r, "unit_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_id")
		return
	}
	unitID, err := h.service.UnitFor(actorFrom(r), requested)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var view *model.ScheduleView
	if weekID := r.PathValue("week_id"); weekID != "" {
		view, err = h.service.Schedule(unitID, weekID)
	} else {
		view, err = h.service.CurrentSchedule(unitID)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if view.Completions == nil {
		view.Completions = []model.ChoreCompletion{}
	}
	writeJSON(w, http.StatusOK, view)
}

// History handles GET /api/chores/schedules, the weeks generated so far.
func (h *ChoreHandler) History(w http.ResponseWriter, r *http.Request) {
	requested, err := queryInt64(r, "unit_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_id")
		return
	}
	schedules, err := h.service.ScheduleHistory(actorFrom(r), requested)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if schedules == nil {
		schedules = []model.ChoreSchedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

// Export handles GET /api/admin/chores/schedule/{week_id}/export.
func (h *ChoreHandler) Export(w http.ResponseWriter, r *http.Request) {
	unitID, err := queryInt64(r, "unit_id")
	if err != nil || unitID == 0 {
		writeError(w, http.StatusBadRequest, "unit_id is required")
		return
	}
	view, err := h.service.Schedule(unitID, r.PathValue("week_id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	unit, err := h.unitStore.GetByID(unitID)
	if err != nil || unit == nil {
		writeStoreError(w, h.logger, "failed to get unit", err)
		return
	}

	data, err := export.ScheduleXLSX(unit, view)
	if err != nil {
		h.logger.Error("export schedule", "unit_id", unitID, "week_id", view.WeekID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export schedule")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName(unit, view.WeekID)}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// --- Completions ---

type completeRequest struct {
	PhotoPath string `json:"photo_path"`
	Notes     string `json:"notes"`
}

// Complete handles POST /api/chores/completions/{id}/complete. The body is
// either JSON or a multipart form with an optional "photo" file.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	actor := actorFrom(r)

	var req completeRequest
	var uploaded string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		// Check the obligation before storing anything.
		if _, err := h.service.Completion(actor, id); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1<<20)
		if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req.Notes = r.FormValue("notes")
		key, status, msg := h.storePhoto(r)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		req.PhotoPath, uploaded = key, key
	} else if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.PhotoPath != "" && !storage.InFolder(photoFolder, req.PhotoPath) {
			writeError(w, http.StatusBadRequest, "photo_path must be an uploaded photo")
			return
		}
	}

	c, err := h.service.MarkComplete(actor, id, req.PhotoPath, strings.TrimSpace(req.Notes))
	if err != nil {
		if uploaded != "" {
			if derr := h.files.Delete(r.Context(), uploaded); derr != nil {
				h.logger.Warn("remove orphaned photo", "key", uploaded, "error", derr)
			}
		}
		writeServiceError(w, h.logger, err)
		return
	}
	h.notifier.CompletionChanged(c)
	writeJSON(w, http.StatusOK, c)
}

// storePhoto saves the "photo" form file, if any, and returns its key.
func (h *ChoreHandler) storePhoto(r *http.Request) (string, int, string) {
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", 0, ""
	}
	if err != nil {
		return "", http.StatusBadRequest, "invalid photo upload"
	}
	defer file.Close()

	if header.Size > maxPhotoSize {
		return "", http.StatusRequestEntityTooLarge, "photo too large"
	}
	contentType := header.Header.Get("Content-Type")
	if !photoTypes[contentType] {
		return "", http.StatusUnsupportedMediaType, "photo must be JPEG, PNG, WebP or HEIC"
	}

	key := storage.NewKey(photoFolder, header.Filename)
	if filepath.Ext(key) == "" {
		exts, _ := mime.ExtensionsByType(contentType)
		if len(exts) > 0 {
			key += exts[0]
		}
	}
	if err := h.files.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		h.logger.Error("store photo", "error", err)
		return "", http.StatusInternalServerError, "failed to store photo"
	}
	return key, 0, ""
}

// Photo handles GET /api/chores/completions/{id}/photo.
func (h *ChoreHandler) Photo(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := h.service.Completion(actorFrom(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !storage.InFolder(photoFolder, c.PhotoPath) {
		writeError(w, http.StatusNotFound, "no photo")
		return
	}
	serveObject(w, r, h.files, h.logger, c.PhotoPath, mime.TypeByExtension(filepath.Ext(c.PhotoPath)), "")
}

type excuseRequest struct {
	Notes string `json:"notes"`
}

// Excuse handles POST /api/admin/completions/{id}/excuse.
func (h *ChoreHandler) Excuse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req excuseRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	c, err := h.service.Excuse(actorFrom(r), id, strings.TrimSpace(req.Notes))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.notifier.CompletionChanged(c)
	writeJSON(w, http.StatusOK, c)
}

// serveObject streams a stored file. An empty downloadName serves inline.
func serveObject(w http.ResponseWriter, r *http.Request, files storage.Store, logger *slog.Logger, key, contentType, downloadName string) {
	body, err := files.Get(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		logger.Error("read stored file", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if downloadName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("stream stored file", "key", key, "error", err)
	}
}
