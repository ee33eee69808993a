package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/storage"
	"github.com/dukerupert/tenantry/internal/store"
)

const maxLeaseSize = 20 << 20

var leaseTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

type LeaseHandler struct {
	leaseStore  *store.LeaseStore
	tenantStore *store.TenantStore
	files       storage.Store
	logger      *slog.Logger
}

func NewLeaseHandler(ls *store.LeaseStore, ts *store.TenantStore, files storage.Store, logger *slog.Logger) *LeaseHandler {
	return &LeaseHandler{leaseStore: ls, tenantStore: ts, files: files, logger: logger}
}

// List handles GET /api/leases.
func (h *LeaseHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenantStore.GetActiveByUser(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return
	}
	if tenant == nil {
		writeJSON(w, http.StatusOK, []model.Lease{})
		return
	}
	h.writeLeases(w, tenant.ID)
}

// ListForTenant handles GET /api/admin/tenants/{id}/leases.
func (h *LeaseHandler) ListForTenant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	h.writeLeases(w, id)
}

func (h *LeaseHandler) writeLeases(w http.ResponseWriter, tenantID int64) {
	leases, err := h.leaseStore.ListByTenant(tenantID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list leases", err)
		return
	}
	if leases == nil {
		leases = []model.Lease{}
	}
	writeJSON(w, http.StatusOK, leases)
}

// Upload handles POST /api/admin/tenants/{id}/leases as a multipart form
// with a "document" file and optional start_date and end_date fields.
// Each upload becomes the next version for the tenant.
func (h *LeaseHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tenant, err := h.tenantStore.GetByID(tenantID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLeaseSize+1<<20)
	if err := r.ParseMultipartForm(maxLeaseSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	start := strings.TrimSpace(r.FormValue("start_date"))
	end := strings.TrimSpace(r.FormValue("end_date"))
	if (start != "" && !validDate(start)) || (end != "" && !validDate(end)) {
		writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
		return
	}
	if start != "" && end != "" && end < start {
		writeError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	file, header, err := r.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document upload")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !leaseTypes[contentType] {
		writeError(w, http.StatusUnsupportedMediaType, "document must be PDF, JPEG or PNG")
		return
	}

	key := storage.NewKey("leases", header.Filename)
	if err := h.files.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		h.logger.Error("store lease", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	uploader := auth.UserID(r.Context())
	lease, err := h.leaseStore.Create(model.Lease{
		TenantID:    tenantID,
		DocumentKey: key,
		FileName:    header.Filename,
		ContentType: contentType,
		StartDate:   start,
		EndDate:     end,
		UploadedBy:  &uploader,
	})
	if err != nil {
		if derr := h.files.Delete(r.Context(), key); derr != nil {
			h.logger.Warn("remove orphaned lease", "key", key, "error", derr)
		}
		writeStoreError(w, h.logger, "failed to create lease", err)
		return
	}
	writeJSON(w, http.StatusCreated, lease)
}

// Document handles GET /api/leases/{id}/document. Tenants may only read
// their own leases.
func (h *LeaseHandler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	lease, err := h.leaseStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get lease", err)
		return
	}
	if lease == nil {
		writeError(w, http.StatusNotFound, "lease not found")
		return
	}

	if !auth.IsAdmin(r.Context()) {
		tenant, err := h.tenantStore.GetByID(lease.TenantID)
		if err != nil {
			writeStoreError(w, h.logger, "failed to get tenant", err)
			return
		}
		if tenant == nil || tenant.UserID != auth.UserID(r.Context()) {
			writeError(w, http.StatusNotFound, "lease not found")
			return
		}
	}
	serveObject(w, r, h.files, h.logger, lease.DocumentKey, lease.ContentType, lease.FileName)
}
