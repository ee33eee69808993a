package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

var requestKinds = map[string]bool{
	model.RequestSupply:      true,
	model.RequestMaintenance: true,
	model.RequestConcern:     true,
}

var reviewStatuses = map[string]bool{
	model.RequestApproved: true,
	model.RequestDenied:   true,
	model.RequestResolved: true,
}

type RequestHandler struct {
	requestStore  *store.RequestStore
	tenantStore   *store.TenantStore
	occupantStore *store.OccupantStore
	notifier      Notifier
	logger        *slog.Logger
}

func NewRequestHandler(rs *store.RequestStore, ts *store.TenantStore, ocs *store.OccupantStore, n Notifier, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{requestStore: rs, tenantStore: ts, occupantStore: ocs, notifier: n, logger: logger}
}

type createRequestRequest struct {
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	AboutOccupantID *int64 `json:"about_occupant_id"`
}

// activeTenant returns the caller's tenancy or writes a 403.
func (h *RequestHandler) activeTenant(w http.ResponseWriter, r *http.Request) *model.Tenant {
	tenant, err := h.tenantStore.GetActiveByUser(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return nil
	}
	if tenant == nil {
		writeError(w, http.StatusForbidden, "no active tenancy")
		return nil
	}
	return tenant
}

// Create handles POST /api/requests.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := h.activeTenant(w, r)
	if tenant == nil {
		return
	}

	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if !requestKinds[req.Kind] {
		writeError(w, http.StatusBadRequest, "kind must be supply, maintenance or concern")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.AboutOccupantID != nil {
		if req.Kind != model.RequestConcern {
			writeError(w, http.StatusBadRequest, "about_occupant_id is only allowed on concerns")
			return
		}
		o, err := h.occupantStore.GetByID(*req.AboutOccupantID)
		if err != nil {
			writeStoreError(w, h.logger, "failed to get occupant", err)
			return
		}
		if o == nil || o.UnitID != tenant.UnitID {
			writeError(w, http.StatusBadRequest, "occupant not found in your unit")
			return
		}
	}

	created, err := h.requestStore.Create(tenant.ID, req.Kind, req.Title, strings.TrimSpace(req.Description), req.AboutOccupantID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create request", err)
		return
	}
	h.notifier.RequestFiled(created)
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/requests, the caller's own requests.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := h.activeTenant(w, r)
	if tenant == nil {
		return
	}
	reqs, err := h.requestStore.ListByTenant(tenant.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list requests", err)
		return
	}
	if reqs == nil {
		reqs = []model.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ListAll handles GET /api/admin/requests?status=.
func (h *RequestHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requestStore.List(r.URL.Query().Get("status"))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list requests", err)
		return
	}
	if reqs == nil {
		reqs = []model.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

type reviewRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Review handles PATCH /api/admin/requests/{id}.
func (h *RequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !reviewStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, "status must be approved, denied or resolved")
		return
	}

	existing, err := h.requestStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get request", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}

	ok, err := h.requestStore.Review(id, req.Status, strings.TrimSpace(req.Notes), time.Now())
	if err != nil {
		writeStoreError(w, h.logger, "failed to review request", err)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "request is already "+existing.Status)
		return
	}

	updated, err := h.requestStore.GetByID(id)
	if err != nil || updated == nil {
		writeStoreError(w, h.logger, "failed to get request", err)
		return
	}
	h.notifier.RequestUpdated(updated)
	writeJSON(w, http.StatusOK, updated)
}
