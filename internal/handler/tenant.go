package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

type TenantHandler struct {
	tenantStore   *store.TenantStore
	occupantStore *store.OccupantStore
	userStore     *store.UserStore
	roomStore     *store.RoomStore
	logger        *slog.Logger
}

func NewTenantHandler(ts *store.TenantStore, ocs *store.OccupantStore, us *store.UserStore, rs *store.RoomStore, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{tenantStore: ts, occupantStore: ocs, userStore: us, roomStore: rs, logger: logger}
}

// List handles GET /api/admin/tenants, optionally filtered by ?unit_id=.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	unitID, err := queryInt64(r, "unit_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_id")
		return
	}
	var tenants []model.Tenant
	if unitID != 0 {
		tenants, err = h.tenantStore.ListByUnit(unitID)
	} else {
		tenants, err = h.tenantStore.List()
	}
	if err != nil {
		writeStoreError(w, h.logger, "failed to list tenants", err)
		return
	}
	if tenants == nil {
		tenants = []model.Tenant{}
	}
	writeJSON(w, http.StatusOK, tenants)
}

type createTenantRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	RoomID     int64  `json:"room_id"`
	MoveInDate string `json:"move_in_date"`
}

// Create handles POST /api/admin/tenants. The login is looked up by email
// and created as a tenant account if it does not exist yet.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if req.MoveInDate != "" && !validDate(req.MoveInDate) {
		writeError(w, http.StatusBadRequest, "move_in_date must be YYYY-MM-DD")
		return
	}

	room, err := h.roomStore.GetByID(req.RoomID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get room", err)
		return
	}
	if room == nil {
		writeError(w, http.StatusBadRequest, "room not found")
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get user", err)
		return
	}
	if user == nil {
		name := req.Name
		if name == "" {
			name = req.Email
		}
		user, err = h.userStore.Create(req.Email, name, model.RoleTenant)
		if err != nil {
			writeStoreError(w, h.logger, "failed to create user", err)
			return
		}
	} else if user.Role == model.RoleAdmin {
		writeError(w, http.StatusBadRequest, "admin accounts cannot hold a tenancy")
		return
	}

	active, err := h.tenantStore.GetActiveByUser(user.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return
	}
	if active != nil {
		writeError(w, http.StatusConflict, "user already has an active tenancy")
		return
	}

	tenant, err := h.tenantStore.Create(user.ID, room.ID, req.MoveInDate)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create tenant", err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tenant, err := h.tenantStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

// MoveOut handles POST /api/admin/tenants/{id}/move-out. Occupants of an
// inactive tenancy drop out of future schedules.
func (h *TenantHandler) MoveOut(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tenant, err := h.tenantStore.MoveOut(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to move out tenant", err)
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

type moveRoomRequest struct {
	RoomID int64 `json:"room_id"`
}

// MoveRoom handles POST /api/admin/tenants/{id}/move.
func (h *TenantHandler) MoveRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req moveRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	tenant, err := h.tenantStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if !tenant.Active {
		writeError(w, http.StatusConflict, "tenant has moved out")
		return
	}
	room, err := h.roomStore.GetByID(req.RoomID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get room", err)
		return
	}
	if room == nil {
		writeError(w, http.StatusBadRequest, "room not found")
		return
	}

	tenant, err = h.tenantStore.MoveRoom(id, room.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to move tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.tenantStore.Delete(id); err != nil {
		writeStoreError(w, h.logger, "failed to delete tenant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Occupants ---

type occupantRequest struct {
	Name     string `json:"name"`
	ChoreDay *int   `json:"chore_day"`
}

func (req *occupantRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.ChoreDay == nil || *req.ChoreDay < 0 || *req.ChoreDay > 6 {
		return "chore_day must be 0 (Sunday) through 6 (Saturday)"
	}
	return ""
}

// ListOccupants handles GET /api/admin/tenants/{id}/occupants.
func (h *TenantHandler) ListOccupants(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	occupants, err := h.occupantStore.ListByTenant(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list occupants", err)
		return
	}
	if occupants == nil {
		occupants = []model.Occupant{}
	}
	writeJSON(w, http.StatusOK, occupants)
}

// CreateOccupant handles POST /api/admin/tenants/{id}/occupants.
func (h *TenantHandler) CreateOccupant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tenant, err := h.tenantStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get tenant", err)
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	var req occupantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	o, err := h.occupantStore.Create(tenant.ID, req.Name, *req.ChoreDay)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create occupant", err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// UpdateOccupant handles PUT /api/admin/occupants/{id}. A new chore day
// applies to schedules generated afterwards.
func (h *TenantHandler) UpdateOccupant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req occupantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	o, err := h.occupantStore.Update(id, req.Name, *req.ChoreDay)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update occupant", err)
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "occupant not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// DeleteOccupant handles DELETE /api/admin/occupants/{id}.
func (h *TenantHandler) DeleteOccupant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.occupantStore.Delete(id); err != nil {
		writeStoreError(w, h.logger, "failed to delete occupant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
