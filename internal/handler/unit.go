package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

type UnitHandler struct {
	unitStore *store.UnitStore
	roomStore *store.RoomStore
	logger    *slog.Logger
}

func NewUnitHandler(us *store.UnitStore, rs *store.RoomStore, logger *slog.Logger) *UnitHandler {
	return &UnitHandler{unitStore: us, roomStore: rs, logger: logger}
}

type unitRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
}

func (req *unitRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	if req.Name == "" {
		return "name is required"
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return "unknown timezone"
	}
	return ""
}

func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	units, err := h.unitStore.List()
	if err != nil {
		writeStoreError(w, h.logger, "failed to list units", err)
		return
	}
	if units == nil {
		units = []model.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *UnitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	unit, err := h.unitStore.Create(req.Name, req.Address, req.Timezone)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}

func (h *UnitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	unit, err := h.unitStore.GetByID(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "unit not found")
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

// Update handles PUT /api/admin/units/{id}. Changing the timezone does not
// touch schedules already generated.
func (h *UnitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req unitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	unit, err := h.unitStore.Update(id, req.Name, req.Address, req.Timezone)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "unit not found")
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (h *UnitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.unitStore.Delete(id); err != nil {
		writeStoreError(w, h.logger, "failed to delete unit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Rooms ---

type roomRequest struct {
	Number string `json:"number"`
}

// ListRooms handles GET /api/admin/units/{id}/rooms.
func (h *UnitHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	unitID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	rooms, err := h.roomStore.ListByUnit(unitID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list rooms", err)
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// CreateRoom handles POST /api/admin/units/{id}/rooms.
func (h *UnitHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
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
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}
	room, err := h.roomStore.Create(unitID, req.Number)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create room", err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// UpdateRoom handles PUT /api/admin/rooms/{id}.
func (h *UnitHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}
	room, err := h.roomStore.Update(id, req.Number)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update room", err)
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/admin/rooms/{id}.
func (h *UnitHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.roomStore.Delete(id); err != nil {
		writeStoreError(w, h.logger, "failed to delete room", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
