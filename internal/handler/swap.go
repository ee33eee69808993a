package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tenantry/internal/chore"
	"github.com/dukerupert/tenantry/internal/model"
)

type SwapHandler struct {
	service  *chore.Service
	notifier Notifier
	logger   *slog.Logger
}

func NewSwapHandler(svc *chore.Service, n Notifier, logger *slog.Logger) *SwapHandler {
	return &SwapHandler{service: svc, notifier: n, logger: logger}
}

type createSwapRequest struct {
	ScheduleID  int64  `json:"schedule_id"`
	RequesterID int64  `json:"requester_id"`
	TargetID    int64  `json:"target_id"`
	Reason      string `json:"reason"`
}

// Create handles POST /api/swaps.
func (h *SwapHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ScheduleID == 0 || req.RequesterID == 0 || req.TargetID == 0 {
		writeError(w, http.StatusBadRequest, "schedule_id, requester_id and target_id are required")
		return
	}

	sw, err := h.service.CreateSwap(actorFrom(r), req.ScheduleID, req.RequesterID, req.TargetID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.notifier.SwapRequested(sw)
	writeJSON(w, http.StatusCreated, sw)
}

// List handles GET /api/swaps. Admins pass ?unit_id=; anyone may narrow the
// list to one week with ?schedule_id=.
func (h *SwapHandler) List(w http.ResponseWriter, r *http.Request) {
	unitID, err := queryInt64(r, "unit_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_id")
		return
	}
	scheduleID, err := queryInt64(r, "schedule_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule_id")
		return
	}
	var swaps []model.SwapRequest
	if scheduleID != 0 {
		swaps, err = h.service.ScheduleSwaps(actorFrom(r), scheduleID)
	} else {
		swaps, err = h.service.ListSwaps(actorFrom(r), unitID)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if swaps == nil {
		swaps = []model.SwapRequest{}
	}
	writeJSON(w, http.StatusOK, swaps)
}

// Get handles GET /api/swaps/{id}.
func (h *SwapHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sw, err := h.service.Swap(actorFrom(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}

type respondSwapRequest struct {
	Approved *bool `json:"approved"`
}

// Respond handles PATCH /api/swaps/{id} with {"approved": bool}.
func (h *SwapHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req respondSwapRequest
	if err := decodeJSON(r, &req); err != nil || req.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved is required")
		return
	}

	sw, err := h.service.RespondSwap(actorFrom(r), id, *req.Approved)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.notifier.SwapResolved(sw)
	writeJSON(w, http.StatusOK, sw)
}

// Cancel handles DELETE /api/swaps/{id}. The request is kept as cancelled.
func (h *SwapHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sw, err := h.service.CancelSwap(actorFrom(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.notifier.SwapResolved(sw)
	writeJSON(w, http.StatusOK, sw)
}
