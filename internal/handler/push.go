package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/push"
	"github.com/dukerupert/tenantry/internal/store"
)

type PushHandler struct {
	subs    *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: ps, service: svc, logger: logger}
}

// subscribeRequest is the browser's PushSubscription.toJSON() plus an
// optional label for the device list.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	ExpirationTime *int64 `json:"expirationTime"`
	DeviceName     string `json:"device_name"`
}

func (req subscribeRequest) validate() string {
	u, err := url.Parse(req.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "endpoint must be an https URL"
	}
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return "keys.p256dh and keys.auth are required"
	}
	return ""
}

// Subscribe handles POST /api/push/subscriptions.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	uid := auth.UserID(r.Context())
	sub, err := h.subs.Save(model.PushSubscription{
		UserID:     uid,
		Endpoint:   req.Endpoint,
		P256dhKey:  req.Keys.P256dh,
		AuthKey:    req.Keys.Auth,
		DeviceName: req.DeviceName,
	})
	if err != nil {
		h.logger.Error("create push subscription", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}. Only the owner's
// subscriptions are visible.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid := auth.UserID(r.Context())
	removed, err := h.subs.Remove(id, uid)
	if err != nil {
		writeStoreError(w, h.logger, "failed to delete subscription", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list subscriptions", err)
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key.
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"public_key": h.service.VAPIDPublicKey(),
		"enabled":    h.service.Configured(),
	})
}

// TestNotification handles POST /api/push/test by pinging every device the
// caller registered.
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	sent, err := h.service.SendToUser(auth.UserID(r.Context()), push.Payload{
		Title: "Notifications are on",
		Body:  "You'll hear about swaps and request updates here.",
		URL:   "/",
		Tag:   "test",
	})
	if err != nil {
		writeStoreError(w, h.logger, "failed to send notification", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
