package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/middleware"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

type ImpersonateHandler struct {
	userStore *store.UserStore
	imp       *auth.Impersonator
	logger    *slog.Logger
}

func NewImpersonateHandler(us *store.UserStore, imp *auth.Impersonator, logger *slog.Logger) *ImpersonateHandler {
	return &ImpersonateHandler{userStore: us, imp: imp, logger: logger}
}

// Start handles POST /api/admin/impersonate/{user_id}. Admins cannot
// impersonate other admins.
func (h *ImpersonateHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.imp.Enabled() {
		writeError(w, http.StatusNotImplemented, "impersonation is not configured")
		return
	}
	userID, err := parsePathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	target, err := h.userStore.GetByID(userID)
	if err != nil {
		h.logger.Error("impersonate lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if target.Role == model.RoleAdmin {
		writeError(w, http.StatusForbidden, "cannot impersonate an admin")
		return
	}

	adminID := auth.UserID(r.Context())
	token, exp, err := h.imp.Issue(adminID, target.ID)
	if err != nil {
		h.logger.Error("issue impersonation token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ImpersonationCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	h.logger.Info("impersonation started", "admin_id", adminID, "user_id", target.ID)
	writeJSON(w, http.StatusOK, target)
}

// Stop handles DELETE /api/admin/impersonate. While impersonating, the
// effective role is the tenant's, so this route is not behind RequireAdmin.
func (h *ImpersonateHandler) Stop(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ImpersonationCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}
