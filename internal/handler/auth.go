package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/middleware"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

const maxCodeAttempts = 5

// CodeSender delivers sign-in codes.
type CodeSender interface {
	Configured() bool
	SendAuthCode(toEmail, code string) error
}

type AuthHandler struct {
	userStore      *store.UserStore
	tenantStore    *store.TenantStore
	occupantStore  *store.OccupantStore
	sessionStore   *store.SessionStore
	magicLinkStore *store.MagicLinkStore
	codes          CodeSender
	logger         *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ts *store.TenantStore,
	ocs *store.OccupantStore,
	ss *store.SessionStore,
	mls *store.MagicLinkStore,
	codes CodeSender,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		tenantStore:    ts,
		occupantStore:  ocs,
		sessionStore:   ss,
		magicLinkStore: mls,
		codes:          codes,
		logger:         logger,
	}
}

type loginRequest struct {
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Login handles POST /api/auth/login. The response is the same whether or
// not the address belongs to a user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	emailAddr := normalizeEmail(req.Email)
	if emailAddr == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	defer writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	_, code, err := h.magicLinkStore.Issue(emailAddr)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		return
	}
	if h.codes == nil || !h.codes.Configured() {
		h.logger.Warn("email not configured, sign-in code not sent", "user_id", user.ID)
		return
	}
	if err := h.codes.SendAuthCode(emailAddr, code); err != nil {
		h.logger.Error("send auth code", "error", err)
	}
}

// redeemCode consumes the sign-in code for emailAddr. On failure it returns
// the HTTP status and message to send.
func (h *AuthHandler) redeemCode(emailAddr, code string) (*model.MagicLink, int, string) {
	if emailAddr == "" || code == "" {
		return nil, http.StatusBadRequest, "email and code are required"
	}
	ml, err := h.magicLinkStore.Redeem(emailAddr, code, maxCodeAttempts)
	switch {
	case err == nil:
		return ml, 0, ""
	case errors.Is(err, store.ErrCodeIncorrect):
		return nil, http.StatusUnauthorized, "incorrect code"
	case errors.Is(err, store.ErrCodeLocked):
		return nil, http.StatusTooManyRequests, "too many incorrect attempts, request a new code"
	case errors.Is(err, store.ErrCodeExpired):
		return nil, http.StatusUnauthorized, "code has expired or already been used"
	default:
		h.logger.Error("redeem code", "error", err)
		return nil, http.StatusInternalServerError, "internal error"
	}
}

// Verify handles POST /api/auth/verify and starts a session.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ml, status, msg := h.redeemCode(normalizeEmail(req.Email), strings.TrimSpace(req.Code))
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	user, err := h.userStore.GetByEmail(ml.Email)
	if err != nil || user == nil {
		h.logger.Error("verify user lookup", "error", err)
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, user)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok && ac.SessionID != 0 {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	for _, name := range []string{middleware.SessionCookieName, middleware.ImpersonationCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User           *model.User      `json:"user"`
	Tenant         *model.Tenant    `json:"tenant"`
	Occupants      []model.Occupant `json:"occupants"`
	ImpersonatorID int64            `json:"impersonator_id,omitempty"`
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("me user lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tenant, err := h.tenantStore.GetActiveByUser(user.ID)
	if err != nil {
		h.logger.Error("me tenant lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	occupants, err := h.occupantStore.ListByUser(user.ID)
	if err != nil {
		h.logger.Error("me occupants lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if occupants == nil {
		occupants = []model.Occupant{}
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:           user,
		Tenant:         tenant,
		Occupants:      occupants,
		ImpersonatorID: ac.ImpersonatorID,
	})
}

// UpdateMe handles PATCH /api/me. Only the display name can change; an
// impersonating admin may not rename the tenant.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.Impersonating() {
		writeError(w, http.StatusForbidden, "cannot edit profile while impersonating")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		writeError(w, http.StatusBadRequest, "name must be 1 to 100 characters")
		return
	}
	user, err := h.userStore.UpdateName(ac.UserID, name)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update profile", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
