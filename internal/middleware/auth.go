package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

const (
	SessionCookieName       = "tenantry_session"
	ImpersonationCookieName = "tenantry_impersonate"
)

// RequireAuth validates the session cookie and populates AuthContext.
// An admin session carrying a valid impersonation cookie issued to that
// admin runs as the impersonated user instead. imp may be nil.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore, imp *auth.Impersonator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil {
				slog.Error("load session", "error", err)
			}
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Role:      user.Role,
				SessionID: sess.ID,
			}
			if ac.IsAdmin() && imp != nil {
				if target := impersonated(r, imp, users, user.ID); target != nil {
					ac.UserID = target.ID
					ac.Role = target.Role
					ac.ImpersonatorID = user.ID
				}
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func impersonated(r *http.Request, imp *auth.Impersonator, users *store.UserStore, adminID int64) *model.User {
	cookie, err := r.Cookie(ImpersonationCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	issuedBy, userID, err := imp.Parse(cookie.Value)
	if err != nil || issuedBy != adminID {
		return nil
	}
	target, err := users.GetByID(userID)
	if err != nil || target == nil {
		return nil
	}
	return target
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
