package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/chore"
	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/email"
	"github.com/dukerupert/tenantry/internal/handler"
	"github.com/dukerupert/tenantry/internal/middleware"
	"github.com/dukerupert/tenantry/internal/notify"
	"github.com/dukerupert/tenantry/internal/push"
	"github.com/dukerupert/tenantry/internal/storage"
	"github.com/dukerupert/tenantry/internal/store"
	ws "github.com/dukerupert/tenantry/internal/websocket"
)

// Deps carries the collaborators built from configuration in main.
type Deps struct {
	Email          *email.Client
	Push           *push.Service
	Files          storage.Store
	Limiter        middleware.Limiter
	Impersonator   *auth.Impersonator
	AllowedOrigins []string
	Clock          func() time.Time
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	service        *chore.Service
	authH          *handler.AuthHandler
	impersonateH   *handler.ImpersonateHandler
	unitH          *handler.UnitHandler
	tenantH        *handler.TenantHandler
	choreH         *handler.ChoreHandler
	swapH          *handler.SwapHandler
	requestH       *handler.RequestHandler
	leaseH         *handler.LeaseHandler
	pushH          *handler.PushHandler
	sessionStore   *store.SessionStore
	magicLinkStore *store.MagicLinkStore
	userStore      *store.UserStore
	tenantStore    *store.TenantStore
	limiter        middleware.Limiter
	impersonator   *auth.Impersonator
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, deps Deps, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	unitStore := store.NewUnitStore(db)
	roomStore := store.NewRoomStore(db)
	tenantStore := store.NewTenantStore(db)
	occupantStore := store.NewOccupantStore(db)
	choreStore := store.NewChoreStore(db)
	requestStore := store.NewRequestStore(db)
	leaseStore := store.NewLeaseStore(db)
	pushStore := store.NewPushStore(db)

	// Auth stores
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)

	opts := []chore.Option{chore.WithLogger(logger.With("component", "chore"))}
	if deps.Clock != nil {
		opts = append(opts, chore.WithClock(deps.Clock))
	}
	svc := chore.NewService(db, opts...)

	if deps.Email == nil {
		deps.Email = email.NewClient("", "", "")
	}
	if deps.Push == nil {
		deps.Push = push.NewService("", "", "", pushStore)
	}
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter()
	}
	if deps.Impersonator == nil {
		deps.Impersonator = auth.NewImpersonator("", 0)
	}

	n := notify.New(db, deps.Email, deps.Push, hub, logger.With("component", "notify"))

	return &Server{
		db:             db,
		hub:            hub,
		service:        svc,
		authH:          handler.NewAuthHandler(userStore, tenantStore, occupantStore, sessionStore, magicLinkStore, deps.Email, logger.With("component", "auth")),
		impersonateH:   handler.NewImpersonateHandler(userStore, deps.Impersonator, logger.With("component", "impersonate")),
		unitH:          handler.NewUnitHandler(unitStore, roomStore, logger.With("component", "unit")),
		tenantH:        handler.NewTenantHandler(tenantStore, occupantStore, userStore, roomStore, logger.With("component", "tenant")),
		choreH:         handler.NewChoreHandler(choreStore, unitStore, svc, deps.Files, n, logger.With("component", "chore")),
		swapH:          handler.NewSwapHandler(svc, n, logger.With("component", "swap")),
		requestH:       handler.NewRequestHandler(requestStore, tenantStore, occupantStore, n, logger.With("component", "request")),
		leaseH:         handler.NewLeaseHandler(leaseStore, tenantStore, deps.Files, logger.With("component", "lease")),
		pushH:          handler.NewPushHandler(pushStore, deps.Push, logger.With("component", "push_handler")),
		sessionStore:   sessionStore,
		magicLinkStore: magicLinkStore,
		userStore:      userStore,
		tenantStore:    tenantStore,
		limiter:        deps.Limiter,
		impersonator:   deps.Impersonator,
		allowedOrigins: deps.AllowedOrigins,
		logger:         logger,
	}
}

// ChoreService returns the rotation service for the background sweep.
func (s *Server) ChoreService() *chore.Service {
	return s.service
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinkStore
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.impersonator)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	version, err := database.Version(r.Context(), s.db)
	if err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":            status,
		"schema_version":    version,
		"websocket_clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.limiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// wsScope lets admins watch every unit and tenants only their own.
func (s *Server) wsScope(r *http.Request) (int64, bool) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		return 0, false
	}
	if ac.IsAdmin() {
		return 0, true
	}
	tenant, err := s.tenantStore.GetActiveByUser(ac.UserID)
	if err != nil {
		s.logger.Error("websocket scope", "user_id", ac.UserID, "error", err)
		return 0, false
	}
	if tenant == nil {
		return 0, false
	}
	return tenant.UnitID, true
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}

	// Session
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("PATCH /api/me", s.authH.UpdateMe)
	mux.HandleFunc("DELETE /api/admin/impersonate", s.impersonateH.Stop)
	mux.Handle("POST /api/admin/impersonate/{user_id}", admin(s.impersonateH.Start))

	// Chore rotation
	mux.HandleFunc("GET /api/chores/schedule", s.choreH.Schedule)
	mux.HandleFunc("GET /api/chores/schedule/{week_id}", s.choreH.Schedule)
	mux.HandleFunc("GET /api/chores/schedules", s.choreH.History)
	mux.HandleFunc("POST /api/chores/completions/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("GET /api/chores/completions/{id}/photo", s.choreH.Photo)

	// Swaps
	mux.HandleFunc("GET /api/swaps", s.swapH.List)
	mux.HandleFunc("POST /api/swaps", s.swapH.Create)
	mux.HandleFunc("GET /api/swaps/{id}", s.swapH.Get)
	mux.HandleFunc("PATCH /api/swaps/{id}", s.swapH.Respond)
	mux.HandleFunc("DELETE /api/swaps/{id}", s.swapH.Cancel)

	// Requests and leases
	mux.HandleFunc("GET /api/requests", s.requestH.List)
	mux.HandleFunc("POST /api/requests", s.requestH.Create)
	mux.HandleFunc("GET /api/leases", s.leaseH.List)
	mux.HandleFunc("GET /api/leases/{id}/document", s.leaseH.Document)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Units and rooms
	mux.Handle("GET /api/admin/units", admin(s.unitH.List))
	mux.Handle("POST /api/admin/units", admin(s.unitH.Create))
	mux.Handle("GET /api/admin/units/{id}", admin(s.unitH.Get))
	mux.Handle("PUT /api/admin/units/{id}", admin(s.unitH.Update))
	mux.Handle("DELETE /api/admin/units/{id}", admin(s.unitH.Delete))
	mux.Handle("GET /api/admin/units/{id}/rooms", admin(s.unitH.ListRooms))
	mux.Handle("POST /api/admin/units/{id}/rooms", admin(s.unitH.CreateRoom))
	mux.Handle("PUT /api/admin/rooms/{id}", admin(s.unitH.UpdateRoom))
	mux.Handle("DELETE /api/admin/rooms/{id}", admin(s.unitH.DeleteRoom))

	// Tenants and occupants
	mux.Handle("GET /api/admin/tenants", admin(s.tenantH.List))
	mux.Handle("POST /api/admin/tenants", admin(s.tenantH.Create))
	mux.Handle("GET /api/admin/tenants/{id}", admin(s.tenantH.Get))
	mux.Handle("DELETE /api/admin/tenants/{id}", admin(s.tenantH.Delete))
	mux.Handle("POST /api/admin/tenants/{id}/move-out", admin(s.tenantH.MoveOut))
	mux.Handle("POST /api/admin/tenants/{id}/move", admin(s.tenantH.MoveRoom))
	mux.Handle("GET /api/admin/tenants/{id}/occupants", admin(s.tenantH.ListOccupants))
	mux.Handle("POST /api/admin/tenants/{id}/occupants", admin(s.tenantH.CreateOccupant))
	mux.Handle("PUT /api/admin/occupants/{id}", admin(s.tenantH.UpdateOccupant))
	mux.Handle("DELETE /api/admin/occupants/{id}", admin(s.tenantH.DeleteOccupant))
	mux.Handle("GET /api/admin/tenants/{id}/leases", admin(s.leaseH.ListForTenant))
	mux.Handle("POST /api/admin/tenants/{id}/leases", admin(s.leaseH.Upload))

	// Chore definitions
	mux.Handle("GET /api/admin/units/{id}/chores", admin(s.choreH.List))
	mux.Handle("POST /api/admin/units/{id}/chores", admin(s.choreH.Create))
	mux.Handle("PUT /api/admin/units/{id}/chores/sort", admin(s.choreH.UpdateSortOrder))
	mux.Handle("PUT /api/admin/chores/{id}", admin(s.choreH.Update))
	mux.Handle("DELETE /api/admin/chores/{id}", admin(s.choreH.Delete))
	mux.Handle("GET /api/admin/chores/schedule/{week_id}/export", admin(s.choreH.Export))
	mux.Handle("POST /api/admin/completions/{id}/excuse", admin(s.choreH.Excuse))

	// Requests review
	mux.Handle("GET /api/admin/requests", admin(s.requestH.ListAll))
	mux.Handle("PATCH /api/admin/requests/{id}", admin(s.requestH.Review))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.wsScope, s.allowedOrigins))
}
