package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/service"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/ratelimit"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

const apiPrefix = "/api/v1"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	redis redis.UniversalClient

	SessionService  *service.SessionService
	AuthService     *service.AuthService
	LedgerService   *service.LedgerService
	AuditLogService *service.AuditLogService
	LoginLimiter    ratelimit.Limiter
}

func NewRouter(
	buildVersion string,
	st store.Store,
	rdb redis.UniversalClient,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		redis:        rdb,
		logger:       logger,
	}

	// Client address first so the request logger and audit events see it.
	r.middlewares = []httpx.Middleware{
		httpx.ClientIPMiddleware,
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every route. Services must be set beforehand.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccounts()
	r.registerAuditLogs()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(bearerAuth(r.SessionService))
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.AuthService}

	r.Mux.HandleFunc("POST "+apiPrefix+"/auth/register", h.HandleRegister)

	// Login attempts are limited per client address across all instances.
	r.Mux.Handle("POST "+apiPrefix+"/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitMiddleware(r.LoginLimiter, httpx.ClientIP),
		),
	)

	r.Mux.HandleFunc("POST "+apiPrefix+"/auth/refresh", h.HandleRefresh)

	r.Mux.Handle("POST "+apiPrefix+"/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout), r.authn()),
	)
}

func (r *Router) registerAccounts() {
	h := &AccountsHandler{Ledger: r.LedgerService}

	r.Mux.Handle("POST "+apiPrefix+"/accounts",
		httpx.Chain(http.HandlerFunc(h.HandleCreate), r.authn(), requireAdmin),
	)
	r.Mux.Handle("GET "+apiPrefix+"/accounts",
		httpx.Chain(http.HandlerFunc(h.HandleList), r.authn(), requireAdmin),
	)
	r.Mux.Handle("POST "+apiPrefix+"/accounts/transfer",
		httpx.Chain(http.HandlerFunc(h.HandleTransfer), r.authn()),
	)
	r.Mux.Handle("GET "+apiPrefix+"/accounts/{iban}",
		httpx.Chain(http.HandlerFunc(h.HandleGet), r.authn()),
	)
	r.Mux.Handle("GET "+apiPrefix+"/accounts/{iban}/transactions",
		httpx.Chain(http.HandlerFunc(h.HandleHistory), r.authn()),
	)
}

func (r *Router) registerAuditLogs() {
	h := &AuditLogsHandler{AuditLogs: r.AuditLogService}

	r.Mux.Handle("GET "+apiPrefix+"/audit-logs",
		httpx.Chain(h, r.authn(), requireAdmin),
	)
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET "+apiPrefix+"/system/ping", PingHandler)
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion,
		r.store.Ping,
		func(ctx context.Context) error { return r.redis.Ping(ctx).Err() },
	))
}
