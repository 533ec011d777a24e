package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/session"
	"github.com/frcoutreach/outreachnet/pkg/logging"
	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

// Deps holds what the API needs from the rest of the server.
type Deps struct {
	Forum    *forum.Service
	Backend  identity.Backend
	Profiles session.Profiles
	Store    docstore.Store
	Cache    *cache.Cache
	// PageSize is the default thread page size.
	PageSize int
	// Metrics exposes GET /metrics when set.
	Metrics bool
}

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	deps     Deps
	resolver *session.Resolver
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps) *Router {
	router := &Router{
		handler:  NewJSONRPCHandler(),
		deps:     deps,
		resolver: session.NewResolver(deps.Backend, deps.Profiles),
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	if r.deps.Metrics {
		engine.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	}

	// JSON-RPC endpoint
	rpc := engine.Group("/", Authenticate(r.resolver))
	rpc.POST("/", r.handler.Handle)
	rpc.POST("/rpc", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	auth := NewAuthAPI(r.deps.Backend, r.deps.Profiles, r.deps.Forum)
	r.handler.RegisterMethod("auth.register", auth.Register)
	r.handler.RegisterMethod("auth.login", auth.Login)
	r.handler.RegisterMethod("auth.logout", auth.Logout)
	r.handler.RegisterMethod("auth.me", auth.Me)

	f := NewForumAPI(r.deps.Forum, r.deps.PageSize)
	r.handler.RegisterMethod("threads.create", f.CreateThread)
	r.handler.RegisterMethod("threads.list", f.ListThreads)
	r.handler.RegisterMethod("threads.list_by_category", f.ThreadsByCategory)
	r.handler.RegisterMethod("threads.get", f.GetThread)
	r.handler.RegisterMethod("threads.by_user", f.UserThreads)
	r.handler.RegisterMethod("threads.toggle_like", f.ToggleThreadLike)

	r.handler.RegisterMethod("comments.add", f.AddComment)
	r.handler.RegisterMethod("comments.list", f.Comments)
	r.handler.RegisterMethod("comments.toggle_like", f.ToggleCommentLike)

	r.handler.RegisterMethod("users.update_profile", f.UpdateProfile)

	admin := NewAdminAPI(r.deps.Forum)
	r.handler.RegisterMethod("admin.delete_comment", admin.DeleteComment)
	r.handler.RegisterMethod("admin.ban_user", admin.BanUser)
	r.handler.RegisterMethod("admin.unban_user", admin.UnbanUser)
	r.handler.RegisterMethod("admin.set_role", admin.SetRole)
	r.handler.RegisterMethod("admin.update_user", admin.UpdateUser)
	r.handler.RegisterMethod("admin.list_users", admin.ListUsers)
	r.handler.RegisterMethod("admin.reconcile", admin.Reconcile)

	methods := r.handler.Methods()
	sort.Strings(methods)
	r.logger.Debug("Registered JSON-RPC methods", zap.Strings("methods", methods))
}

// healthHandler reports store and cache health. A disabled cache is not
// a failure.
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if r.deps.Store != nil {
		checks["store"] = r.deps.Store.Driver()
		if err := r.deps.Store.Health(ctx); err != nil {
			r.logger.Warn("Store health check failed", zap.Error(err))
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	switch err := r.deps.Cache.Health(ctx); {
	case err == nil:
		checks["cache"] = "ok"
	case errors.Is(err, cache.ErrCacheDisabled):
		checks["cache"] = "disabled"
	default:
		r.logger.Warn("Cache health check failed", zap.Error(err))
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	state := "OK"
	if status != http.StatusOK {
		state = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "outreachnet-api",
		"checks":  checks,
	})
}
