package api

import (
	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/config"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/middleware"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// RouterDeps collects everything the router needs
type RouterDeps struct {
	Config      *config.Config
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	Guard       *rbac.Guard
	Teams       *TeamHandlers
	Tasks       *TaskHandlers
}

// NewRouter assembles the full HTTP router with middleware and routes
func NewRouter(deps RouterDeps) *mux.Router {
	router := mux.NewRouter()
	router.Use(httputil.RequestID)
	router.Use(httputil.Recover(deps.Logger))
	router.Use(httputil.Logging(deps.Logger))
	if deps.Metrics != nil {
		router.Use(httputil.Metrics(deps.Metrics))
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(deps.Auth.Handler)
	if deps.RateLimiter != nil && deps.Config.RateLimit.Enabled {
		api.Use(deps.RateLimiter.Handler)
	}
	api.Use(deps.Guard.Middleware())

	deps.Teams.RegisterRoutes(api)
	deps.Tasks.RegisterRoutes(api)

	return router
}
