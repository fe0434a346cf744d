package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"hytun/internal/auth"
	"hytun/internal/config"
	"hytun/internal/monitor"
	"hytun/internal/node"
	"hytun/internal/service"
	"hytun/internal/storage/sqlite"
	"hytun/internal/subscription"
)

// Server is the HTTP management API. It is thin glue: every handler
// delegates to the registry, auth, or service layers and translates their
// results into the response envelope.
type Server struct {
	engine   *gin.Engine
	sessions *auth.SessionManager
	creds    *auth.CredentialStore
	registry *node.Registry
	subs     *subscription.Manager
	svc      *service.Controller
	mon      *monitor.Monitor
	settings *config.Manager
	history  *sqlite.DB
}

// Options bundles the collaborators the server fronts.
type Options struct {
	Sessions *auth.SessionManager
	Creds    *auth.CredentialStore
	Registry *node.Registry
	Subs     *subscription.Manager
	Service  *service.Controller
	Monitor  *monitor.Monitor
	Settings *config.Manager
	History  *sqlite.DB
}

// New builds the router.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		sessions: opts.Sessions,
		creds:    opts.Creds,
		registry: opts.Registry,
		subs:     opts.Subs,
		svc:      opts.Service,
		mon:      opts.Monitor,
		settings: opts.Settings,
		history:  opts.History,
	}

	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.POST("/login", s.handleLogin)

	authed := api.Group("", s.requireSession())
	{
		authed.POST("/logout", s.handleLogout)
		authed.GET("/session", s.handleSessionInfo)

		authed.GET("/status", s.handleStatus)
		authed.GET("/logs", s.handleLogs)

		authed.GET("/nodes", s.handleListNodes)
		authed.POST("/nodes", s.handleAddNode)
		authed.PUT("/nodes/:id", s.handleUpdateNode)
		authed.DELETE("/nodes/:id", s.handleDeleteNode)
		authed.POST("/nodes/:id/use", s.handleUseNode)

		authed.POST("/service/:action", s.handleServiceAction)

		authed.GET("/subscriptions", s.handleListSubscriptions)
		authed.POST("/subscriptions", s.handleImportSubscription)
		authed.POST("/subscriptions/refresh", s.handleRefreshSubscriptions)

		authed.POST("/user/password", s.handleChangePassword)
		authed.POST("/user/rename", s.handleRename)

		authed.GET("/settings", s.handleGetSettings)

		admin := authed.Group("", s.requireAdmin())
		{
			admin.PUT("/settings", s.handleUpdateSettings)
			admin.GET("/users", s.handleListUsers)
			admin.GET("/audit/logins", s.handleLoginAudit)
			admin.GET("/history/status", s.handleStatusHistory)
		}
	}
}

// Run serves the API until the listener fails.
func (s *Server) Run(host string, port int) error {
	return s.engine.Run(fmt.Sprintf("%s:%d", host, port))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
