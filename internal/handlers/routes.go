package handlers

import (
	"context"
	"net/http"

	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/metrics"
	authmw "github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/internal/sse"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
)

const toolPrefix = "/projects/:projectId/tools/:tool"

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	JWT     *services.JWTService
	Guard   authmw.Authorizer
	Hub     *sse.Hub
	Metrics *metrics.Metrics

	Users       UserServiceInterface
	Projects    ProjectServiceInterface
	Access      AccessServiceInterface
	Invites     InviteServiceInterface
	ShareTokens ShareTokenServiceInterface
	Content     ContentServiceInterface

	BaseURL    string
	Production bool
	// Ping backs the health check; nil reports healthy.
	Ping func(ctx context.Context) error
}

// NewRouter builds the drift app with every route mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	userHandler := NewUserHandler(cfg.Users)
	projectHandler := NewProjectHandler(cfg.Projects, cfg.Users)
	sharingHandler := NewSharingHandler(cfg.Access)
	inviteHandler := NewInviteHandler(cfg.Invites, cfg.Users, cfg.BaseURL)
	shareTokenHandler := NewShareTokenHandler(cfg.ShareTokens, cfg.Content, cfg.BaseURL)
	contentHandler := NewContentHandler(cfg.Content)
	sseHandler := NewSSEHandler(cfg.Hub, cfg.Projects, cfg.Metrics)

	app := drift.New()

	if cfg.Production {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())
	app.Use(logger.RequestLogger())
	if cfg.Metrics != nil {
		app.Use(cfg.Metrics.Middleware())
	}

	api := app.Group("/api/v1")

	protected := api.Group("")
	protected.Use(authmw.Auth(cfg.JWT))

	protected.Get("/me", userHandler.Me)

	protected.Get("/projects", projectHandler.List)
	protected.Post("/projects", projectHandler.Create)
	protected.Get("/projects/:projectId", projectHandler.Get)
	protected.Patch("/projects/:projectId", projectHandler.Update)
	protected.Get("/projects/:projectId/events", sseHandler.Connect)

	protected.Get("/invites", inviteHandler.Mine)
	protected.Post("/invites/:token/accept", inviteHandler.Accept)

	toolRead := api.Group(toolPrefix)
	toolRead.Use(authmw.Auth(cfg.JWT))
	toolRead.Use(authmw.RequireTool(cfg.Guard, authz.OpRead))
	toolRead.Get("/content", contentHandler.Get)
	toolRead.Get("/sharing", sharingHandler.List)
	toolRead.Get("/share-tokens", shareTokenHandler.List)
	toolRead.Post("/leave", sharingHandler.Leave)

	toolWrite := api.Group(toolPrefix)
	toolWrite.Use(authmw.Auth(cfg.JWT))
	toolWrite.Use(authmw.RequireTool(cfg.Guard, authz.OpWrite))
	toolWrite.Patch("/content", contentHandler.Save)

	toolManage := api.Group(toolPrefix)
	toolManage.Use(authmw.Auth(cfg.JWT))
	toolManage.Use(authmw.RequireTool(cfg.Guard, authz.OpManageSharing))
	toolManage.Post("/invites", inviteHandler.Create)
	toolManage.Delete("/invites/:inviteId", inviteHandler.Revoke)
	toolManage.Post("/access", sharingHandler.Grant)
	toolManage.Delete("/access/:userId", sharingHandler.Revoke)
	toolManage.Post("/share-tokens", shareTokenHandler.Create)
	toolManage.Delete("/share-tokens/:tokenId", shareTokenHandler.Revoke)

	// Public routes (no auth required)
	api.Get("/invites/:token", inviteHandler.Get)
	api.Get("/shared/:token", shareTokenHandler.Shared)
	api.Get("/health", func(c *drift.Context) {
		if cfg.Ping != nil {
			if err := cfg.Ping(c.Request.Context()); err != nil {
				_ = c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	app.Get("/invite/:token", inviteHandler.ViewInvite)

	return app
}
