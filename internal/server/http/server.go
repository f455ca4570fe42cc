// Package httpserver exposes the dispatch engine over a JSON HTTP API.
package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scmc-ops/hoscad/internal/mw"
	"github.com/scmc-ops/hoscad/internal/service"
)

// Server wires services into gin handlers.
type Server struct {
	auth      *service.Auth
	board     *service.Board
	incidents *service.Incidents
	reporter  *service.Reporter
	messages  *service.Messages
	admin     *service.Admin
	refs      *service.Reference

	vapidPublicKey string
	now            service.Clock
	log            *zap.Logger
}

// New constructs the HTTP server with injected services.
func New(
	auth *service.Auth,
	board *service.Board,
	incidents *service.Incidents,
	reporter *service.Reporter,
	messages *service.Messages,
	admin *service.Admin,
	refs *service.Reference,
	vapidPublicKey string,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth: auth, board: board, incidents: incidents, reporter: reporter,
		messages: messages, admin: admin, refs: refs,
		vapidPublicKey: vapidPublicKey, now: time.Now, log: log,
	}
}

// Router builds the gin engine with middleware and all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.logging(), gin.Recovery())

	refCache := cache.New(5*time.Minute, 10*time.Minute)
	cached := mw.Cache(refCache, 5*time.Minute)

	api := r.Group("/api")
	api.Use(mw.RateLimit(rate.Limit(20), 40))

	api.POST("/login", s.handleLogin)
	api.GET("/vapid_public_key", s.handleVAPIDPublicKey)

	authed := api.Group("")
	authed.Use(s.authenticated())
	{
		authed.POST("/logout", s.handleLogout)
		authed.GET("/who", s.handleWho)
		authed.POST("/password", s.handleChangePassword)
		authed.GET("/users", s.handleListUsers)
		authed.POST("/users", s.handleNewUser)
		authed.DELETE("/users/:username", s.handleDelUser)

		authed.GET("/state", s.handleGetState)

		authed.GET("/units", s.handleListUnits)
		authed.GET("/units/:id", s.handleGetUnit)
		authed.PUT("/units/:id", s.handleUpsertUnit)
		authed.POST("/units/:id/touch", s.handleTouchUnit)
		authed.POST("/units/:id/undo", s.handleUndoUnit)
		authed.POST("/units/:id/logoff", s.handleLogoffUnit)
		authed.POST("/units/:id/ridoff", s.handleRidoffUnit)
		authed.GET("/units/:id/history", s.handleUnitHistory)
		authed.POST("/units/touch-onscene", s.handleTouchAllOnScene)
		authed.POST("/mass-dispatch", s.handleMassDispatch)
		authed.POST("/link", s.handleLinkUnits)
		authed.POST("/transfer", s.handleTransferIncident)

		authed.GET("/incidents", s.handleListIncidents)
		authed.GET("/incidents/:id", s.handleGetIncident)
		authed.POST("/incidents", s.handleCreateQueued)
		authed.PATCH("/incidents/:id", s.handleUpdateIncident)
		authed.POST("/incidents/:id/notes", s.handleAppendNote)
		authed.POST("/incidents/:id/touch", s.handleTouchIncident)
		authed.POST("/incidents/:id/close", s.handleCloseIncident)
		authed.POST("/incidents/:id/reopen", s.handleReopenIncident)

		authed.GET("/metrics", s.handleMetrics)
		authed.GET("/system-status", s.handleSystemStatus)
		authed.GET("/staleness", s.handleStaleness)
		authed.GET("/oos-report", s.handleOOSReport)
		authed.GET("/audit.csv", s.handleAuditCSV)
		authed.GET("/search", s.handleSearch)

		authed.GET("/messages", s.handleListMessages)
		authed.POST("/messages", s.handleSendMessage)
		authed.POST("/messages/:id/read", s.handleMarkRead)
		authed.DELETE("/messages/:id", s.handleDeleteMessage)
		authed.DELETE("/messages", s.handleDeleteAllMessages)

		authed.GET("/destinations", cached, s.handleDestinations)
		authed.GET("/addresses", cached, s.handleAddresses)
		authed.GET("/banners/:key", s.handleGetBanner)
		authed.PUT("/banners/:key", s.handleSetBanner)

		authed.POST("/admin/clear", s.handleClearData)
		authed.POST("/admin/purge", s.handlePurge)
		authed.DELETE("/admin/sessions", s.handleClearSessions)
	}

	return r
}
