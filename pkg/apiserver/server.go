package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/apiserver/handlers"
	"github.com/ATR1285/Procure/pkg/apiserver/middleware"
	"github.com/ATR1285/Procure/pkg/auth"
	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/erp"
	"github.com/ATR1285/Procure/pkg/eventbus"
	"github.com/ATR1285/Procure/pkg/match"
	"github.com/ATR1285/Procure/pkg/store/postgres"
)

type Server struct {
	router  *gin.Engine
	db      *postgres.Store
	adapter *erp.Adapter
	local   *erp.LocalClient
	learner *match.Learner
	tokens  *auth.ApprovalTokenManager
	cfg     *config.Config
	logger  *zap.Logger
	bus     *eventbus.Bus
}

func NewServer(db *postgres.Store, adapter *erp.Adapter, local *erp.LocalClient, cfg *config.Config, logger *zap.Logger, bus *eventbus.Bus) *Server {
	s := &Server{
		db:      db,
		adapter: adapter,
		local:   local,
		learner: match.NewLearner(adapter, logger),
		tokens:  auth.NewApprovalTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.ApprovalTokenTTL),
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(s.cfg.Server.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	invoiceHandler := handlers.NewInvoiceHandler(s.db, s.learner, s.tokens, s.logger, s.bus)

	// Approval links carry their own signed token, so the decision
	// endpoint lives outside the bearer-auth group.
	r.POST("/approvals/:token", invoiceHandler.DecideByToken)

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.cfg.Auth))

		api.GET("/invoices", invoiceHandler.List)
		api.GET("/invoices/:id", invoiceHandler.Get)
		api.POST("/invoices/:id/approve", invoiceHandler.Approve)
		api.POST("/invoices/:id/reject", invoiceHandler.Reject)

		eventHandler := handlers.NewEventHandler(s.db, s.logger)
		api.POST("/events/simulate", eventHandler.Simulate)
		api.GET("/events", eventHandler.List)

		connectionHandler := handlers.NewConnectionHandler(s.db, s.adapter, s.local, s.logger)
		api.GET("/erp/connections", connectionHandler.List)
		api.POST("/erp/connections/:id/activate", connectionHandler.Activate)
		api.POST("/erp/connections/:id/test", connectionHandler.Test)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Tokens() *auth.ApprovalTokenManager {
	return s.tokens
}
