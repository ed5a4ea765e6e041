package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ATR1285/Procure/pkg/erp"
	"github.com/ATR1285/Procure/pkg/model"
	"github.com/ATR1285/Procure/pkg/store/postgres"
)

type ConnectionHandler struct {
	db      *postgres.Store
	adapter *erp.Adapter
	local   *erp.LocalClient
	logger  *zap.Logger
}

func NewConnectionHandler(db *postgres.Store, adapter *erp.Adapter, local *erp.LocalClient, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{db: db, adapter: adapter, local: local, logger: logger}
}

type connectionResponse struct {
	ID             uint    `json:"id"`
	ConnectionName string  `json:"connection_name"`
	ERPType        string  `json:"erp_type"`
	APIURL         string  `json:"api_url,omitempty"`
	IsActive       bool    `json:"is_active"`
	TestStatus     string  `json:"test_status,omitempty"`
	LastTested     *string `json:"last_tested,omitempty"`
}

func (h *ConnectionHandler) List(c *gin.Context) {
	repo := postgres.NewConnectionRepository(h.db.DB())
	conns, err := repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list erp connections", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list connections"})
		return
	}

	response := make([]connectionResponse, 0, len(conns))
	for i := range conns {
		response = append(response, mapConnection(&conns[i]))
	}

	c.JSON(http.StatusOK, response)
}

// Activate switches the active ERP backend. The adapter refreshes right
// after the write, so in-flight match decisions on the old backend finish
// while new ones use the new backend.
func (h *ConnectionHandler) Activate(c *gin.Context) {
	connID, err := parseConnectionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	ctx := c.Request.Context()
	repo := postgres.NewConnectionRepository(h.db.DB())
	if err := repo.Activate(ctx, connID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		h.logger.Error("failed to activate connection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate connection"})
		return
	}

	h.adapter.Refresh(ctx)

	c.JSON(http.StatusOK, gin.H{"status": "activated"})
}

func (h *ConnectionHandler) Test(c *gin.Context) {
	connID, err := parseConnectionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	ctx := c.Request.Context()
	repo := postgres.NewConnectionRepository(h.db.DB())
	conn, err := repo.Get(ctx, connID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		h.logger.Error("failed to load connection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connection"})
		return
	}

	status := h.clientFor(conn).TestConnection(ctx)

	recorded := "failed"
	if status.OK {
		recorded = "ok"
	}
	if err := repo.RecordTest(ctx, connID, recorded); err != nil {
		h.logger.Warn("failed to record test result", zap.Error(err), zap.Uint("connection_id", connID))
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      status.OK,
		"message": status.Message,
	})
}

func (h *ConnectionHandler) clientFor(conn *model.ERPConnection) erp.Client {
	switch conn.ERPType {
	case "sap", "netsuite":
		return erp.NewRemoteClient(conn.ERPType, conn.APIURL, h.local, h.logger)
	default:
		return h.local
	}
}

func parseConnectionID(value string) (uint, error) {
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func mapConnection(conn *model.ERPConnection) connectionResponse {
	return connectionResponse{
		ID:             conn.ID,
		ConnectionName: conn.ConnectionName,
		ERPType:        conn.ERPType,
		APIURL:         conn.APIURL,
		IsActive:       conn.IsActive,
		TestStatus:     conn.TestStatus,
		LastTested:     formatTime(conn.LastTested),
	}
}
