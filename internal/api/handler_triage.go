package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/internal/service"
	"mailtriage/pkg/logger"
)

// ApprovalService is the approval side of the triage engine.
// *service.Approval implements it.
type ApprovalService interface {
	Pending() []model.PendingItem
	Approve(ctx context.Context, id, folder string) error
	Reject(ctx context.Context, id string) int
}

type TriageHandler struct {
	approval ApprovalService
	logger   *zap.Logger
}

func NewTriageHandler(approval ApprovalService, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{
		approval: approval,
		logger:   logger,
	}
}

// ListPending handles GET /pending
func (h *TriageHandler) ListPending(c *gin.Context) {
	items := h.approval.Pending()
	if items == nil {
		items = []model.PendingItem{}
	}
	c.JSON(http.StatusOK, items)
}

// Approve handles POST /approve
func (h *TriageHandler) Approve(c *gin.Context) {
	var req struct {
		ID     string `json:"id" binding:"required"`
		Folder string `json:"folder" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request"})
		return
	}

	err := h.approval.Approve(c.Request.Context(), req.ID, req.Folder)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error"})
	case errors.Is(err, service.ErrEmptyFolder):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
	default:
		logger.WithTrace(c.Request.Context(), h.logger).Error("Approve request failed",
			zap.String("id", req.ID),
			zap.String("operator", c.GetString(ctxSubject)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
	}
}

// Reject handles POST /reject
func (h *TriageHandler) Reject(c *gin.Context) {
	var req struct {
		ID string `json:"id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request"})
		return
	}

	h.approval.Reject(c.Request.Context(), req.ID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
