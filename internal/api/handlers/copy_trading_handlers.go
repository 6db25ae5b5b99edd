package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/copytrading"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/metrics"
)

// CopyTradingHandler exposes the copy relationship lifecycle over HTTP
type CopyTradingHandler struct {
	service *copytrading.Service
	logger  *zap.Logger
}

// NewCopyTradingHandler creates a copy trading handler
func NewCopyTradingHandler(service *copytrading.Service, logger *zap.Logger) *CopyTradingHandler {
	return &CopyTradingHandler{service: service, logger: logger}
}

// ListTraders returns copyable traders
// GET /api/v1/copy/traders
func (h *CopyTradingHandler) ListTraders(c *gin.Context) {
	limit := parseIntParam(c, "limit", 50)
	offset := parseIntParam(c, "offset", 0)

	traders, err := h.service.ListTraders(c.Request.Context(), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"traders": traders})
}

// ListRelationships returns the caller's relationships
// GET /api/v1/copy/relationships
func (h *CopyTradingHandler) ListRelationships(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	relationships, err := h.service.ListRelationships(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"relationships": relationships})
}

// Start opens a new copy relationship
// POST /api/v1/copy/relationships
func (h *CopyTradingHandler) Start(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req entities.StartCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	rel, err := h.service.Start(c.Request.Context(), userID, &req)
	metrics.RecordOperation("copy_start", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, rel)
}

// Pause suspends distributions to a relationship
// POST /api/v1/copy/relationships/:id/pause
func (h *CopyTradingHandler) Pause(c *gin.Context) {
	h.transition(c, "copy_pause", h.service.Pause)
}

// Resume reactivates a paused relationship
// POST /api/v1/copy/relationships/:id/resume
func (h *CopyTradingHandler) Resume(c *gin.Context) {
	h.transition(c, "copy_resume", h.service.Resume)
}

// Stop terminates a relationship and releases funds
// POST /api/v1/copy/relationships/:id/stop
func (h *CopyTradingHandler) Stop(c *gin.Context) {
	h.transition(c, "copy_stop", h.service.Stop)
}

func (h *CopyTradingHandler) transition(c *gin.Context, operation string, fn func(ctx context.Context, userID, relID uuid.UUID) (*entities.CopyRelationship, error)) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	relID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rel, err := fn(c.Request.Context(), userID, relID)
	metrics.RecordOperation(operation, err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, rel)
}

// Reduce releases part of a relationship's allocation
// POST /api/v1/copy/relationships/:id/reduce
func (h *CopyTradingHandler) Reduce(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	relID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req entities.ReduceCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	rel, err := h.service.Reduce(c.Request.Context(), userID, relID, req.Amount)
	metrics.RecordOperation("copy_reduce", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, rel)
}
