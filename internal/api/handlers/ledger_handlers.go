package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/ledger"
)

// LedgerHandler exposes account balances and the journal over HTTP
type LedgerHandler struct {
	service *ledger.Service
	logger  *zap.Logger
}

// NewLedgerHandler creates a ledger handler
func NewLedgerHandler(service *ledger.Service, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{service: service, logger: logger}
}

// Snapshot returns the caller's pool balances and recent journal lines
// GET /api/v1/ledger
func (h *LedgerHandler) Snapshot(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	recent := parseIntParam(c, "recent", 10)

	snapshot, err := h.service.Snapshot(c.Request.Context(), userID, recent)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, snapshot)
}

// Lines returns the caller's journal lines, newest first
// GET /api/v1/ledger/lines
func (h *LedgerHandler) Lines(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	limit := parseIntParam(c, "limit", 50)
	offset := parseIntParam(c, "offset", 0)

	lines, err := h.service.ListLines(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"lines": lines})
}

// Settlements returns the caller's settlement audit trail
// GET /api/v1/ledger/settlements
func (h *LedgerHandler) Settlements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	limit := parseIntParam(c, "limit", 50)
	offset := parseIntParam(c, "offset", 0)

	events, err := h.service.ListSettlements(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"settlements": events})
}
