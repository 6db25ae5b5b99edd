package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/withdrawal"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/metrics"
)

// WithdrawalHandler exposes wallet withdrawals over HTTP
type WithdrawalHandler struct {
	service *withdrawal.Service
	logger  *zap.Logger
}

// NewWithdrawalHandler creates a withdrawal handler
func NewWithdrawalHandler(service *withdrawal.Service, logger *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{service: service, logger: logger}
}

// Request files a withdrawal from a wallet pool
// POST /api/v1/withdrawals
func (h *WithdrawalHandler) Request(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req entities.WalletWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	tx, err := h.service.RequestFromWallet(c.Request.Context(), userID, &req)
	metrics.RecordOperation("withdrawal_request", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, tx)
}

// List returns the caller's withdrawal transactions
// GET /api/v1/withdrawals
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	limit := parseIntParam(c, "limit", 50)
	offset := parseIntParam(c, "offset", 0)

	txs, err := h.service.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"withdrawals": txs})
}

// Cancel withdraws the caller's own pending request
// POST /api/v1/withdrawals/:id/cancel
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	tx, err := h.service.Cancel(c.Request.Context(), userID, txID)
	metrics.RecordOperation("withdrawal_cancel", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, tx)
}
