package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/investing"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/metrics"
)

// InvestmentHandler exposes plan subscription and the investment lifecycle over HTTP
type InvestmentHandler struct {
	service *investing.Service
	logger  *zap.Logger
}

// NewInvestmentHandler creates an investment handler
func NewInvestmentHandler(service *investing.Service, logger *zap.Logger) *InvestmentHandler {
	return &InvestmentHandler{service: service, logger: logger}
}

// ListPlans returns available investment plans
// GET /api/v1/plans
func (h *InvestmentHandler) ListPlans(c *gin.Context) {
	limit := parseIntParam(c, "limit", 50)
	offset := parseIntParam(c, "offset", 0)

	plans, err := h.service.ListPlans(c.Request.Context(), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"plans": plans})
}

// PlanCapacity reports a plan's allocation headroom
// GET /api/v1/plans/:id/capacity
func (h *InvestmentHandler) PlanCapacity(c *gin.Context) {
	planID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	capacity, err := h.service.PlanCapacity(c.Request.Context(), planID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, capacity)
}

// ListInvestments returns the caller's investments
// GET /api/v1/investments
func (h *InvestmentHandler) ListInvestments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	investments, err := h.service.ListInvestments(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"investments": investments})
}

// Subscribe opens a new investment in a plan
// POST /api/v1/investments
func (h *InvestmentHandler) Subscribe(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req entities.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	inv, err := h.service.Subscribe(c.Request.Context(), userID, &req)
	metrics.RecordOperation("investment_subscribe", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, inv)
}

// IncreaseEquity adds funds to an active investment
// POST /api/v1/investments/:id/equity
func (h *InvestmentHandler) IncreaseEquity(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	investmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req entities.IncreaseEquityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	inv, err := h.service.IncreaseEquity(c.Request.Context(), userID, investmentID, req.Amount)
	metrics.RecordOperation("investment_increase", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, inv)
}

// RequestWithdrawal files a withdrawal against an active investment
// POST /api/v1/investments/:id/withdrawals
func (h *InvestmentHandler) RequestWithdrawal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}
	investmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req entities.InvestmentWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	tx, err := h.service.RequestWithdrawal(c.Request.Context(), userID, investmentID, &req)
	metrics.RecordOperation("investment_withdrawal_request", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, tx)
}
