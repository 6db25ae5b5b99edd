package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/copytrading"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/distribution"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/investing"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/ledger"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/withdrawal"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/metrics"
)

// AdminHandler exposes operator actions: profit events, withdrawal review,
// maturation sweeps, and trader/plan registration.
type AdminHandler struct {
	ledger       *ledger.Service
	copyTrading  *copytrading.Service
	investing    *investing.Service
	distribution *distribution.Service
	withdrawals  *withdrawal.Service
	logger       *zap.Logger
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(
	ledgerSvc *ledger.Service,
	copySvc *copytrading.Service,
	investSvc *investing.Service,
	distSvc *distribution.Service,
	withdrawalSvc *withdrawal.Service,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		ledger:       ledgerSvc,
		copyTrading:  copySvc,
		investing:    investSvc,
		distribution: distSvc,
		withdrawals:  withdrawalSvc,
		logger:       logger,
	}
}

// Distribute applies a profit event across followers or plan investors
// POST /api/v1/admin/profit-events
func (h *AdminHandler) Distribute(c *gin.Context) {
	var event entities.ProfitEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.distribution.Distribute(c.Request.Context(), &event)
	metrics.RecordOperation("profit_distribute", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	metrics.DistributionFanout.Observe(float64(result.AffectedUsers))
	respondSuccess(c, result)
}

// ListPendingWithdrawals returns withdrawal requests awaiting review
// GET /api/v1/admin/withdrawals
func (h *AdminHandler) ListPendingWithdrawals(c *gin.Context) {
	limit := parseIntParam(c, "limit", 50)
	offset := parseIntParam(c, "offset", 0)

	txs, err := h.withdrawals.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"withdrawals": txs})
}

// ApproveWithdrawal settles a pending withdrawal
// POST /api/v1/admin/withdrawals/:id/approve
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	tx, err := h.withdrawals.Approve(c.Request.Context(), txID)
	metrics.RecordOperation("withdrawal_approve", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, tx)
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectWithdrawal declines a pending withdrawal
// POST /api/v1/admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req rejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "reason is required")
		return
	}

	tx, err := h.withdrawals.Reject(c.Request.Context(), txID, req.Reason)
	metrics.RecordOperation("withdrawal_reject", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, tx)
}

// MatureDue sweeps investments whose lock period has elapsed
// POST /api/v1/admin/investments/mature-due
func (h *AdminHandler) MatureDue(c *gin.Context) {
	batchSize := parseIntParam(c, "batch_size", 0)

	matured, err := h.investing.MatureDue(c.Request.Context(), batchSize)
	metrics.RecordOperation("mature_due", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	metrics.MaturedInvestments.Add(float64(matured))
	respondSuccess(c, gin.H{"matured": matured})
}

// MatureInvestment matures a single due investment
// POST /api/v1/admin/investments/:id/mature
func (h *AdminHandler) MatureInvestment(c *gin.Context) {
	investmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.investing.Mature(c.Request.Context(), investmentID)
	metrics.RecordOperation("investment_mature", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, inv)
}

// CreateTrader registers a copyable trader
// POST /api/v1/admin/traders
func (h *AdminHandler) CreateTrader(c *gin.Context) {
	var req entities.CreateTraderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	trader, err := h.copyTrading.CreateTrader(c.Request.Context(), &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, trader)
}

// CreatePlan registers an investment plan
// POST /api/v1/admin/plans
func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req entities.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	plan, err := h.investing.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, plan)
}

// CreateAccount opens a ledger account for a user
// POST /api/v1/admin/accounts/:user_id
func (h *AdminHandler) CreateAccount(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, account)
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description"`
}

// Deposit credits a user's main balance
// POST /api/v1/admin/accounts/:user_id/deposit
func (h *AdminHandler) Deposit(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Description == "" {
		req.Description = "deposit"
	}

	account, err := h.ledger.Deposit(c.Request.Context(), userID, req.Amount, req.Description)
	metrics.RecordOperation("deposit", err)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, account)
}

// VerifyConservation recomputes a user's journal sum against pool balances
// GET /api/v1/admin/accounts/:user_id/conservation
func (h *AdminHandler) VerifyConservation(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.ledger.VerifyConservation(c.Request.Context(), userID); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"conserved": true})
}
