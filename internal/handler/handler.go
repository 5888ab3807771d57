package handler

import (
	"strconv"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/lock"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/risk"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/service"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler bundles every service the HTTP surface exposes.
type Handler struct {
	accountService     *service.AccountService
	transactionService *service.TransactionService
	crossBorderService *service.CrossBorderService
	reconcileService   *service.ReconcileService
	rateRepo           *repository.RateRepository
	engine             *risk.Engine
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	locks := lock.NewRedisFactory(rdb)
	engine := risk.NewEngine(service.RiskConfigFromApp(cfg), service.NewTransactionHistory(db))
	txNotifier := service.NewNotifier(db, cfg.Kafka.Topic.NotificationEvents)
	cbNotifier := service.NewNotifier(db, cfg.Kafka.Topic.CrossBorderEvents)

	return &Handler{
		accountService:     service.NewAccountService(db, cfg),
		transactionService: service.NewTransactionService(db, cfg, locks, engine, txNotifier),
		crossBorderService: service.NewCrossBorderService(db, cfg, locks, engine, cbNotifier),
		reconcileService:   service.NewReconcileService(db),
		rateRepo:           repository.NewRateRepository(db),
		engine:             engine,
	}
}

// ============================================================
// Account endpoints
// ============================================================

// RegisterUserRequest creates a user profile.
type RegisterUserRequest struct {
	UserID               string `json:"user_id" binding:"required"`
	FullName             string `json:"full_name" binding:"required"`
	Phone                string `json:"phone"`
	CountryCode          string `json:"country_code" binding:"required,len=2"`
	InternationalEnabled bool   `json:"international_enabled"`
	IdentityVerified     bool   `json:"identity_verified"`
}

// RegisterUser registers a user profile.
// POST /api/v1/account/register
func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	user := &model.User{
		UserID:               req.UserID,
		FullName:             req.FullName,
		Phone:                req.Phone,
		CountryCode:          req.CountryCode,
		InternationalEnabled: req.InternationalEnabled,
		IdentityVerified:     req.IdentityVerified,
		Active:               true,
	}

	if err := h.accountService.RegisterUser(c.Request.Context(), user); err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, user)
}

// GetUser returns a user profile.
// GET /api/v1/account/detail?user_id=xxx
func (h *Handler) GetUser(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}

	user, err := h.accountService.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, user)
}

// GetBalance returns one currency balance, creating the account lazily.
// GET /api/v1/account/balance?user_id=xxx&currency=USD
func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.Query("user_id")
	currency := c.Query("currency")
	if userID == "" || currency == "" {
		response.ParamError(c, "user_id and currency are required")
		return
	}

	account, err := h.accountService.GetBalance(c.Request.Context(), userID, currency)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":       account.UserID,
		"currency":      account.Currency,
		"balance":       account.Balance,
		"daily_limit":   account.DailyLimit,
		"monthly_limit": account.MonthlyLimit,
	})
}

// ListAccounts returns every currency balance the user holds.
// GET /api/v1/account/list?user_id=xxx
func (h *Handler) ListAccounts(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}

	accounts, err := h.accountService.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"list": accounts})
}

// ListTransactions pages through a user's transaction history.
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// Operation endpoints
// ============================================================

// OperationRequest is the generic single-account posting request. Transfers
// and top-ups have dedicated endpoints that fill in type and category.
type OperationRequest struct {
	RequestID        string   `json:"request_id"`
	UserID           string   `json:"user_id" binding:"required"`
	Amount           string   `json:"amount" binding:"required"`
	Currency         string   `json:"currency" binding:"required,len=3"`
	Type             string   `json:"type" binding:"required,oneof=DEBIT CREDIT"`
	Category         string   `json:"category" binding:"required"`
	Description      string   `json:"description"`
	RecipientID      string   `json:"recipient_id"`
	RecipientCountry string   `json:"recipient_country"`
	GeoLat           *float64 `json:"geo_lat"`
	GeoLon           *float64 `json:"geo_lon"`
}

func (r *OperationRequest) toOperation() (*service.Operation, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, err
	}
	return &service.Operation{
		RequestID:        r.RequestID,
		UserID:           r.UserID,
		Amount:           amount,
		Currency:         r.Currency,
		Type:             r.Type,
		Category:         r.Category,
		Description:      r.Description,
		RecipientID:      r.RecipientID,
		RecipientCountry: r.RecipientCountry,
		GeoLat:           r.GeoLat,
		GeoLon:           r.GeoLon,
	}, nil
}

// ExecuteOperation runs one financial operation through the full pipeline:
// validation, spending limits, risk scoring, then the ledger posting.
// POST /api/v1/operation/execute
func (h *Handler) ExecuteOperation(c *gin.Context) {
	var req OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	op, err := req.toOperation()
	if err != nil {
		response.ParamError(c, "invalid amount: "+err.Error())
		return
	}

	result, err := h.transactionService.ProcessOperation(c.Request.Context(), op)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// TopupRequest credits a wallet from an external funding source.
type TopupRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Currency  string `json:"currency" binding:"required,len=3"`
}

// Topup credits an account.
// POST /api/v1/account/topup
func (h *Handler) Topup(c *gin.Context) {
	var req TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount: "+err.Error())
		return
	}

	result, err := h.transactionService.ProcessOperation(c.Request.Context(), &service.Operation{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Amount:    amount,
		Currency:  req.Currency,
		Type:      service.OperationCredit,
		Category:  model.CategoryTopup,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// TransferRequest is a domestic wallet-to-wallet transfer.
type TransferRequest struct {
	RequestID   string   `json:"request_id"`
	UserID      string   `json:"user_id" binding:"required"`
	RecipientID string   `json:"recipient_id" binding:"required"`
	Amount      string   `json:"amount" binding:"required"`
	Currency    string   `json:"currency" binding:"required,len=3"`
	Description string   `json:"description"`
	GeoLat      *float64 `json:"geo_lat"`
	GeoLon      *float64 `json:"geo_lon"`
}

// Transfer debits the sender and credits the recipient in the same
// currency. If the credit leg fails the debit is compensated and the
// response carries both record numbers.
// POST /api/v1/transfer/execute
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount: "+err.Error())
		return
	}

	result, err := h.transactionService.ProcessOperation(c.Request.Context(), &service.Operation{
		RequestID:   req.RequestID,
		UserID:      req.UserID,
		Amount:      amount,
		Currency:    req.Currency,
		Type:        service.OperationDebit,
		Category:    model.CategoryTransferOut,
		Description: req.Description,
		RecipientID: req.RecipientID,
		GeoLat:      req.GeoLat,
		GeoLon:      req.GeoLon,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// Cross-border endpoints
// ============================================================

// CrossBorderInitiateRequest starts a currency-converting payment.
type CrossBorderInitiateRequest struct {
	RequestID         string   `json:"request_id" binding:"required"`
	SenderID          string   `json:"sender_id" binding:"required"`
	RecipientID       string   `json:"recipient_id" binding:"required"`
	Amount            string   `json:"amount" binding:"required"`
	SenderCurrency    string   `json:"sender_currency" binding:"required,len=3"`
	RecipientCurrency string   `json:"recipient_currency" binding:"required,len=3"`
	Purpose           string   `json:"purpose"`
	GeoLat            *float64 `json:"geo_lat"`
	GeoLon            *float64 `json:"geo_lon"`
}

// InitiateCrossBorder starts a cross-border payment. A payment parked for
// compliance review is reported with its own business code and the payment
// body, so the client can poll it; it is not a failure.
// POST /api/v1/crossborder/initiate
func (h *Handler) InitiateCrossBorder(c *gin.Context) {
	var req CrossBorderInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount: "+err.Error())
		return
	}

	payment, err := h.crossBorderService.Initiate(c.Request.Context(), &service.InitiateRequest{
		RequestID:         req.RequestID,
		SenderID:          req.SenderID,
		RecipientID:       req.RecipientID,
		SenderAmount:      amount,
		SenderCurrency:    req.SenderCurrency,
		RecipientCurrency: req.RecipientCurrency,
		Purpose:           req.Purpose,
		GeoLat:            req.GeoLat,
		GeoLon:            req.GeoLon,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, payment)
}

// CompleteCrossBorder confirms provider settlement for a payment.
// POST /api/v1/crossborder/complete
func (h *Handler) CompleteCrossBorder(c *gin.Context) {
	var req struct {
		PaymentNo         string `json:"payment_no" binding:"required"`
		ProviderReference string `json:"provider_reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	payment, err := h.crossBorderService.Complete(c.Request.Context(), req.PaymentNo, req.ProviderReference)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, payment)
}

// GetCrossBorder returns one payment.
// GET /api/v1/crossborder/detail?payment_no=xxx
func (h *Handler) GetCrossBorder(c *gin.Context) {
	paymentNo := c.Query("payment_no")
	if paymentNo == "" {
		response.ParamError(c, "payment_no is required")
		return
	}

	payment, err := h.crossBorderService.GetPayment(c.Request.Context(), paymentNo)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, payment)
}

// ListCrossBorder pages through a user's cross-border payments.
// GET /api/v1/crossborder/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListCrossBorder(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	payments, total, err := h.crossBorderService.ListPayments(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      payments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// Compliance endpoints
// ============================================================

// ApproveHold releases a held payment and executes its postings.
// POST /api/v1/compliance/approve
func (h *Handler) ApproveHold(c *gin.Context) {
	var req struct {
		PaymentNo string `json:"payment_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	payment, err := h.crossBorderService.ApproveHold(c.Request.Context(), req.PaymentNo)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, payment)
}

// RejectHold terminally rejects a held payment.
// POST /api/v1/compliance/reject
func (h *Handler) RejectHold(c *gin.Context) {
	var req struct {
		PaymentNo string `json:"payment_no" binding:"required"`
		Reason    string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	payment, err := h.crossBorderService.RejectHold(c.Request.Context(), req.PaymentNo, req.Reason)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, payment)
}

// RequestDocuments asks the sender for supporting documents.
// POST /api/v1/compliance/request-documents
func (h *Handler) RequestDocuments(c *gin.Context) {
	var req struct {
		PaymentNo string `json:"payment_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	payment, err := h.crossBorderService.RequestDocuments(c.Request.Context(), req.PaymentNo)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, payment)
}

// ============================================================
// Risk endpoints
// ============================================================

// AssessRequest scores a hypothetical operation without posting anything.
type AssessRequest struct {
	UserID           string   `json:"user_id" binding:"required"`
	RecipientID      string   `json:"recipient_id"`
	Amount           string   `json:"amount" binding:"required"`
	Currency         string   `json:"currency" binding:"required,len=3"`
	Category         string   `json:"category" binding:"required"`
	RecipientCountry string   `json:"recipient_country"`
	CrossBorder      bool     `json:"cross_border"`
	GeoLat           *float64 `json:"geo_lat"`
	GeoLon           *float64 `json:"geo_lon"`
}

// Assess runs the risk engine standalone. Read-only: nothing is posted and
// no limits are consumed.
// POST /api/v1/risk/assess
func (h *Handler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount: "+err.Error())
		return
	}

	assessment, err := h.engine.Assess(c.Request.Context(), risk.Context{
		UserID:           req.UserID,
		RecipientID:      req.RecipientID,
		Amount:           amount,
		Currency:         req.Currency,
		Category:         req.Category,
		OccurredAt:       time.Now(),
		RecipientCountry: req.RecipientCountry,
		CrossBorder:      req.CrossBorder,
		SenderLat:        req.GeoLat,
		SenderLon:        req.GeoLon,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, assessment)
}

// ============================================================
// Reconciliation endpoints
// ============================================================

// ValidateBalance replays one account's history against its stored balance.
// GET /api/v1/reconcile/validate?user_id=xxx&currency=USD
func (h *Handler) ValidateBalance(c *gin.Context) {
	userID := c.Query("user_id")
	currency := c.Query("currency")
	if userID == "" || currency == "" {
		response.ParamError(c, "user_id and currency are required")
		return
	}

	result, err := h.reconcileService.ValidateBalance(c.Request.Context(), userID, currency)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// ValidateUser replays every account the user holds.
// GET /api/v1/reconcile/user?user_id=xxx
func (h *Handler) ValidateUser(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}

	results, err := h.reconcileService.ValidateUser(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"list": results})
}

// ============================================================
// Exchange rate endpoints
// ============================================================

// ListRates returns the active rate table.
// GET /api/v1/rates/list
func (h *Handler) ListRates(c *gin.Context) {
	rates, err := h.rateRepo.ListActive(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"list": rates})
}
