package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/application"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
)

const maxPageSize = 200

// TokenService 访问令牌签发与校验
type TokenService interface {
	Issue(username string) (string, time.Time, error)
	Parse(token string) (string, error)
}

// Handler 奖金平台 HTTP 处理器
type Handler struct {
	accounts   *application.AccountService
	ledger     *application.LedgerService
	settlement *application.SettlementService
	query      *application.QueryService
	tokens     TokenService
	clock      clock.Clock
}

// NewHandler 创建 HTTP 处理器
func NewHandler(
	accounts *application.AccountService,
	ledger *application.LedgerService,
	settlement *application.SettlementService,
	query *application.QueryService,
	tokens TokenService,
	clk clock.Clock,
) *Handler {
	return &Handler{
		accounts:   accounts,
		ledger:     ledger,
		settlement: settlement,
		query:      query,
		tokens:     tokens,
		clock:      clk,
	}
}

// RegisterRoutes 注册路由，throttle 作用于注册与登录
func (h *Handler) RegisterRoutes(router *gin.Engine, adminSecret string, throttle ...gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	throttled := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, throttle...), handler)
	}

	api := router.Group("/api/v1")
	{
		api.POST("/register", throttled(h.Register)...)
		api.POST("/login", throttled(h.Login)...)
	}

	user := api.Group("", BearerMiddleware(h.tokens))
	{
		user.GET("/me", h.Me)
		user.POST("/investments", h.SubmitInvestment)
		user.POST("/withdrawals", h.Withdraw)
		user.GET("/withdrawals", h.MyWithdrawals)
	}

	admin := api.Group("/admin", AdminSecretMiddleware(adminSecret))
	{
		admin.POST("/accounts/:username/approve", h.ApproveAccount)
		admin.POST("/accounts/:username/unlock", h.UnlockAccount)
		admin.POST("/accounts/:username/withdraw", h.WithdrawOnBehalf)
		admin.POST("/investments/:id/approve", h.ApproveInvestment)
		admin.POST("/accrual", h.Accrue)
		admin.GET("/accounts", h.ListAccounts)
		admin.GET("/investments", h.ListInvestments)
		admin.GET("/withdrawals", h.ListWithdrawals)
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

// Register 注册账户
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.accounts.Register(c.Request.Context(), application.RegisterCommand{
		Username:     req.Username,
		Password:     req.Password,
		Phone:        req.Phone,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"username":      res.Username,
		"referral_code": res.ReferralCode,
		"joining_fee":   res.JoiningFee,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并签发访问令牌
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	account, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	token, expires, err := h.tokens.Issue(account.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC(),
	})
}

// Me 当前账户及其投资
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	username := currentUser(c)

	account, err := h.accounts.GetAccount(ctx, username)
	if err != nil {
		writeError(c, err)
		return
	}
	investments, _, err := h.query.ListInvestments(ctx, domain.InvestmentFilter{OwnerID: username}, 0, 0)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":     account,
		"investments": investments,
	})
}

// SubmitInvestmentRequest 提交投资请求，金额为十进制字符串
type SubmitInvestmentRequest struct {
	Amount        string `json:"amount" binding:"required"`
	ReceiptNumber string `json:"receipt_number"`
}

// SubmitInvestment 提交投资
func (h *Handler) SubmitInvestment(c *gin.Context) {
	var req SubmitInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(c, "invalid amount")
		return
	}

	inv, err := h.ledger.Submit(c.Request.Context(), application.SubmitCommand{
		OwnerID:       currentUser(c),
		Amount:        amount,
		ReceiptNumber: req.ReceiptNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// Withdraw 本人提现
func (h *Handler) Withdraw(c *gin.Context) {
	username := currentUser(c)
	h.withdraw(c, application.Actor{Username: username}, username)
}

// WithdrawOnBehalf 管理员代为提现
func (h *Handler) WithdrawOnBehalf(c *gin.Context) {
	h.withdraw(c, application.Actor{Username: "admin", Admin: true}, c.Param("username"))
}

func (h *Handler) withdraw(c *gin.Context, actor application.Actor, ownerID string) {
	payout, err := h.settlement.Withdraw(c.Request.Context(), actor, ownerID, h.clock.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

// MyWithdrawals 本人提现记录
func (h *Handler) MyWithdrawals(c *gin.Context) {
	h.listWithdrawals(c, currentUser(c))
}

// ApproveAccount 审核账户
func (h *Handler) ApproveAccount(c *gin.Context) {
	account, err := h.accounts.Approve(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// UnlockAccount 解锁账户
func (h *Handler) UnlockAccount(c *gin.Context) {
	account, err := h.accounts.Unlock(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ApproveInvestment 审核投资
func (h *Handler) ApproveInvestment(c *gin.Context) {
	inv, err := h.ledger.ApproveInvestment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Accrue 立即计息，可用 owner_id 限定单个账户
func (h *Handler) Accrue(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.clock.Now()

	var credits []application.Credit
	if owner := c.Query("owner_id"); owner != "" {
		amount, err := h.ledger.AccrueOwner(ctx, owner, now)
		if err != nil {
			writeError(c, err)
			return
		}
		if amount.IsPositive() {
			credits = append(credits, application.Credit{OwnerID: owner, Amount: amount})
		}
	} else {
		var err error
		credits, err = h.ledger.Accrue(ctx, now)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	total := decimal.Zero
	items := make([]gin.H, 0, len(credits))
	for _, cr := range credits {
		total = total.Add(cr.Amount)
		items = append(items, gin.H{"owner_id": cr.OwnerID, "amount": cr.Amount})
	}
	c.JSON(http.StatusOK, gin.H{
		"credits": items,
		"total":   total,
		"as_of":   now,
	})
}

// ListAccounts 账户列表
func (h *Handler) ListAccounts(c *gin.Context) {
	limit, offset, ok := pageParams(c)
	if !ok {
		return
	}
	accounts, total, err := h.query.ListAccounts(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": accounts, "total": total})
}

// ListInvestments 投资列表，支持 owner_id 与 state 过滤
func (h *Handler) ListInvestments(c *gin.Context) {
	limit, offset, ok := pageParams(c)
	if !ok {
		return
	}
	filter := domain.InvestmentFilter{OwnerID: c.Query("owner_id")}
	if s := c.Query("state"); s != "" {
		state, valid := domain.ParseInvestmentState(s)
		if !valid {
			badRequest(c, "invalid state")
			return
		}
		filter.State = state
	}

	investments, total, err := h.query.ListInvestments(c.Request.Context(), filter, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": investments, "total": total})
}

// ListWithdrawals 全部提现记录，可按 owner_id 过滤
func (h *Handler) ListWithdrawals(c *gin.Context) {
	h.listWithdrawals(c, c.Query("owner_id"))
}

func (h *Handler) listWithdrawals(c *gin.Context, ownerID string) {
	limit, offset, ok := pageParams(c)
	if !ok {
		return
	}
	withdrawals, total, err := h.query.ListWithdrawals(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": withdrawals, "total": total})
}

func pageParams(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = 50, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "invalid offset")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
