package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/jipatebonus/internal/bonus/application"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/auth"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/persistence/memory"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/idgen"
	"golang.org/x/crypto/bcrypt"
)

const testAdminSecret = "admin-secret"

// 2024-01-01 是周一
var monday = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router     *gin.Engine
	clock      *clock.Manual
	dispatcher *application.Dispatcher
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewManual(monday)
	ids, err := idgen.New(7)
	require.NoError(t, err)

	policy := domain.DefaultPolicy()
	accounts := memory.NewAccountRepository()
	investments := memory.NewInvestmentRepository()
	withdrawals := memory.NewWithdrawalRepository()
	locks := application.NewKeyedMutex()
	dispatcher := application.NewDispatcher(nil, nil)
	tx := memory.Transactor{}

	referrals := application.NewReferralEngine(accounts, policy, clk, locks, dispatcher, nil)
	h := NewHandler(
		application.NewAccountService(accounts, auth.NewBcryptHasher(bcrypt.MinCost), policy, clk, locks, dispatcher, nil),
		application.NewLedgerService(accounts, investments, tx, ids, policy, clk, locks, referrals, dispatcher, nil),
		application.NewSettlementService(accounts, investments, withdrawals, tx, ids, policy, locks, dispatcher, nil),
		application.NewQueryService(accounts, investments, withdrawals),
		auth.NewTokenIssuer("jwt-secret", 30*24*time.Hour, clk.Now),
		clk,
	)

	r := gin.New()
	h.RegisterRoutes(r, testAdminSecret)
	return &testServer{router: r, clock: clk, dispatcher: dispatcher}
}

type request struct {
	method, path string
	body         any
	token        string
	admin        bool
}

func (s *testServer) do(req request) *httptest.ResponseRecorder {
	var r *http.Request
	if req.body != nil {
		b, _ := json.Marshal(req.body)
		r = httptest.NewRequest(req.method, req.path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(req.method, req.path, nil)
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.admin {
		r.Header.Set(adminSecretHeader, testAdminSecret)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// onboard 注册、审核并登录，返回访问令牌
func (s *testServer) onboard(t *testing.T, username, referralCode string) (string, string) {
	t.Helper()
	w := s.do(request{method: http.MethodPost, path: "/api/v1/register", body: gin.H{
		"username": username, "password": "pw-" + username, "referral_code": referralCode,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[map[string]any](t, w)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/admin/accounts/" + username + "/approve", admin: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(request{method: http.MethodPost, path: "/api/v1/login", body: gin.H{"username": username, "password": "pw-" + username}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[map[string]any](t, w)
	return login["token"].(string), reg["referral_code"].(string)
}

func (s *testServer) approvedInvestment(t *testing.T, token, amount string) domain.Investment {
	t.Helper()
	w := s.do(request{method: http.MethodPost, path: "/api/v1/investments", token: token, body: gin.H{
		"amount": amount, "receipt_number": "MPESA123",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decode[domain.Investment](t, w)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/admin/investments/" + inv.ID + "/approve", admin: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[domain.Investment](t, w)
}

func TestHealthz(t *testing.T) {
	s := setupRouter(t)
	w := s.do(request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := setupRouter(t)

	w := s.do(request{method: http.MethodPost, path: "/api/v1/register", body: gin.H{"username": "alice", "password": "pw-alice"}})
	require.Equal(t, http.StatusCreated, w.Code)
	reg := decode[map[string]any](t, w)
	require.Equal(t, "alice", reg["username"])
	require.Equal(t, "1000", reg["joining_fee"])

	w = s.do(request{method: http.MethodPost, path: "/api/v1/register", body: gin.H{"username": "alice", "password": "x"}})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "ALREADY_EXISTS", decode[errorResponse](t, w).Code)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/register", body: gin.H{"username": "bob"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// 未审核账户不能登录
	w = s.do(request{method: http.MethodPost, path: "/api/v1/login", body: gin.H{"username": "alice", "password": "pw-alice"}})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, domain.ReasonUnapproved, decode[errorResponse](t, w).Reason)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/admin/accounts/alice/approve", admin: true})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/login", body: gin.H{"username": "alice", "password": "pw-alice"}})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[map[string]any](t, w)
	require.NotEmpty(t, login["token"])

	w = s.do(request{method: http.MethodGet, path: "/api/v1/me", token: login["token"].(string)})
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		Account     domain.Account      `json:"account"`
		Investments []domain.Investment `json:"investments"`
	}](t, w)
	require.Equal(t, "alice", me.Account.Username)
	require.True(t, me.Account.Approved)
	require.Empty(t, me.Investments)
}

func TestLoginLockout(t *testing.T) {
	s := setupRouter(t)
	s.onboard(t, "alice", "")

	for i := 0; i < 3; i++ {
		w := s.do(request{method: http.MethodPost, path: "/api/v1/login", body: gin.H{"username": "alice", "password": "wrong"}})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(request{method: http.MethodPost, path: "/api/v1/login", body: gin.H{"username": "alice", "password": "pw-alice"}})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, domain.ReasonLocked, decode[errorResponse](t, w).Reason)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/admin/accounts/alice/unlock", admin: true})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(request{method: http.MethodPost, path: "/api/v1/login", body: gin.H{"username": "alice", "password": "pw-alice"}})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthGuards(t *testing.T) {
	s := setupRouter(t)

	w := s.do(request{method: http.MethodGet, path: "/api/v1/me"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/me", token: "garbage"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/admin/accounts"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", decode[errorResponse](t, w).Code)
}

func TestSubmitInvestmentValidation(t *testing.T) {
	s := setupRouter(t)
	token, _ := s.onboard(t, "alice", "")

	w := s.do(request{method: http.MethodPost, path: "/api/v1/investments", token: token, body: gin.H{"amount": "100"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_RANGE", decode[errorResponse](t, w).Code)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/investments", token: token, body: gin.H{"amount": "lots"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_ARGUMENT", decode[errorResponse](t, w).Code)

	w = s.do(request{method: http.MethodPost, path: "/api/v1/admin/investments/INV-1/approve", admin: true})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvestAccrueWithdraw(t *testing.T) {
	s := setupRouter(t)
	_, aliceCode := s.onboard(t, "alice", "")
	bobToken, _ := s.onboard(t, "bob", aliceCode)

	inv := s.approvedInvestment(t, bobToken, "1000")
	require.Equal(t, domain.InvestmentApproved, inv.State)

	// 周二由管理员触发计息
	s.clock.Set(monday.Add(domain.Day + time.Hour))
	w := s.do(request{method: http.MethodPost, path: "/api/v1/admin/accrual?owner_id=bob", admin: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accrual := decode[struct {
		Total decimal.Decimal `json:"total"`
	}](t, w)
	require.True(t, decimal.NewFromInt(100).Equal(accrual.Total), accrual.Total.String())

	w = s.do(request{method: http.MethodPost, path: "/api/v1/withdrawals", token: bobToken})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, domain.ReasonWrongWeekday, decode[errorResponse](t, w).Reason)

	// 下周一提现：7 天利息
	s.clock.Set(monday.Add(7 * domain.Day))
	w = s.do(request{method: http.MethodPost, path: "/api/v1/withdrawals", token: bobToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payout := decode[domain.Withdrawal](t, w)
	require.True(t, decimal.NewFromInt(1700).Equal(payout.Gross), payout.Gross.String())
	require.True(t, decimal.NewFromInt(425).Equal(payout.Fee), payout.Fee.String())
	require.True(t, decimal.NewFromInt(1275).Equal(payout.Net), payout.Net.String())

	w = s.do(request{method: http.MethodGet, path: "/api/v1/withdrawals", token: bobToken})
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Items []domain.Withdrawal `json:"items"`
		Total int64               `json:"total"`
	}](t, w)
	require.EqualValues(t, 1, history.Total)
	require.Equal(t, payout.ID, history.Items[0].ID)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/admin/investments?state=WITHDRAWN&owner_id=bob", admin: true})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode[struct {
		Total int64 `json:"total"`
	}](t, w).Total)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/admin/investments?state=bogus", admin: true})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/admin/accounts?limit=0", admin: true})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// 推荐人获得一次奖励
	w = s.do(request{method: http.MethodGet, path: "/api/v1/admin/accounts?limit=10", admin: true})
	require.Equal(t, http.StatusOK, w.Code)
	accounts := decode[struct {
		Items []domain.Account `json:"items"`
		Total int64            `json:"total"`
	}](t, w)
	require.EqualValues(t, 2, accounts.Total)
	for _, a := range accounts.Items {
		if a.Username == "alice" {
			require.True(t, decimal.NewFromInt(200).Equal(a.ReferralEarned))
		}
	}
}

func TestAdminWithdrawOnBehalf(t *testing.T) {
	s := setupRouter(t)
	s.clock.Set(monday.Add(-domain.Day))
	aliceToken, _ := s.onboard(t, "alice", "")
	s.approvedInvestment(t, aliceToken, "1000")

	s.clock.Set(monday)
	w := s.do(request{method: http.MethodPost, path: "/api/v1/admin/accounts/alice/withdraw", admin: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payout := decode[domain.Withdrawal](t, w)
	require.True(t, decimal.NewFromInt(825).Equal(payout.Net), payout.Net.String())

	w = s.do(request{method: http.MethodPost, path: "/api/v1/admin/accounts/alice/withdraw", admin: true})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/v1/admin/withdrawals?owner_id=alice", admin: true})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode[struct {
		Total int64 `json:"total"`
	}](t, w).Total)
}
