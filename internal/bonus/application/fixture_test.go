package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/persistence/memory"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/idgen"
)

// 2024-01-01 是周一
var (
	monday  = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sunday  = time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC)
	tuesday = monday.Add(domain.Day)
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Compare(secret, password string) bool { return secret == "plain:"+password }

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (s *recordingSink) Notify(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	clock       *clock.Manual
	policy      domain.Policy
	accountRepo *memory.AccountRepository
	invRepo     *memory.InvestmentRepository
	wdrRepo     *memory.WithdrawalRepository
	sink        *recordingSink
	dispatcher  *Dispatcher
	accounts    *AccountService
	ledger      *LedgerService
	settlement  *SettlementService
	query       *QueryService
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()

	ids, err := idgen.New(1)
	require.NoError(t, err)

	f := &fixture{
		clock:       clock.NewManual(start),
		policy:      domain.DefaultPolicy(),
		accountRepo: memory.NewAccountRepository(),
		invRepo:     memory.NewInvestmentRepository(),
		wdrRepo:     memory.NewWithdrawalRepository(),
		sink:        &recordingSink{},
	}
	f.dispatcher = NewDispatcher(f.sink, nil)
	locks := NewKeyedMutex()
	tx := memory.Transactor{}

	referrals := NewReferralEngine(f.accountRepo, f.policy, f.clock, locks, f.dispatcher, nil)
	f.accounts = NewAccountService(f.accountRepo, plainHasher{}, f.policy, f.clock, locks, f.dispatcher, nil)
	f.ledger = NewLedgerService(f.accountRepo, f.invRepo, tx, ids, f.policy, f.clock, locks, referrals, f.dispatcher, nil)
	f.settlement = NewSettlementService(f.accountRepo, f.invRepo, f.wdrRepo, tx, ids, f.policy, locks, f.dispatcher, nil)
	f.query = NewQueryService(f.accountRepo, f.invRepo, f.wdrRepo)

	t.Cleanup(f.dispatcher.Wait)
	return f
}

// member 注册并审核一个账户，返回其推荐码
func (f *fixture) member(t *testing.T, username, referralCode string) string {
	t.Helper()
	ctx := context.Background()
	res, err := f.accounts.Register(ctx, RegisterCommand{
		Username:     username,
		Password:     "pw-" + username,
		Phone:        "+254700000000",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	_, err = f.accounts.Approve(ctx, username)
	require.NoError(t, err)
	return res.ReferralCode
}

// invest 提交并审核一笔投资
func (f *fixture) invest(t *testing.T, owner, amount string) *domain.Investment {
	t.Helper()
	ctx := context.Background()
	inv, err := f.ledger.Submit(ctx, SubmitCommand{
		OwnerID:       owner,
		Amount:        decimal.RequireFromString(amount),
		ReceiptNumber: "MPESA-" + strings.ToUpper(owner),
	})
	require.NoError(t, err)
	inv, err = f.ledger.ApproveInvestment(ctx, inv.ID)
	require.NoError(t, err)
	return inv
}

func (f *fixture) balance(t *testing.T, username string) decimal.Decimal {
	t.Helper()
	a, err := f.accountRepo.Get(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func requireKind(t *testing.T, err error, target *domain.Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, target), "want %v, got %v", target, err)
}
