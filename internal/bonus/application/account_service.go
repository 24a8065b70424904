package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
)

const referralCodeAttempts = 5

// RegisterCommand 注册命令
type RegisterCommand struct {
	Username     string
	Password     string
	Phone        string
	ReferralCode string
}

// RegisterResult 注册结果
type RegisterResult struct {
	Username     string
	ReferralCode string
	// 本次注册应缴的入会费，仅供展示
	JoiningFee decimal.Decimal
}

// AccountService 账户注册、登录、审核与解锁
type AccountService struct {
	accounts   domain.AccountRepository
	hasher     domain.PasswordHasher
	policy     domain.Policy
	clock      clock.Clock
	locks      *KeyedMutex
	dispatcher *Dispatcher
	metrics    metrics.MetricsCollector
}

func NewAccountService(
	accounts domain.AccountRepository,
	hasher domain.PasswordHasher,
	policy domain.Policy,
	clk clock.Clock,
	locks *KeyedMutex,
	dispatcher *Dispatcher,
	collector metrics.MetricsCollector,
) *AccountService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AccountService{
		accounts:   accounts,
		hasher:     hasher,
		policy:     policy,
		clock:      clk,
		locks:      locks,
		dispatcher: dispatcher,
		metrics:    collector,
	}
}

// Register 创建账户。推荐码无法匹配时静默忽略。
func (s *AccountService) Register(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" || cmd.Password == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "", "username and password are required")
	}

	secret, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	existing, err := s.accounts.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if existing != nil {
		return nil, domain.Errorf(domain.KindAlreadyExists, "", "username %s is taken", username)
	}

	referredBy, err := s.resolveReferrer(ctx, cmd.ReferralCode)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var account *domain.Account
	for attempt := 0; ; attempt++ {
		code, err := s.freshReferralCode(ctx)
		if err != nil {
			return nil, err
		}
		account = domain.NewAccount(username, secret, strings.TrimSpace(cmd.Phone), code, referredBy, now)
		err = s.accounts.Create(ctx, account)
		if err == nil {
			break
		}
		// 推荐码在并发注册中撞车时重试；用户名冲突已在锁内排除
		if !isAlreadyExists(err) || attempt+1 >= referralCodeAttempts {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}

	s.metrics.RecordRegistration()
	logger.Info(ctx, "account registered", "username", username, "referred_by", referredBy)
	s.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventRegistered,
		AccountID:  username,
		Amount:     decimal.Zero,
		Message:    fmt.Sprintf("new registration %s (phone %s)", username, account.Phone),
		OccurredAt: now,
	})

	return &RegisterResult{
		Username:     username,
		ReferralCode: account.ReferralCode,
		JoiningFee:   s.policy.JoiningFeeAt(now),
	}, nil
}

func (s *AccountService) resolveReferrer(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	referrer, err := s.accounts.GetByReferralCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to resolve referral code: %w", err)
	}
	if referrer == nil {
		logger.Info(ctx, "ignoring unknown referral code", "code", code)
		return "", nil
	}
	return code, nil
}

func (s *AccountService) freshReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
		owner, err := s.accounts.GetByReferralCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if owner == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique referral code after %d attempts", referralCodeAttempts)
}

// Login 校验口令。连续失败达到阈值即锁定，直到管理员解锁。
func (s *AccountService) Login(ctx context.Context, username, password string) (*domain.Account, error) {
	unlock := s.locks.Lock(username)

	account, err := s.accounts.Get(ctx, username)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		unlock()
		s.metrics.RecordLogin("not_found")
		return nil, domain.Errorf(domain.KindNotFound, "", "account %s not found", username)
	}
	if err := account.CheckActive(); err != nil {
		unlock()
		s.metrics.RecordLogin("forbidden")
		return nil, err
	}

	now := s.clock.Now()
	if !s.hasher.Compare(account.PasswordSecret, password) {
		locked := account.RecordFailedLogin(s.policy.MaxFailedLogins, now)
		if err := s.accounts.Save(ctx, account); err != nil {
			unlock()
			return nil, fmt.Errorf("failed to save account: %w", err)
		}
		unlock()

		s.metrics.RecordLogin("bad_password")
		if locked {
			logger.Warn(ctx, "account locked after failed logins", "username", username, "attempts", account.FailedLoginCount)
			s.dispatcher.Dispatch(ctx, domain.Event{
				Type:       domain.EventAccountLocked,
				AccountID:  username,
				Amount:     decimal.Zero,
				Message:    fmt.Sprintf("account %s locked after %d failed logins", username, account.FailedLoginCount),
				OccurredAt: now,
			})
		}
		return nil, domain.Errorf(domain.KindUnauthorized, "", "invalid credentials")
	}

	if account.ResetFailedLogins(now) {
		if err := s.accounts.Save(ctx, account); err != nil {
			unlock()
			return nil, fmt.Errorf("failed to save account: %w", err)
		}
	}
	unlock()

	s.metrics.RecordLogin("success")
	return account, nil
}

// Approve 管理员审核账户，可重复调用
func (s *AccountService) Approve(ctx context.Context, username string) (*domain.Account, error) {
	return s.mutate(ctx, username, func(a *domain.Account) {
		a.Approve(s.clock.Now())
	})
}

// Unlock 管理员解除锁定并清零失败计数，可重复调用
func (s *AccountService) Unlock(ctx context.Context, username string) (*domain.Account, error) {
	return s.mutate(ctx, username, func(a *domain.Account) {
		a.Unlock(s.clock.Now())
	})
}

func (s *AccountService) mutate(ctx context.Context, username string, fn func(*domain.Account)) (*domain.Account, error) {
	unlock := s.locks.Lock(username)
	defer unlock()

	account, err := s.accounts.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, domain.Errorf(domain.KindNotFound, "", "account %s not found", username)
	}
	fn(account)
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return account, nil
}

// GetAccount 账户快照，与写操作共用账户锁
func (s *AccountService) GetAccount(ctx context.Context, username string) (*domain.Account, error) {
	unlock := s.locks.Lock(username)
	defer unlock()

	account, err := s.accounts.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, domain.Errorf(domain.KindNotFound, "", "account %s not found", username)
	}
	return account, nil
}
