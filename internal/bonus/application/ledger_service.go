package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
)

// IDGenerator 生成带前缀的业务 ID
type IDGenerator interface {
	Next(prefix string) string
}

// SubmitCommand 提交投资命令
type SubmitCommand struct {
	OwnerID       string
	Amount        decimal.Decimal
	ReceiptNumber string
}

// Credit 一次计息中某账户获得的入账
type Credit struct {
	OwnerID string
	Amount  decimal.Decimal
}

// LedgerService 投资提交、审核与计息
type LedgerService struct {
	accounts    domain.AccountRepository
	investments domain.InvestmentRepository
	tx          domain.Transactor
	ids         IDGenerator
	policy      domain.Policy
	clock       clock.Clock
	locks       *KeyedMutex
	referrals   *ReferralEngine
	dispatcher  *Dispatcher
	metrics     metrics.MetricsCollector
}

func NewLedgerService(
	accounts domain.AccountRepository,
	investments domain.InvestmentRepository,
	tx domain.Transactor,
	ids IDGenerator,
	policy domain.Policy,
	clk clock.Clock,
	locks *KeyedMutex,
	referrals *ReferralEngine,
	dispatcher *Dispatcher,
	collector metrics.MetricsCollector,
) *LedgerService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &LedgerService{
		accounts:    accounts,
		investments: investments,
		tx:          tx,
		ids:         ids,
		policy:      policy,
		clock:       clk,
		locks:       locks,
		referrals:   referrals,
		dispatcher:  dispatcher,
		metrics:     collector,
	}
}

// Submit 已审核且未锁定的账户提交一笔投资
func (s *LedgerService) Submit(ctx context.Context, cmd SubmitCommand) (*domain.Investment, error) {
	unlock := s.locks.Lock(cmd.OwnerID)

	owner, err := s.accounts.Get(ctx, cmd.OwnerID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if owner == nil {
		unlock()
		return nil, domain.Errorf(domain.KindForbidden, domain.ReasonUnknownAccount, "account %s does not exist", cmd.OwnerID)
	}
	if err := owner.CheckActive(); err != nil {
		unlock()
		return nil, err
	}
	if err := s.policy.CheckAmount(cmd.Amount); err != nil {
		unlock()
		return nil, err
	}

	now := s.clock.Now()
	inv := domain.NewInvestment(s.ids.Next("INV"), owner.Username, cmd.Amount, strings.TrimSpace(cmd.ReceiptNumber), now)
	if err := s.investments.Create(ctx, inv); err != nil {
		unlock()
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}
	unlock()

	s.metrics.RecordInvestment("submitted")
	logger.Info(ctx, "investment submitted", "investment_id", inv.ID, "owner_id", inv.OwnerID, "amount", inv.Amount.String())
	s.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventInvestmentSubmitted,
		AccountID:  inv.OwnerID,
		Reference:  inv.ID,
		Amount:     inv.Amount,
		Message:    fmt.Sprintf("%s submitted %s (receipt %s)", inv.OwnerID, inv.Amount, inv.ReceiptNumber),
		OccurredAt: now,
	})
	return inv, nil
}

// ApproveInvestment 管理员审核投资：开始计息、本金入账，并在首次审核时触发推荐奖励
func (s *LedgerService) ApproveInvestment(ctx context.Context, investmentID string) (*domain.Investment, error) {
	inv, err := s.investments.Get(ctx, investmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load investment: %w", err)
	}
	if inv == nil {
		return nil, domain.Errorf(domain.KindNotFound, "", "investment %s not found", investmentID)
	}

	unlock := s.locks.Lock(inv.OwnerID)

	// 加锁后重新读取
	inv, err = s.investments.Get(ctx, investmentID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load investment: %w", err)
	}
	owner, err := s.accounts.Get(ctx, inv.OwnerID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if owner == nil {
		unlock()
		return nil, fmt.Errorf("owner %s of investment %s is missing", inv.OwnerID, inv.ID)
	}

	now := s.clock.Now()
	if err := inv.Approve(ctx, now); err != nil {
		unlock()
		return nil, err
	}
	owner.Credit(inv.Amount, now)

	referralDue := owner.ReferredBy != "" && !owner.ReferralRewardPaid
	if referralDue {
		owner.ReferralRewardPaid = true
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.investments.Save(ctx, inv); err != nil {
			return err
		}
		return s.accounts.Save(ctx, owner)
	})
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to approve investment: %w", err)
	}

	s.metrics.RecordInvestment("approved")
	logger.Info(ctx, "investment approved", "investment_id", inv.ID, "owner_id", inv.OwnerID)
	s.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventInvestmentApproved,
		AccountID:  inv.OwnerID,
		Reference:  inv.ID,
		Amount:     inv.Amount,
		Message:    fmt.Sprintf("investment %s of %s approved", inv.ID, inv.Amount),
		OccurredAt: now,
	})

	if referralDue {
		s.referrals.Reward(ctx, owner.Username, owner.ReferredBy)
	}
	return inv, nil
}

// AccrueOwner 为单个账户的全部计息中投资计息
func (s *LedgerService) AccrueOwner(ctx context.Context, ownerID string, now time.Time) (decimal.Decimal, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	owner, err := s.accounts.Get(ctx, ownerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load account: %w", err)
	}
	if owner == nil {
		return decimal.Zero, domain.Errorf(domain.KindNotFound, "", "account %s not found", ownerID)
	}

	investments, err := s.approvedInvestments(ctx, ownerID)
	if err != nil {
		return decimal.Zero, err
	}

	credited, changed := accrueAll(investments, now, s.policy)
	if len(changed) == 0 {
		return decimal.Zero, nil
	}
	owner.Credit(credited, now)

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, inv := range changed {
			if err := s.investments.Save(ctx, inv); err != nil {
				return err
			}
		}
		return s.accounts.Save(ctx, owner)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to persist accrual for %s: %w", ownerID, err)
	}

	f, _ := credited.Float64()
	s.metrics.RecordInterest(f)
	logger.Debug(ctx, "interest accrued", "owner_id", ownerID, "amount", credited.String(), "investments", len(changed))
	return credited, nil
}

// Accrue 批量计息，单个账户失败不影响其他账户
func (s *LedgerService) Accrue(ctx context.Context, now time.Time) ([]Credit, error) {
	owners, err := s.investments.ListOwners(ctx, domain.InvestmentApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer logger.LogDuration(ctx, "accrual sweep done", "owners", len(owners))()

	var (
		credits []Credit
		errs    []error
	)
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		amount, err := s.AccrueOwner(ctx, ownerID, now)
		if err != nil {
			logger.Error(ctx, "failed to accrue interest", "owner_id", ownerID, "error", err)
			errs = append(errs, err)
			continue
		}
		if amount.IsPositive() {
			credits = append(credits, Credit{OwnerID: ownerID, Amount: amount})
		}
	}
	return credits, errors.Join(errs...)
}

func (s *LedgerService) approvedInvestments(ctx context.Context, ownerID string) ([]*domain.Investment, error) {
	investments, _, err := s.investments.List(ctx, domain.InvestmentFilter{
		OwnerID: ownerID,
		State:   domain.InvestmentApproved,
	}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	return investments, nil
}

// accrueAll 对每笔投资计息，返回入账合计与水位线有变化的投资
func accrueAll(investments []*domain.Investment, now time.Time, p domain.Policy) (decimal.Decimal, []*domain.Investment) {
	total := decimal.Zero
	var changed []*domain.Investment
	for _, inv := range investments {
		before := *inv.AccrualWatermark
		total = total.Add(inv.Accrue(now, p))
		if !inv.AccrualWatermark.Equal(before) {
			changed = append(changed, inv)
		}
	}
	return total, changed
}
