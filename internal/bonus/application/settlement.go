package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
)

// Actor 发起提现的身份
type Actor struct {
	Username string
	Admin    bool
}

// SettlementService 提现结算
type SettlementService struct {
	accounts    domain.AccountRepository
	investments domain.InvestmentRepository
	withdrawals domain.WithdrawalRepository
	tx          domain.Transactor
	ids         IDGenerator
	policy      domain.Policy
	locks       *KeyedMutex
	dispatcher  *Dispatcher
	metrics     metrics.MetricsCollector
}

func NewSettlementService(
	accounts domain.AccountRepository,
	investments domain.InvestmentRepository,
	withdrawals domain.WithdrawalRepository,
	tx domain.Transactor,
	ids IDGenerator,
	policy domain.Policy,
	locks *KeyedMutex,
	dispatcher *Dispatcher,
	collector metrics.MetricsCollector,
) *SettlementService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &SettlementService{
		accounts:    accounts,
		investments: investments,
		withdrawals: withdrawals,
		tx:          tx,
		ids:         ids,
		policy:      policy,
		locks:       locks,
		dispatcher:  dispatcher,
		metrics:     collector,
	}
}

// Withdraw 结算账户全部计息中投资：先补计利息到 now，再按手续费率拆分。
// 任一校验失败时不产生任何状态变化。
func (s *SettlementService) Withdraw(ctx context.Context, actor Actor, ownerID string, now time.Time) (*domain.Withdrawal, error) {
	if now.UTC().Weekday() != s.policy.WithdrawalWeekday {
		return nil, domain.Errorf(domain.KindForbidden, domain.ReasonWrongWeekday,
			"withdrawals are only accepted on %s", s.policy.WithdrawalWeekday)
	}
	if !actor.Admin && actor.Username != ownerID {
		return nil, domain.Errorf(domain.KindForbidden, domain.ReasonWrongOwner,
			"%s cannot withdraw for %s", actor.Username, ownerID)
	}

	unlock := s.locks.Lock(ownerID)

	owner, err := s.accounts.Get(ctx, ownerID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if owner == nil {
		unlock()
		return nil, domain.Errorf(domain.KindNotFound, "", "account %s not found", ownerID)
	}
	if err := owner.CheckActive(); err != nil {
		unlock()
		return nil, err
	}

	investments, _, err := s.investments.List(ctx, domain.InvestmentFilter{
		OwnerID: ownerID,
		State:   domain.InvestmentApproved,
	}, 0, 0)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	if len(investments) == 0 {
		unlock()
		return nil, domain.Errorf(domain.KindNotFound, "", "account %s has no eligible investments", ownerID)
	}

	accrued, _ := accrueAll(investments, now, s.policy)
	owner.Credit(accrued, now)

	principal, interest := decimal.Zero, decimal.Zero
	ids := make([]string, 0, len(investments))
	for _, inv := range investments {
		principal = principal.Add(inv.Amount)
		interest = interest.Add(inv.AccruedInterest)
		ids = append(ids, inv.ID)
	}
	gross := principal.Add(interest)
	fee, net := s.policy.Settle(gross)

	if err := owner.Debit(gross, now); err != nil {
		unlock()
		logger.Error(ctx, "ledger and balance diverged", "owner_id", ownerID, "gross", gross.String(), "balance", owner.Balance.String())
		return nil, err
	}

	withdrawal := &domain.Withdrawal{
		ID:            s.ids.Next("WDR"),
		OwnerID:       ownerID,
		InvestmentIDs: ids,
		Principal:     principal,
		Interest:      interest,
		Gross:         gross,
		Fee:           fee,
		Net:           net,
		SettledAt:     now,
	}
	for _, inv := range investments {
		if err := inv.Withdraw(ctx, withdrawal.ID, now); err != nil {
			unlock()
			return nil, err
		}
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, inv := range investments {
			if err := s.investments.Save(ctx, inv); err != nil {
				return err
			}
		}
		if err := s.accounts.Save(ctx, owner); err != nil {
			return err
		}
		return s.withdrawals.Create(ctx, withdrawal)
	})
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to settle withdrawal: %w", err)
	}

	accruedF, _ := accrued.Float64()
	feeF, _ := fee.Float64()
	s.metrics.RecordInterest(accruedF)
	s.metrics.RecordWithdrawal(feeF)
	logger.Info(ctx, "withdrawal settled",
		"withdrawal_id", withdrawal.ID,
		"owner_id", ownerID,
		"actor", actor.Username,
		"gross", gross.String(),
		"fee", fee.String(),
		"net", net.String(),
	)
	s.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventWithdrawalSettled,
		AccountID:  ownerID,
		Reference:  withdrawal.ID,
		Amount:     net,
		Message:    fmt.Sprintf("%s withdrew %s (gross %s, fee %s)", ownerID, net, gross, fee),
		OccurredAt: now,
	})
	return withdrawal, nil
}
