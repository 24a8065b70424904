package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
)

// ReferralEngine 被推荐账户首笔投资审核通过后向推荐人发放奖励。
// 是否已发放由被推荐账户的 ReferralRewardPaid 标记，调用方须在持有其锁时先行置位。
// 入账失败时撤回该标记，由被推荐账户下一次投资审核重试。
type ReferralEngine struct {
	accounts   domain.AccountRepository
	policy     domain.Policy
	clock      clock.Clock
	locks      *KeyedMutex
	dispatcher *Dispatcher
	metrics    metrics.MetricsCollector
}

func NewReferralEngine(
	accounts domain.AccountRepository,
	policy domain.Policy,
	clk clock.Clock,
	locks *KeyedMutex,
	dispatcher *Dispatcher,
	collector metrics.MetricsCollector,
) *ReferralEngine {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &ReferralEngine{
		accounts:   accounts,
		policy:     policy,
		clock:      clk,
		locks:      locks,
		dispatcher: dispatcher,
		metrics:    collector,
	}
}

// Reward 向推荐码 code 的持有者发放奖励。推荐人不存在时跳过；存储失败时撤回发放标记。
func (e *ReferralEngine) Reward(ctx context.Context, referred, code string) {
	referrer, err := e.accounts.GetByReferralCode(ctx, code)
	if err != nil {
		logger.Error(ctx, "failed to resolve referrer", "referred", referred, "code", code, "error", err)
		e.release(ctx, referred)
		return
	}
	if referrer == nil {
		logger.Info(ctx, "referrer no longer resolvable, skipping reward", "referred", referred, "code", code)
		return
	}

	unlock := e.locks.Lock(referrer.Username)
	referrer, err = e.accounts.Get(ctx, referrer.Username)
	if err == nil && referrer == nil {
		err = fmt.Errorf("referrer vanished")
	}
	if err != nil {
		unlock()
		logger.Error(ctx, "failed to load referrer", "referred", referred, "code", code, "error", err)
		e.release(ctx, referred)
		return
	}

	now := e.clock.Now()
	referrer.CreditReferral(e.policy.ReferralReward, now)
	if err := e.accounts.Save(ctx, referrer); err != nil {
		unlock()
		logger.Error(ctx, "failed to credit referral reward", "referrer", referrer.Username, "referred", referred, "error", err)
		e.release(ctx, referred)
		return
	}
	unlock()

	e.metrics.RecordReferralReward()
	logger.Info(ctx, "referral reward credited", "referrer", referrer.Username, "referred", referred, "amount", e.policy.ReferralReward.String())
	e.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventReferralRewarded,
		AccountID:  referrer.Username,
		Reference:  referred,
		Amount:     e.policy.ReferralReward,
		Message:    fmt.Sprintf("%s earned %s for referring %s", referrer.Username, e.policy.ReferralReward, referred),
		OccurredAt: now,
	})
}

// release 撤回被推荐账户的发放标记。与推荐人锁不重叠持有。
func (e *ReferralEngine) release(ctx context.Context, referred string) {
	unlock := e.locks.Lock(referred)
	defer unlock()

	account, err := e.accounts.Get(ctx, referred)
	if err == nil && account == nil {
		err = fmt.Errorf("referred account vanished")
	}
	if err == nil {
		account.ReferralRewardPaid = false
		err = e.accounts.Save(ctx, account)
	}
	if err != nil {
		logger.Error(ctx, "referral reward lost, flag could not be released", "referred", referred, "error", err)
		return
	}
	logger.Warn(ctx, "referral reward deferred to next approval", "referred", referred)
}
