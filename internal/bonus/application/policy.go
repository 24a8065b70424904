package application

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/config"
)

// PolicyFromConfig 将配置中的十进制字符串转换为业务规则
func PolicyFromConfig(cfg config.PolicyConfig) (domain.Policy, error) {
	p := domain.DefaultPolicy()

	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"min_amount", cfg.MinAmount, &p.MinAmount},
		{"max_amount", cfg.MaxAmount, &p.MaxAmount},
		{"daily_rate", cfg.DailyRate, &p.DailyRate},
		{"sunday_bonus", cfg.SundayBonus, &p.SundayBonus},
		{"referral_reward", cfg.ReferralReward, &p.ReferralReward},
		{"withdrawal_fee_rate", cfg.WithdrawalFeeRate, &p.WithdrawalFeeRate},
		{"joining_fee", cfg.JoiningFee, &p.JoiningFee},
		{"sunday_joining_discount", cfg.SundayJoiningDiscount, &p.SundayJoiningDiscount},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return domain.Policy{}, fmt.Errorf("invalid policy.%s %q: %w", f.name, f.value, err)
		}
		*f.dst = d
	}

	if cfg.WithdrawalWeekday != "" {
		day, err := domain.ParseWeekday(cfg.WithdrawalWeekday)
		if err != nil {
			return domain.Policy{}, fmt.Errorf("invalid policy.withdrawal_weekday: %w", err)
		}
		p.WithdrawalWeekday = day
	}
	if cfg.MaxFailedLogins > 0 {
		p.MaxFailedLogins = cfg.MaxFailedLogins
	}

	if err := p.Validate(); err != nil {
		return domain.Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, domain.ErrAlreadyExists)
}
