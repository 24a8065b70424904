package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Policy 投资、计息、推荐与提现规则
type Policy struct {
	// 单笔投资下限
	MinAmount decimal.Decimal
	// 单笔投资上限
	MaxAmount decimal.Decimal
	// 日利率
	DailyRate decimal.Decimal
	// 周日奖励比例，按本金计
	SundayBonus decimal.Decimal
	// 推荐奖励金额
	ReferralReward decimal.Decimal
	// 提现手续费率
	WithdrawalFeeRate decimal.Decimal
	// 允许提现的星期
	WithdrawalWeekday time.Weekday
	// 连续登录失败锁定阈值
	MaxFailedLogins int
	// 入会费（仅展示）
	JoiningFee decimal.Decimal
	// 周日入会费折扣
	SundayJoiningDiscount decimal.Decimal
}

// DefaultPolicy 返回默认规则
func DefaultPolicy() Policy {
	return Policy{
		MinAmount:             decimal.NewFromInt(500),
		MaxAmount:             decimal.NewFromInt(300000),
		DailyRate:             decimal.RequireFromString("0.10"),
		SundayBonus:           decimal.RequireFromString("0.05"),
		ReferralReward:        decimal.NewFromInt(200),
		WithdrawalFeeRate:     decimal.RequireFromString("0.25"),
		WithdrawalWeekday:     time.Monday,
		MaxFailedLogins:       3,
		JoiningFee:            decimal.NewFromInt(1000),
		SundayJoiningDiscount: decimal.RequireFromString("0.05"),
	}
}

// Validate 校验规则自洽
func (p Policy) Validate() error {
	switch {
	case !p.MinAmount.IsPositive():
		return fmt.Errorf("min amount must be positive")
	case p.MaxAmount.LessThan(p.MinAmount):
		return fmt.Errorf("max amount %s below min amount %s", p.MaxAmount, p.MinAmount)
	case p.DailyRate.IsNegative(), p.SundayBonus.IsNegative(), p.ReferralReward.IsNegative():
		return fmt.Errorf("rates and rewards must not be negative")
	case p.WithdrawalFeeRate.IsNegative() || p.WithdrawalFeeRate.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("withdrawal fee rate must be within [0, 1]")
	case p.MaxFailedLogins <= 0:
		return fmt.Errorf("max failed logins must be positive")
	}
	return nil
}

// CheckAmount 投资金额须落在 [MinAmount, MaxAmount]
func (p Policy) CheckAmount(amount decimal.Decimal) error {
	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		return Errorf(KindInvalidRange, "", "amount %s outside [%s, %s]", amount, p.MinAmount, p.MaxAmount)
	}
	return nil
}

// JoiningFeeAt 返回 now 时刻的入会费，周日享受折扣
func (p Policy) JoiningFeeAt(now time.Time) decimal.Decimal {
	if now.UTC().Weekday() == time.Sunday {
		return p.JoiningFee.Sub(p.JoiningFee.Mul(p.SundayJoiningDiscount))
	}
	return p.JoiningFee
}

// Settle 按手续费率拆分提现总额
func (p Policy) Settle(gross decimal.Decimal) (fee, net decimal.Decimal) {
	fee = gross.Mul(p.WithdrawalFeeRate)
	return fee, gross.Sub(fee)
}

// ParseWeekday 解析英文星期名，大小写不敏感
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
