// 包 domain 奖金平台的领域模型：账户、投资、提现与业务规则
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 账户实体，用户名即账户 ID
type Account struct {
	// 用户名，全局唯一
	Username string `json:"username"`
	// 密码摘要
	PasswordSecret string `json:"-"`
	// 手机号，可为空
	Phone string `json:"phone,omitempty"`
	// 是否已由管理员审核
	Approved bool `json:"approved"`
	// 是否因连续登录失败被锁定
	Locked bool `json:"locked"`
	// 连续登录失败次数
	FailedLoginCount int `json:"failed_login_count"`
	// 余额 = 已确认本金 + 已计利息 + 推荐奖励 - 已提现
	Balance decimal.Decimal `json:"balance"`
	// 本账户的推荐码，创建后不可变
	ReferralCode string `json:"referral_code"`
	// 注册时使用的推荐码
	ReferredBy string `json:"referred_by,omitempty"`
	// 推荐人奖励是否已发放
	ReferralRewardPaid bool `json:"referral_reward_paid"`
	// 作为推荐人累计获得的奖励
	ReferralEarned decimal.Decimal `json:"referral_earned"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAccount 创建未审核、未锁定、余额为零的账户
func NewAccount(username, secret, phone, referralCode, referredBy string, now time.Time) *Account {
	return &Account{
		Username:       username,
		PasswordSecret: secret,
		Phone:          phone,
		Balance:        decimal.Zero,
		ReferralCode:   referralCode,
		ReferredBy:     referredBy,
		ReferralEarned: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CheckActive 锁定优先于未审核
func (a *Account) CheckActive() error {
	if a.Locked {
		return Errorf(KindForbidden, ReasonLocked, "account %s is locked", a.Username)
	}
	if !a.Approved {
		return Errorf(KindForbidden, ReasonUnapproved, "account %s is not approved", a.Username)
	}
	return nil
}

// RecordFailedLogin 累计一次失败登录，达到阈值时锁定。返回本次是否触发锁定。
func (a *Account) RecordFailedLogin(maxFailed int, now time.Time) bool {
	a.FailedLoginCount++
	a.UpdatedAt = now
	if a.FailedLoginCount >= maxFailed && !a.Locked {
		a.Locked = true
		return true
	}
	return false
}

// ResetFailedLogins 登录成功后清零计数，返回是否有变化
func (a *Account) ResetFailedLogins(now time.Time) bool {
	if a.FailedLoginCount == 0 {
		return false
	}
	a.FailedLoginCount = 0
	a.UpdatedAt = now
	return true
}

func (a *Account) Approve(now time.Time) {
	a.Approved = true
	a.UpdatedAt = now
}

// Unlock 解除锁定并清零失败计数
func (a *Account) Unlock(now time.Time) {
	a.Locked = false
	a.FailedLoginCount = 0
	a.UpdatedAt = now
}

// Credit 入账
func (a *Account) Credit(amount decimal.Decimal, now time.Time) {
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = now
}

// Debit 出账，余额不足时不做任何修改
func (a *Account) Debit(amount decimal.Decimal, now time.Time) error {
	if a.Balance.LessThan(amount) {
		return Errorf(KindInsufficient, "", "balance %s below %s", a.Balance, amount)
	}
	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = now
	return nil
}

// CreditReferral 推荐奖励入账
func (a *Account) CreditReferral(amount decimal.Decimal, now time.Time) {
	a.Credit(amount, now)
	a.ReferralEarned = a.ReferralEarned.Add(amount)
}

// Clone 深拷贝
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
