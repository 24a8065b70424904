// Package redis 账户快照的 Redis 缓存
package redis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/cache"
)

// accountEntry 缓存中的账户快照，包含口令摘要以便登录命中缓存
type accountEntry struct {
	Username           string          `json:"username"`
	PasswordSecret     string          `json:"password_secret"`
	Phone              string          `json:"phone"`
	Approved           bool            `json:"approved"`
	Locked             bool            `json:"locked"`
	FailedLoginCount   int             `json:"failed_login_count"`
	Balance            decimal.Decimal `json:"balance"`
	ReferralCode       string          `json:"referral_code"`
	ReferredBy         string          `json:"referred_by"`
	ReferralRewardPaid bool            `json:"referral_reward_paid"`
	ReferralEarned     decimal.Decimal `json:"referral_earned"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// AccountCache 按用户名缓存账户
type AccountCache struct {
	cache  *cache.RedisCache
	prefix string
	ttl    time.Duration
}

func NewAccountCache(c *cache.RedisCache, ttl time.Duration) *AccountCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AccountCache{
		cache:  c,
		prefix: "bonus:account:",
		ttl:    ttl,
	}
}

// Get 未命中时返回 (nil, nil)
func (c *AccountCache) Get(ctx context.Context, username string) (*domain.Account, error) {
	var e accountEntry
	ok, err := c.cache.GetJSON(ctx, c.key(username), &e)
	if err != nil || !ok {
		return nil, err
	}
	return &domain.Account{
		Username:           e.Username,
		PasswordSecret:     e.PasswordSecret,
		Phone:              e.Phone,
		Approved:           e.Approved,
		Locked:             e.Locked,
		FailedLoginCount:   e.FailedLoginCount,
		Balance:            e.Balance,
		ReferralCode:       e.ReferralCode,
		ReferredBy:         e.ReferredBy,
		ReferralRewardPaid: e.ReferralRewardPaid,
		ReferralEarned:     e.ReferralEarned,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}, nil
}

func (c *AccountCache) Set(ctx context.Context, a *domain.Account) error {
	return c.cache.SetJSON(ctx, c.key(a.Username), accountEntry{
		Username:           a.Username,
		PasswordSecret:     a.PasswordSecret,
		Phone:              a.Phone,
		Approved:           a.Approved,
		Locked:             a.Locked,
		FailedLoginCount:   a.FailedLoginCount,
		Balance:            a.Balance,
		ReferralCode:       a.ReferralCode,
		ReferredBy:         a.ReferredBy,
		ReferralRewardPaid: a.ReferralRewardPaid,
		ReferralEarned:     a.ReferralEarned,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}, c.ttl)
}

func (c *AccountCache) Delete(ctx context.Context, username string) error {
	return c.cache.Delete(ctx, c.key(username))
}

func (c *AccountCache) key(username string) string {
	return c.prefix + username
}
