package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType 通知事件类型
type EventType string

const (
	EventRegistered          EventType = "REGISTERED"
	EventAccountLocked       EventType = "ACCOUNT_LOCKED"
	EventInvestmentSubmitted EventType = "INVESTMENT_SUBMITTED"
	EventInvestmentApproved  EventType = "INVESTMENT_APPROVED"
	EventReferralRewarded    EventType = "REFERRAL_REWARDED"
	EventWithdrawalSettled   EventType = "WITHDRAWAL_SETTLED"
)

// Event 发给运营人员的通知
type Event struct {
	Type EventType `json:"type"`
	// 事件所属账户
	AccountID string `json:"account_id"`
	// 关联的投资或提现 ID
	Reference  string          `json:"reference,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NotificationSink 通知出口，发送失败只记录日志
type NotificationSink interface {
	Notify(ctx context.Context, event Event) error
}

// PasswordHasher 口令摘要与比对
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(secret, password string) bool
}
