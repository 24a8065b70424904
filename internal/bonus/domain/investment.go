package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
)

// Day 计息的最小时间单位
const Day = 24 * time.Hour

// InvestmentState 投资状态
type InvestmentState string

const (
	InvestmentSubmitted InvestmentState = "SUBMITTED" // 待审核
	InvestmentApproved  InvestmentState = "APPROVED"  // 计息中
	InvestmentWithdrawn InvestmentState = "WITHDRAWN" // 已提现，终态
)

// ParseInvestmentState 解析状态字符串
func ParseInvestmentState(s string) (InvestmentState, bool) {
	switch st := InvestmentState(s); st {
	case InvestmentSubmitted, InvestmentApproved, InvestmentWithdrawn:
		return st, true
	}
	return "", false
}

// InvestmentEvent 状态迁移事件
type InvestmentEvent string

const (
	EventApprove  InvestmentEvent = "approve"
	EventWithdraw InvestmentEvent = "withdraw"
)

// Investment 投资聚合根
type Investment struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptNumber string          `json:"receipt_number"`
	State         InvestmentState `json:"state"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	// 已计息截止时刻，仅按整天推进
	AccrualWatermark *time.Time `json:"accrual_watermark,omitempty"`
	// 本笔投资已计入余额的利息与奖励
	AccruedInterest decimal.Decimal `json:"accrued_interest"`
	WithdrawnAt     *time.Time      `json:"withdrawn_at,omitempty"`
	WithdrawalID    string          `json:"withdrawal_id,omitempty"`
	fsm             *fsm.Machine[string, string]
}

// NewInvestment 创建待审核投资
func NewInvestment(id, ownerID string, amount decimal.Decimal, receipt string, now time.Time) *Investment {
	return &Investment{
		ID:              id,
		OwnerID:         ownerID,
		Amount:          amount,
		ReceiptNumber:   receipt,
		State:           InvestmentSubmitted,
		SubmittedAt:     now,
		AccruedInterest: decimal.Zero,
	}
}

// initFSM 每个状态只允许一个事件，WITHDRAWN 为终态
func (i *Investment) initFSM() {
	m := fsm.NewMachine[string, string](string(i.State))
	m.AddTransition(string(InvestmentSubmitted), string(EventApprove), string(InvestmentApproved))
	m.AddTransition(string(InvestmentApproved), string(EventWithdraw), string(InvestmentWithdrawn))
	i.fsm = m
}

// InitFSM 确保状态机已初始化，从存储加载的投资在首次迁移时按当前状态构建
func (i *Investment) InitFSM() {
	if i.fsm == nil {
		i.initFSM()
	}
}

func (i *Investment) transition(ctx context.Context, event InvestmentEvent, next InvestmentState) error {
	i.InitFSM()
	if err := i.fsm.Trigger(ctx, string(event)); err != nil {
		return Errorf(KindInvalidState, "", "investment %s cannot %s from %s: %v", i.ID, event, i.State, err)
	}
	i.State = next
	return nil
}

// Approve 审核通过，计息起点为审核时刻
func (i *Investment) Approve(ctx context.Context, now time.Time) error {
	if err := i.transition(ctx, EventApprove, InvestmentApproved); err != nil {
		return err
	}
	approvedAt := now
	watermark := now
	i.ApprovedAt = &approvedAt
	i.AccrualWatermark = &watermark
	return nil
}

// Withdraw 标记为已提现
func (i *Investment) Withdraw(ctx context.Context, withdrawalID string, now time.Time) error {
	if err := i.transition(ctx, EventWithdraw, InvestmentWithdrawn); err != nil {
		return err
	}
	withdrawnAt := now
	i.WithdrawnAt = &withdrawnAt
	i.WithdrawalID = withdrawalID
	return nil
}

// Accrue 为水位线之后的完整天数计息，返回本次应入账金额。
// 水位线只前移 elapsedDays 整天，不足一天的部分留给下次。
// now 为周日时额外计一次周日奖励。
func (i *Investment) Accrue(now time.Time, p Policy) decimal.Decimal {
	if i.State != InvestmentApproved || i.AccrualWatermark == nil {
		return decimal.Zero
	}
	elapsed := now.Sub(*i.AccrualWatermark)
	if elapsed < Day {
		return decimal.Zero
	}
	days := int64(elapsed / Day)

	interest := i.Amount.Mul(p.DailyRate).Mul(decimal.NewFromInt(days))
	if now.UTC().Weekday() == time.Sunday {
		interest = interest.Add(i.Amount.Mul(p.SundayBonus))
	}

	next := i.AccrualWatermark.Add(time.Duration(days) * Day)
	i.AccrualWatermark = &next
	i.AccruedInterest = i.AccruedInterest.Add(interest)
	return interest
}

// Value 本金加已计利息
func (i *Investment) Value() decimal.Decimal {
	return i.Amount.Add(i.AccruedInterest)
}

// Clone 深拷贝
func (i *Investment) Clone() *Investment {
	c := *i
	c.ApprovedAt = cloneTime(i.ApprovedAt)
	c.AccrualWatermark = cloneTime(i.AccrualWatermark)
	c.WithdrawnAt = cloneTime(i.WithdrawnAt)
	c.fsm = nil
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
