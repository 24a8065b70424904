// Package mysql 基于 GORM 的仓储实现，生产使用 MySQL，本地与测试使用 SQLite
package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"gorm.io/gorm"
)

// AccountModel 账户持久化对象
type AccountModel struct {
	gorm.Model
	Username           string          `gorm:"column:username;type:varchar(64);uniqueIndex;not null"`
	PasswordSecret     string          `gorm:"column:password_secret;type:varchar(255);not null"`
	Phone              string          `gorm:"column:phone;type:varchar(32)"`
	Approved           bool            `gorm:"column:approved;not null;default:false"`
	Locked             bool            `gorm:"column:locked;not null;default:false"`
	FailedLoginCount   int             `gorm:"column:failed_login_count;not null;default:0"`
	Balance            decimal.Decimal `gorm:"column:balance;type:decimal(32,18);default:0;not null"`
	ReferralCode       string          `gorm:"column:referral_code;type:varchar(16);uniqueIndex;not null"`
	ReferredBy         string          `gorm:"column:referred_by;type:varchar(16);index"`
	ReferralRewardPaid bool            `gorm:"column:referral_reward_paid;not null;default:false"`
	ReferralEarned     decimal.Decimal `gorm:"column:referral_earned;type:decimal(32,18);default:0;not null"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) toDomain() *domain.Account {
	return &domain.Account{
		Username:           m.Username,
		PasswordSecret:     m.PasswordSecret,
		Phone:              m.Phone,
		Approved:           m.Approved,
		Locked:             m.Locked,
		FailedLoginCount:   m.FailedLoginCount,
		Balance:            m.Balance,
		ReferralCode:       m.ReferralCode,
		ReferredBy:         m.ReferredBy,
		ReferralRewardPaid: m.ReferralRewardPaid,
		ReferralEarned:     m.ReferralEarned,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

func (m *AccountModel) fromDomain(a *domain.Account) {
	m.Username = a.Username
	m.PasswordSecret = a.PasswordSecret
	m.Phone = a.Phone
	m.Approved = a.Approved
	m.Locked = a.Locked
	m.FailedLoginCount = a.FailedLoginCount
	m.Balance = a.Balance
	m.ReferralCode = a.ReferralCode
	m.ReferredBy = a.ReferredBy
	m.ReferralRewardPaid = a.ReferralRewardPaid
	m.ReferralEarned = a.ReferralEarned
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// InvestmentModel 投资持久化对象
type InvestmentModel struct {
	gorm.Model
	InvestmentID     string          `gorm:"column:investment_id;type:varchar(32);uniqueIndex;not null"`
	OwnerID          string          `gorm:"column:owner_id;type:varchar(64);index:idx_owner_state;not null"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null"`
	ReceiptNumber    string          `gorm:"column:receipt_number;type:varchar(64)"`
	State            string          `gorm:"column:state;type:varchar(16);index:idx_owner_state;not null"`
	SubmittedAt      time.Time       `gorm:"column:submitted_at;precision:6;not null"`
	ApprovedAt       *time.Time      `gorm:"column:approved_at;precision:6"`
	AccrualWatermark *time.Time      `gorm:"column:accrual_watermark;precision:6"`
	AccruedInterest  decimal.Decimal `gorm:"column:accrued_interest;type:decimal(32,18);default:0;not null"`
	WithdrawnAt      *time.Time      `gorm:"column:withdrawn_at;precision:6"`
	WithdrawalID     string          `gorm:"column:withdrawal_id;type:varchar(32);index"`
}

func (InvestmentModel) TableName() string {
	return "investments"
}

func (m *InvestmentModel) toDomain() *domain.Investment {
	return &domain.Investment{
		ID:               m.InvestmentID,
		OwnerID:          m.OwnerID,
		Amount:           m.Amount,
		ReceiptNumber:    m.ReceiptNumber,
		State:            domain.InvestmentState(m.State),
		SubmittedAt:      m.SubmittedAt.UTC(),
		ApprovedAt:       utcPtr(m.ApprovedAt),
		AccrualWatermark: utcPtr(m.AccrualWatermark),
		AccruedInterest:  m.AccruedInterest,
		WithdrawnAt:      utcPtr(m.WithdrawnAt),
		WithdrawalID:     m.WithdrawalID,
	}
}

func (m *InvestmentModel) fromDomain(inv *domain.Investment) {
	m.InvestmentID = inv.ID
	m.OwnerID = inv.OwnerID
	m.Amount = inv.Amount
	m.ReceiptNumber = inv.ReceiptNumber
	m.State = string(inv.State)
	m.SubmittedAt = inv.SubmittedAt
	m.ApprovedAt = inv.ApprovedAt
	m.AccrualWatermark = inv.AccrualWatermark
	m.AccruedInterest = inv.AccruedInterest
	m.WithdrawnAt = inv.WithdrawnAt
	m.WithdrawalID = inv.WithdrawalID
}

// WithdrawalModel 提现记录持久化对象
type WithdrawalModel struct {
	gorm.Model
	WithdrawalID  string          `gorm:"column:withdrawal_id;type:varchar(32);uniqueIndex;not null"`
	OwnerID       string          `gorm:"column:owner_id;type:varchar(64);index;not null"`
	InvestmentIDs []string        `gorm:"column:investment_ids;type:text;serializer:json;not null"`
	Principal     decimal.Decimal `gorm:"column:principal;type:decimal(32,18);not null"`
	Interest      decimal.Decimal `gorm:"column:interest;type:decimal(32,18);not null"`
	Gross         decimal.Decimal `gorm:"column:gross;type:decimal(32,18);not null"`
	Fee           decimal.Decimal `gorm:"column:fee;type:decimal(32,18);not null"`
	Net           decimal.Decimal `gorm:"column:net;type:decimal(32,18);not null"`
	SettledAt     time.Time       `gorm:"column:settled_at;precision:6;index;not null"`
}

func (WithdrawalModel) TableName() string {
	return "withdrawals"
}

func (m *WithdrawalModel) toDomain() *domain.Withdrawal {
	return &domain.Withdrawal{
		ID:            m.WithdrawalID,
		OwnerID:       m.OwnerID,
		InvestmentIDs: append([]string(nil), m.InvestmentIDs...),
		Principal:     m.Principal,
		Interest:      m.Interest,
		Gross:         m.Gross,
		Fee:           m.Fee,
		Net:           m.Net,
		SettledAt:     m.SettledAt.UTC(),
	}
}

func fromWithdrawal(w *domain.Withdrawal) *WithdrawalModel {
	return &WithdrawalModel{
		WithdrawalID:  w.ID,
		OwnerID:       w.OwnerID,
		InvestmentIDs: append([]string(nil), w.InvestmentIDs...),
		Principal:     w.Principal,
		Interest:      w.Interest,
		Gross:         w.Gross,
		Fee:           w.Fee,
		Net:           w.Net,
		SettledAt:     w.SettledAt,
	}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{}, &InvestmentModel{}, &WithdrawalModel{})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
