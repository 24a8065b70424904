package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal 一次提现结算的不可变记录，同时作为返回给调用方的结算明细
type Withdrawal struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	InvestmentIDs []string        `json:"investment_ids"`
	Principal     decimal.Decimal `json:"principal"`
	Interest      decimal.Decimal `json:"interest"`
	Gross         decimal.Decimal `json:"gross"`
	Fee           decimal.Decimal `json:"fee"`
	Net           decimal.Decimal `json:"net"`
	SettledAt     time.Time       `json:"settled_at"`
}

// Clone 深拷贝
func (w *Withdrawal) Clone() *Withdrawal {
	c := *w
	c.InvestmentIDs = append([]string(nil), w.InvestmentIDs...)
	return &c
}
