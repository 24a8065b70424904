package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_LocksAtThreshold(t *testing.T) {
	a := NewAccount("bob", "secret", "", "ABCD1234", "", monday)
	assert.False(t, a.RecordFailedLogin(3, monday))
	assert.False(t, a.RecordFailedLogin(3, monday))
	assert.True(t, a.RecordFailedLogin(3, monday))
	assert.True(t, a.Locked)
	// 已锁定后不再重复触发
	assert.False(t, a.RecordFailedLogin(3, monday))

	a.Unlock(monday)
	assert.False(t, a.Locked)
	assert.Equal(t, 0, a.FailedLoginCount)
}

func TestAccount_CheckActive(t *testing.T) {
	a := NewAccount("bob", "secret", "", "ABCD1234", "", monday)
	assert.True(t, errors.Is(a.CheckActive(), ErrAccountUnapproved))

	a.Locked = true
	err := a.CheckActive()
	assert.True(t, errors.Is(err, ErrAccountLocked))
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrAccountUnapproved))

	a.Locked = false
	a.Approve(monday)
	assert.NoError(t, a.CheckActive())
}

func TestAccount_DebitNeverGoesNegative(t *testing.T) {
	a := NewAccount("bob", "secret", "", "ABCD1234", "", monday)
	a.Credit(decimal.NewFromInt(100), monday)

	err := a.Debit(decimal.NewFromInt(101), monday)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficient))
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(100)))

	require.NoError(t, a.Debit(decimal.NewFromInt(100), monday))
	assert.True(t, a.Balance.IsZero())
}

func TestAccount_CreditReferralTracksEarnings(t *testing.T) {
	a := NewAccount("bob", "secret", "", "ABCD1234", "", monday)
	a.CreditReferral(decimal.NewFromInt(200), monday)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(200)))
	assert.True(t, a.ReferralEarned.Equal(decimal.NewFromInt(200)))
}

func TestPolicy_Rules(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	for _, amount := range []string{"500", "300000", "1234.56"} {
		assert.NoError(t, p.CheckAmount(decimal.RequireFromString(amount)), amount)
	}
	for _, amount := range []string{"499.99", "300000.01", "0", "-1"} {
		assert.True(t, errors.Is(p.CheckAmount(decimal.RequireFromString(amount)), ErrInvalidRange), amount)
	}

	fee, net := p.Settle(decimal.NewFromInt(1100))
	assert.True(t, fee.Equal(decimal.NewFromInt(275)))
	assert.True(t, net.Equal(decimal.NewFromInt(825)))

	assert.True(t, p.JoiningFeeAt(monday).Equal(decimal.NewFromInt(1000)))
	assert.True(t, p.JoiningFeeAt(monday.Add(6*Day)).Equal(decimal.NewFromInt(950)))

	d, err := ParseWeekday("MONDAY")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)
	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}

func TestError_IsMatchesKindAndReason(t *testing.T) {
	err := Errorf(KindForbidden, ReasonWrongWeekday, "closed")
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, errors.Is(err, ErrWrongWeekday))
	assert.False(t, errors.Is(err, ErrWrongOwner))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "wrong_weekday")
}
