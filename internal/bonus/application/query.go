package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
)

// QueryService 只读视图，供账户本人与管理员使用
type QueryService struct {
	accounts    domain.AccountRepository
	investments domain.InvestmentRepository
	withdrawals domain.WithdrawalRepository
}

func NewQueryService(
	accounts domain.AccountRepository,
	investments domain.InvestmentRepository,
	withdrawals domain.WithdrawalRepository,
) *QueryService {
	return &QueryService{
		accounts:    accounts,
		investments: investments,
		withdrawals: withdrawals,
	}
}

func (s *QueryService) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	accounts, total, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, total, nil
}

func (s *QueryService) ListInvestments(ctx context.Context, filter domain.InvestmentFilter, limit, offset int) ([]*domain.Investment, int64, error) {
	investments, total, err := s.investments.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list investments: %w", err)
	}
	return investments, total, nil
}

// ListWithdrawals ownerID 为空时返回全部提现记录
func (s *QueryService) ListWithdrawals(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	withdrawals, total, err := s.withdrawals.List(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, total, nil
}
