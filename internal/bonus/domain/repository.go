package domain

import "context"

// 仓储查询在记录不存在时返回 (nil, nil)

// AccountRepository 账户仓储接口
type AccountRepository interface {
	// Create 新建账户，用户名或推荐码重复时返回 ErrAlreadyExists
	Create(ctx context.Context, account *Account) error
	// Save 更新账户
	Save(ctx context.Context, account *Account) error
	// Get 根据用户名获取账户
	Get(ctx context.Context, username string) (*Account, error)
	// GetByReferralCode 根据推荐码获取账户
	GetByReferralCode(ctx context.Context, code string) (*Account, error)
	// List 按创建时间分页，limit <= 0 表示不限
	List(ctx context.Context, limit, offset int) ([]*Account, int64, error)
}

// InvestmentFilter 投资列表过滤条件，空值表示不过滤
type InvestmentFilter struct {
	OwnerID string
	State   InvestmentState
}

// InvestmentRepository 投资仓储接口
type InvestmentRepository interface {
	Create(ctx context.Context, investment *Investment) error
	Save(ctx context.Context, investment *Investment) error
	Get(ctx context.Context, id string) (*Investment, error)
	// List 按提交时间分页，limit <= 0 表示不限
	List(ctx context.Context, filter InvestmentFilter, limit, offset int) ([]*Investment, int64, error)
	// ListOwners 返回持有指定状态投资的账户
	ListOwners(ctx context.Context, state InvestmentState) ([]string, error)
}

// WithdrawalRepository 提现记录仓储接口
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *Withdrawal) error
	// List ownerID 为空时返回全部，按结算时间倒序
	List(ctx context.Context, ownerID string, limit, offset int) ([]*Withdrawal, int64, error)
}

// Transactor 在同一事务中执行多条写操作
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
