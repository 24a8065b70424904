package persistence

import (
	"context"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/db"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
)

// AccountCache 账户快照缓存
type AccountCache interface {
	Get(ctx context.Context, username string) (*domain.Account, error)
	Set(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, username string) error
}

// compositeAccountRepository 主库 + 旁路缓存。
// 写入后删除缓存；事务内的读写只走主库，避免缓存未提交数据。
type compositeAccountRepository struct {
	primary domain.AccountRepository
	cache   AccountCache
}

func NewCompositeAccountRepository(primary domain.AccountRepository, cache AccountCache) domain.AccountRepository {
	return &compositeAccountRepository{
		primary: primary,
		cache:   cache,
	}
}

func (r *compositeAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	return r.primary.Create(ctx, account)
}

func (r *compositeAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	if err := r.primary.Save(ctx, account); err != nil {
		return err
	}
	// 缓存失效失败不影响主库
	if err := r.cache.Delete(ctx, account.Username); err != nil {
		logger.Warn(ctx, "failed to invalidate account cache", "username", account.Username, "error", err)
	}
	return nil
}

func (r *compositeAccountRepository) Get(ctx context.Context, username string) (*domain.Account, error) {
	if db.InTx(ctx) {
		return r.primary.Get(ctx, username)
	}

	acc, err := r.cache.Get(ctx, username)
	if err == nil && acc != nil {
		return acc, nil
	}

	acc, err = r.primary.Get(ctx, username)
	if err != nil || acc == nil {
		return acc, err
	}

	if err := r.cache.Set(ctx, acc); err != nil {
		logger.Warn(ctx, "failed to backfill account cache", "username", username, "error", err)
	}
	return acc, nil
}

// GetByReferralCode 二级索引不进缓存
func (r *compositeAccountRepository) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.primary.GetByReferralCode(ctx, code)
}

func (r *compositeAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	return r.primary.List(ctx, limit, offset)
}
