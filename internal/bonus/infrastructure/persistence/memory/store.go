// Package memory 进程内仓储实现，读写均做深拷贝
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
)

// Transactor 内存仓储的每次写入各自原子，事务直接执行 fn
type Transactor struct{}

func (Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// AccountRepository 账户内存仓储
type AccountRepository struct {
	mu     sync.RWMutex
	byName map[string]*domain.Account
	byCode map[string]string
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byName: make(map[string]*domain.Account),
		byCode: make(map[string]string),
	}
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[account.Username]; ok {
		return domain.Errorf(domain.KindAlreadyExists, "", "account %s already exists", account.Username)
	}
	if _, ok := r.byCode[account.ReferralCode]; ok {
		return domain.Errorf(domain.KindAlreadyExists, "", "referral code %s already in use", account.ReferralCode)
	}
	r.byName[account.Username] = account.Clone()
	r.byCode[account.ReferralCode] = account.Username
	return nil
}

func (r *AccountRepository) Save(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[account.Username]; !ok {
		return domain.Errorf(domain.KindNotFound, "", "account %s not found", account.Username)
	}
	r.byName[account.Username] = account.Clone()
	return nil
}

func (r *AccountRepository) Get(_ context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[username]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

func (r *AccountRepository) GetByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	return r.byName[name].Clone(), nil
}

func (r *AccountRepository) List(_ context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	r.mu.RLock()
	all := make([]*domain.Account, 0, len(r.byName))
	for _, a := range r.byName {
		all = append(all, a.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Username < all[j].Username
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return page(all, limit, offset), int64(len(all)), nil
}

// InvestmentRepository 投资内存仓储
type InvestmentRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Investment
}

func NewInvestmentRepository() *InvestmentRepository {
	return &InvestmentRepository{byID: make(map[string]*domain.Investment)}
}

func (r *InvestmentRepository) Create(_ context.Context, inv *domain.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[inv.ID]; ok {
		return domain.Errorf(domain.KindAlreadyExists, "", "investment %s already exists", inv.ID)
	}
	r.byID[inv.ID] = inv.Clone()
	return nil
}

func (r *InvestmentRepository) Save(_ context.Context, inv *domain.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[inv.ID]; !ok {
		return domain.Errorf(domain.KindNotFound, "", "investment %s not found", inv.ID)
	}
	r.byID[inv.ID] = inv.Clone()
	return nil
}

func (r *InvestmentRepository) Get(_ context.Context, id string) (*domain.Investment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return inv.Clone(), nil
}

func (r *InvestmentRepository) List(_ context.Context, filter domain.InvestmentFilter, limit, offset int) ([]*domain.Investment, int64, error) {
	r.mu.RLock()
	var matched []*domain.Investment
	for _, inv := range r.byID {
		if filter.OwnerID != "" && inv.OwnerID != filter.OwnerID {
			continue
		}
		if filter.State != "" && inv.State != filter.State {
			continue
		}
		matched = append(matched, inv.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].SubmittedAt.Before(matched[j].SubmittedAt)
	})
	return page(matched, limit, offset), int64(len(matched)), nil
}

func (r *InvestmentRepository) ListOwners(_ context.Context, state domain.InvestmentState) ([]string, error) {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, inv := range r.byID {
		if inv.State == state {
			seen[inv.OwnerID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners, nil
}

// WithdrawalRepository 提现记录内存仓储
type WithdrawalRepository struct {
	mu      sync.RWMutex
	records []*domain.Withdrawal
}

func NewWithdrawalRepository() *WithdrawalRepository {
	return &WithdrawalRepository{}
}

func (r *WithdrawalRepository) Create(_ context.Context, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, w.Clone())
	return nil
}

func (r *WithdrawalRepository) List(_ context.Context, ownerID string, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	r.mu.RLock()
	var matched []*domain.Withdrawal
	for i := len(r.records) - 1; i >= 0; i-- {
		w := r.records[i]
		if ownerID == "" || w.OwnerID == ownerID {
			matched = append(matched, w.Clone())
		}
	}
	r.mu.RUnlock()
	return page(matched, limit, offset), int64(len(matched)), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
