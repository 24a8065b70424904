package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/db"
	"gorm.io/gorm"
)

// Transactor 将 db.WithTx 暴露为领域事务接口
type Transactor struct {
	db *db.DB
}

func NewTransactor(database *db.DB) *Transactor {
	return &Transactor{db: database}
}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.WithTx(ctx, fn)
}

// accountRepository 账户仓储实现
type accountRepository struct {
	db *db.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(database *db.DB) domain.AccountRepository {
	return &accountRepository{db: database}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	var model AccountModel
	model.fromDomain(account)
	if err := r.db.Conn(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Errorf(domain.KindAlreadyExists, "", "account %s or referral code %s already exists", account.Username, account.ReferralCode)
		}
		return err
	}
	return nil
}

func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	conn := r.db.Conn(ctx)
	var model AccountModel
	if err := conn.Where("username = ?", account.Username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Errorf(domain.KindNotFound, "", "account %s not found", account.Username)
		}
		return err
	}
	model.fromDomain(account)
	return conn.Save(&model).Error
}

func (r *accountRepository) Get(ctx context.Context, username string) (*domain.Account, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *accountRepository) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.first(ctx, "referral_code = ?", code)
}

func (r *accountRepository) first(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var model AccountModel
	if err := r.db.Conn(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	conn := r.db.Conn(ctx).Model(&AccountModel{})

	conn = conn.Session(&gorm.Session{})

	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*AccountModel
	if err := paginate(conn.Order("created_at, id"), limit, offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	accounts := make([]*domain.Account, len(models))
	for i, m := range models {
		accounts[i] = m.toDomain()
	}
	return accounts, total, nil
}

// investmentRepository 投资仓储实现
type investmentRepository struct {
	db *db.DB
}

// NewInvestmentRepository 创建投资仓储
func NewInvestmentRepository(database *db.DB) domain.InvestmentRepository {
	return &investmentRepository{db: database}
}

func (r *investmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	var model InvestmentModel
	model.fromDomain(inv)
	if err := r.db.Conn(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Errorf(domain.KindAlreadyExists, "", "investment %s already exists", inv.ID)
		}
		return err
	}
	return nil
}

func (r *investmentRepository) Save(ctx context.Context, inv *domain.Investment) error {
	conn := r.db.Conn(ctx)
	var model InvestmentModel
	if err := conn.Where("investment_id = ?", inv.ID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Errorf(domain.KindNotFound, "", "investment %s not found", inv.ID)
		}
		return err
	}
	model.fromDomain(inv)
	return conn.Save(&model).Error
}

func (r *investmentRepository) Get(ctx context.Context, id string) (*domain.Investment, error) {
	var model InvestmentModel
	if err := r.db.Conn(ctx).Where("investment_id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *investmentRepository) List(ctx context.Context, filter domain.InvestmentFilter, limit, offset int) ([]*domain.Investment, int64, error) {
	conn := r.db.Conn(ctx).Model(&InvestmentModel{})
	if filter.OwnerID != "" {
		conn = conn.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.State != "" {
		conn = conn.Where("state = ?", string(filter.State))
	}

	conn = conn.Session(&gorm.Session{})

	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*InvestmentModel
	if err := paginate(conn.Order("submitted_at, investment_id"), limit, offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	investments := make([]*domain.Investment, len(models))
	for i, m := range models {
		investments[i] = m.toDomain()
	}
	return investments, total, nil
}

func (r *investmentRepository) ListOwners(ctx context.Context, state domain.InvestmentState) ([]string, error) {
	var owners []string
	err := r.db.Conn(ctx).Model(&InvestmentModel{}).
		Where("state = ?", string(state)).
		Distinct("owner_id").
		Order("owner_id").
		Pluck("owner_id", &owners).Error
	if err != nil {
		return nil, err
	}
	return owners, nil
}

// withdrawalRepository 提现记录仓储实现
type withdrawalRepository struct {
	db *db.DB
}

// NewWithdrawalRepository 创建提现记录仓储
func NewWithdrawalRepository(database *db.DB) domain.WithdrawalRepository {
	return &withdrawalRepository{db: database}
}

func (r *withdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	return r.db.Conn(ctx).Create(fromWithdrawal(w)).Error
}

func (r *withdrawalRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Withdrawal, int64, error) {
	conn := r.db.Conn(ctx).Model(&WithdrawalModel{})
	if ownerID != "" {
		conn = conn.Where("owner_id = ?", ownerID)
	}

	conn = conn.Session(&gorm.Session{})

	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*WithdrawalModel
	if err := paginate(conn.Order("settled_at DESC, id DESC"), limit, offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	withdrawals := make([]*domain.Withdrawal, len(models))
	for i, m := range models {
		withdrawals[i] = m.toDomain()
	}
	return withdrawals, total, nil
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}
