package repository

import (
	"context"
	"errors"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOptimisticLock    = errors.New("account version conflict, retry")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) Get(ctx context.Context, userID, currency string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("currency ASC").
		Find(&accounts).Error
	return accounts, err
}

// ListBatch pages through all accounts by primary key, for audit sweeps.
func (r *AccountRepository) ListBatch(ctx context.Context, afterID int64, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}

// GetForUpdate reads the account under SELECT ... FOR UPDATE inside the
// caller's transaction. This is what serializes the ledger's
// read-validate-write sequence per account.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, userID, currency string) (*model.Account, error) {
	query := tx.WithContext(ctx)
	// sqlite has no row locks and serializes writers anyway.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account model.Account
	err := query.
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ApplyDelta writes the new balance conditionally on the version the caller
// read. Debits additionally require the balance to still cover the amount,
// so the non-negativity invariant holds at the database even if a caller
// skipped the FOR UPDATE read. RowsAffected == 0 is re-diagnosed into a
// precise error.
func (r *AccountRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, userID, currency string, delta decimal.Decimal, version int) error {
	query := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND currency = ? AND version = ?", userID, currency, version)

	if delta.IsNegative() {
		query = query.Where("balance >= ?", delta.Neg())
	}

	result := query.Updates(map[string]interface{}{
		"balance": gorm.Expr("balance + ?", delta),
		"version": gorm.Expr("version + 1"),
	})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.Get(ctx, userID, currency)
		if err != nil {
			return err
		}
		if delta.IsNegative() && account.Balance.LessThan(delta.Neg()) {
			return ErrInsufficientFunds
		}
		return ErrOptimisticLock
	}

	return nil
}

// GetOrCreate lazily opens the account at zero balance with the configured
// default limits. OnConflict DoNothing keeps concurrent first-touch racers
// safe.
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID, currency string, dailyLimit, monthlyLimit decimal.Decimal) (*model.Account, error) {
	account, err := r.Get(ctx, userID, currency)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		UserID:       userID,
		Currency:     currency,
		Balance:      decimal.Zero,
		DailyLimit:   dailyLimit,
		MonthlyLimit: monthlyLimit,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency"}},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, userID, currency)
}
