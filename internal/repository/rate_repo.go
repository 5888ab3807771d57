package repository

import (
	"context"
	"errors"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"

	"gorm.io/gorm"
)

var ErrRateUnavailable = errors.New("no active exchange rate for currency pair")

type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) Create(ctx context.Context, rate *model.ExchangeRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

// GetActiveRate returns the newest active rate for the directed pair.
func (r *RateRepository) GetActiveRate(ctx context.Context, base, quote string) (*model.ExchangeRate, error) {
	var rate model.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ? AND active = ?", base, quote, true).
		Order("effective_at DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRateUnavailable
		}
		return nil, err
	}
	return &rate, nil
}

func (r *RateRepository) ListActive(ctx context.Context) ([]*model.ExchangeRate, error) {
	var rates []*model.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("base_currency ASC, quote_currency ASC").
		Find(&rates).Error
	return rates, err
}
