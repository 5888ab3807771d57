package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRepository is append-only for writes. There is deliberately no
// Update or Delete here: corrections are new offsetting rows.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, record *model.TransactionRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("transaction_no = ?", transactionNo).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *TransactionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.TransactionRecord, error) {
	if requestID == "" {
		return nil, nil
	}
	var record model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.TransactionRecord, int64, error) {
	var records []*model.TransactionRecord
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error

	return records, total, err
}

// ListAllForReplay returns the user's full history for one currency in
// insertion order, for the reconciliation auditor.
func (r *TransactionRepository) ListAllForReplay(ctx context.Context, userID, currency string) ([]*model.TransactionRecord, error) {
	var records []*model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND currency = ? AND status = ?", userID, currency, model.TransactionStatusCompleted).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// SumDebits totals the user's completed debit volume in a currency within
// [from, to]. Amounts are stored signed, so the sum of negatives is negated
// into a positive volume.
func (r *TransactionRepository) SumDebits(ctx context.Context, userID, currency string, from, to time.Time) (decimal.Decimal, error) {
	var totals []string
	err := r.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("user_id = ? AND currency = ? AND status = ? AND amount < 0 AND created_at >= ? AND created_at <= ?",
			userID, currency, model.TransactionStatusCompleted, from, to).
		Pluck("amount", &totals).Error
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, raw := range totals {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amount)
	}
	return sum.Neg(), nil
}

// SumTransfersToCounterparty totals completed outgoing cross-border volume
// from the user to one counterparty since the given instant, for the
// friend-network monthly cap.
func (r *TransactionRepository) SumTransfersToCounterparty(ctx context.Context, userID, counterpartyID, category string, since time.Time) (decimal.Decimal, error) {
	var totals []string
	err := r.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("user_id = ? AND counterparty_id = ? AND category = ? AND status = ? AND created_at >= ?",
			userID, counterpartyID, category, model.TransactionStatusCompleted, since).
		Pluck("amount", &totals).Error
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, raw := range totals {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amount.Abs())
	}
	return sum, nil
}

// CountSince counts the user's transactions created at or after the given
// instant, for the velocity detector.
func (r *TransactionRepository) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// HasCompletedWith reports whether a completed transaction already links the
// two users in either direction.
func (r *TransactionRepository) HasCompletedWith(ctx context.Context, userID, counterpartyID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("status = ?", model.TransactionStatusCompleted).
		Where(
			r.db.Where("user_id = ? AND counterparty_id = ?", userID, counterpartyID).
				Or("user_id = ? AND counterparty_id = ?", counterpartyID, userID),
		).
		Count(&count).Error
	return count > 0, err
}

// LastLocated returns the newest record for the user that carries a device
// location, or nil if none does.
func (r *TransactionRepository) LastLocated(ctx context.Context, userID string) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND geo_lat IS NOT NULL AND geo_lon IS NOT NULL", userID).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
