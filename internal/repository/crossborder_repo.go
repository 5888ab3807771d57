package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound      = errors.New("cross-border payment not found")
	ErrPaymentStatusInvalid = errors.New("invalid cross-border payment status transition")
)

type CrossBorderRepository struct {
	db *gorm.DB
}

func NewCrossBorderRepository(db *gorm.DB) *CrossBorderRepository {
	return &CrossBorderRepository{db: db}
}

func (r *CrossBorderRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.CrossBorderPayment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *CrossBorderRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*model.CrossBorderPayment, error) {
	var payment model.CrossBorderPayment
	err := r.db.WithContext(ctx).Where("payment_no = ?", paymentNo).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *CrossBorderRepository) GetByRequestID(ctx context.Context, requestID string) (*model.CrossBorderPayment, error) {
	if requestID == "" {
		return nil, nil
	}
	var payment model.CrossBorderPayment
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus moves the payment through its state machine with a
// compare-and-set on the current status, so two workers can never apply the
// same transition twice.
func (r *CrossBorderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, paymentNo, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanTransitionCrossBorder(fromStatus, toStatus) {
		return ErrPaymentStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if toStatus == model.CrossBorderStatusCompleted {
		now := time.Now()
		updates["completed_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.CrossBorderPayment{}).
		Where("payment_no = ? AND status = ?", paymentNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentStatusInvalid
	}
	return nil
}

// GetStaleProcessing returns PROCESSING payments untouched since beforeTime,
// for the timeout job.
func (r *CrossBorderRepository) GetStaleProcessing(ctx context.Context, beforeTime time.Time, limit int) ([]*model.CrossBorderPayment, error) {
	var payments []*model.CrossBorderPayment
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.CrossBorderStatusProcessing, beforeTime).
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *CrossBorderRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.CrossBorderPayment, int64, error) {
	var payments []*model.CrossBorderPayment
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.CrossBorderPayment{}).
		Where("sender_id = ? OR recipient_id = ?", userID, userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error

	return payments, total, err
}
