package job

import (
	"context"
	"testing"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/database"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newJobTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func seedPayment(t *testing.T, db *gorm.DB, paymentNo, status string, age time.Duration) {
	t.Helper()
	payment := &model.CrossBorderPayment{
		PaymentNo:         paymentNo,
		RequestID:         "req-" + paymentNo,
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      decimal.NewFromInt(100),
		SenderCurrency:    "USD",
		RecipientAmount:   decimal.NewFromInt(132000),
		RecipientCurrency: "ZWL",
		ExchangeRate:      decimal.NewFromInt(1320),
		ExchangeFee:       decimal.NewFromInt(2),
		TransferFee:       decimal.NewFromInt(2),
		Status:            status,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("failed to seed payment %s: %v", paymentNo, err)
	}
	// Backdate past autoUpdateTime.
	stale := time.Now().Add(-age)
	err := db.Model(&model.CrossBorderPayment{}).
		Where("payment_no = ?", paymentNo).
		UpdateColumn("updated_at", stale).Error
	if err != nil {
		t.Fatalf("failed to backdate payment %s: %v", paymentNo, err)
	}
}

func TestParkStalePayments(t *testing.T) {
	db := newJobTestDB(t)
	cfg := &config.Config{Business: config.BusinessConfig{ProcessingTimeoutMinutes: 30}}

	seedPayment(t, db, "CBP-stale", model.CrossBorderStatusProcessing, time.Hour)
	seedPayment(t, db, "CBP-fresh", model.CrossBorderStatusProcessing, time.Minute)
	seedPayment(t, db, "CBP-held", model.CrossBorderStatusComplianceHold, time.Hour)

	j := NewCrossBorderTimeoutJob(db, cfg)
	j.parkStalePayments(context.Background())

	status := func(paymentNo string) string {
		var payment model.CrossBorderPayment
		if err := db.Where("payment_no = ?", paymentNo).First(&payment).Error; err != nil {
			t.Fatalf("failed to read payment %s: %v", paymentNo, err)
		}
		return payment.Status
	}

	if got := status("CBP-stale"); got != model.CrossBorderStatusTimeout {
		t.Errorf("stale payment status = %s, want %s", got, model.CrossBorderStatusTimeout)
	}
	if got := status("CBP-fresh"); got != model.CrossBorderStatusProcessing {
		t.Errorf("fresh payment status = %s, want %s", got, model.CrossBorderStatusProcessing)
	}
	if got := status("CBP-held"); got != model.CrossBorderStatusComplianceHold {
		t.Errorf("held payment status = %s, want %s", got, model.CrossBorderStatusComplianceHold)
	}
}
