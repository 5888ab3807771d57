package job

import (
	"context"
	"log"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"

	"gorm.io/gorm"
)

// CrossBorderTimeoutJob parks cross-border payments that have sat in
// PROCESSING past the configured window. The sender's debit already
// happened, so the payment is moved to TIMEOUT for manual inspection
// rather than auto-reversed.
type CrossBorderTimeoutJob struct {
	db          *gorm.DB
	paymentRepo *repository.CrossBorderRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewCrossBorderTimeoutJob(db *gorm.DB, cfg *config.Config) *CrossBorderTimeoutJob {
	return &CrossBorderTimeoutJob{
		db:          db,
		paymentRepo: repository.NewCrossBorderRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    30 * time.Second,
		batchSize:   50,
	}
}

func (j *CrossBorderTimeoutJob) Start(ctx context.Context) {
	log.Println("[CrossBorderTimeoutJob] started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[CrossBorderTimeoutJob] context cancelled, stopping")
			return
		case <-j.stopCh:
			log.Println("[CrossBorderTimeoutJob] stopped")
			return
		case <-ticker.C:
			j.parkStalePayments(ctx)
		}
	}
}

func (j *CrossBorderTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *CrossBorderTimeoutJob) parkStalePayments(ctx context.Context) {
	timeout := time.Duration(j.cfg.Business.ProcessingTimeoutMinutes) * time.Minute
	beforeTime := time.Now().Add(-timeout)

	payments, err := j.paymentRepo.GetStaleProcessing(ctx, beforeTime, j.batchSize)
	if err != nil {
		log.Printf("[CrossBorderTimeoutJob] failed to query stale payments: %v", err)
		return
	}

	if len(payments) == 0 {
		return
	}

	log.Printf("[CrossBorderTimeoutJob] found %d stale PROCESSING payments", len(payments))

	parkedCount := 0
	for _, payment := range payments {
		err := j.paymentRepo.UpdateStatus(ctx, nil, payment.PaymentNo,
			model.CrossBorderStatusProcessing, model.CrossBorderStatusTimeout, nil)
		if err != nil {
			log.Printf("[CrossBorderTimeoutJob] failed to park payment: paymentNo=%s, err=%v",
				payment.PaymentNo, err)
			continue
		}
		parkedCount++
		log.Printf("[CrossBorderTimeoutJob] payment parked as TIMEOUT: paymentNo=%s, senderID=%s, amount=%s %s",
			payment.PaymentNo, payment.SenderID, payment.SenderAmount.String(), payment.SenderCurrency)
	}

	log.Printf("[CrossBorderTimeoutJob] parked %d payments this pass", parkedCount)
}
