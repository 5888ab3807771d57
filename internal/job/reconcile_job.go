package job

import (
	"context"
	"log"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/service"

	"gorm.io/gorm"
)

// ReconcileJob sweeps every account on an interval and replays its
// transaction history against the stored balance. Discrepancies are
// logged for operators; the job never mutates balances.
type ReconcileJob struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	reconcile   *service.ReconcileService
	cfg         *config.Config
	stopCh      chan struct{}
	batchSize   int
}

func NewReconcileJob(db *gorm.DB, cfg *config.Config) *ReconcileJob {
	return &ReconcileJob{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		reconcile:   service.NewReconcileService(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		batchSize:   200,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	interval := time.Duration(j.cfg.Business.ReconcileIntervalMinutes) * time.Minute
	log.Printf("[ReconcileJob] started, interval=%s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileJob] context cancelled, stopping")
			return
		case <-j.stopCh:
			log.Println("[ReconcileJob] stopped")
			return
		case <-ticker.C:
			j.sweepAccounts(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

func (j *ReconcileJob) sweepAccounts(ctx context.Context) {
	start := time.Now()
	checked := 0
	broken := 0

	var afterID int64
	for {
		accounts, err := j.accountRepo.ListBatch(ctx, afterID, j.batchSize)
		if err != nil {
			log.Printf("[ReconcileJob] failed to list accounts: %v", err)
			return
		}
		if len(accounts) == 0 {
			break
		}

		for _, account := range accounts {
			result, err := j.reconcile.ValidateBalance(ctx, account.UserID, account.Currency)
			if err != nil {
				log.Printf("[ReconcileJob] validation error: userID=%s, currency=%s, err=%v",
					account.UserID, account.Currency, err)
				continue
			}
			checked++
			if !result.IsValid {
				broken++
				log.Printf("[ReconcileJob] DISCREPANCY: userID=%s, currency=%s, stored=%s, calculated=%s, diff=%s, records=%d",
					result.UserID, result.Currency,
					result.StoredBalance.String(), result.CalculatedBalance.String(),
					result.Discrepancy.String(), result.RecordCount)
			}
		}

		afterID = accounts[len(accounts)-1].ID
	}

	log.Printf("[ReconcileJob] sweep done: checked=%d, discrepancies=%d, took=%s",
		checked, broken, time.Since(start))
}
