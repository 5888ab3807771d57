package service

import (
	"context"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LimitService is the spending-limit guard. It only reads the transaction
// log; it is always evaluated before the ledger touches any balance, and
// only for debit-type operations.
type LimitService struct {
	transactionRepo *repository.TransactionRepository
	loc             *time.Location
}

func NewLimitService(db *gorm.DB, loc *time.Location) *LimitService {
	if loc == nil {
		loc = time.UTC
	}
	return &LimitService{
		transactionRepo: repository.NewTransactionRepository(db),
		loc:             loc,
	}
}

// Check verifies the debit fits both the daily and monthly windows of the
// account. A zero limit means the window is not capped (system accounts).
func (s *LimitService) Check(ctx context.Context, account *model.Account, amount decimal.Decimal, asOf time.Time) error {
	local := asOf.In(s.loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	startOfMonth := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)

	if account.DailyLimit.IsPositive() {
		used, err := s.transactionRepo.SumDebits(ctx, account.UserID, account.Currency, startOfDay, asOf)
		if err != nil {
			return err
		}
		if used.Add(amount).GreaterThan(account.DailyLimit) {
			return &LimitExceededError{
				Scope:     "DAILY",
				Limit:     account.DailyLimit,
				Used:      used,
				Requested: amount,
			}
		}
	}

	if account.MonthlyLimit.IsPositive() {
		used, err := s.transactionRepo.SumDebits(ctx, account.UserID, account.Currency, startOfMonth, asOf)
		if err != nil {
			return err
		}
		if used.Add(amount).GreaterThan(account.MonthlyLimit) {
			return &LimitExceededError{
				Scope:     "MONTHLY",
				Limit:     account.MonthlyLimit,
				Used:      used,
				Requested: amount,
			}
		}
	}

	return nil
}

// StartOfMonth exposes the month window start for callers that share the
// same local-time convention (friend-network cap).
func (s *LimitService) StartOfMonth(asOf time.Time) time.Time {
	local := asOf.In(s.loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
}
