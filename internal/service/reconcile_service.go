package service

import (
	"context"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// balanceEpsilon tolerates rounding drift: one cent of whatever currency.
var balanceEpsilon = decimal.NewFromFloat(0.01)

// ReconcileResult reports one replay of a user's history against the
// stored balance.
type ReconcileResult struct {
	UserID            string          `json:"user_id"`
	Currency          string          `json:"currency"`
	IsValid           bool            `json:"is_valid"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	StoredBalance     decimal.Decimal `json:"stored_balance"`
	Discrepancy       decimal.Decimal `json:"discrepancy"`
	RecordCount       int             `json:"record_count"`
}

// ReconcileService recomputes balances from the append-only transaction
// log. Strictly read-only: discrepancies are reported for human review,
// never corrected automatically.
type ReconcileService struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewReconcileService(db *gorm.DB) *ReconcileService {
	return &ReconcileService{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// ValidateBalance replays every completed record for the account: incoming
// categories add, everything else subtracts.
func (s *ReconcileService) ValidateBalance(ctx context.Context, userID, currency string) (*ReconcileResult, error) {
	account, err := s.accountRepo.Get(ctx, userID, currency)
	if err != nil {
		return nil, err
	}

	records, err := s.transactionRepo.ListAllForReplay(ctx, userID, currency)
	if err != nil {
		return nil, err
	}

	calculated := decimal.Zero
	for _, record := range records {
		if model.IsCreditCategory(record.Category) {
			calculated = calculated.Add(record.Amount.Abs())
		} else {
			calculated = calculated.Sub(record.Amount.Abs())
		}
	}

	discrepancy := account.Balance.Sub(calculated)

	return &ReconcileResult{
		UserID:            userID,
		Currency:          currency,
		IsValid:           discrepancy.Abs().LessThan(balanceEpsilon),
		CalculatedBalance: calculated,
		StoredBalance:     account.Balance,
		Discrepancy:       discrepancy,
		RecordCount:       len(records),
	}, nil
}

// ValidateUser replays every currency the user holds.
func (s *ReconcileService) ValidateUser(ctx context.Context, userID string) ([]*ReconcileResult, error) {
	accounts, err := s.accountRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]*ReconcileResult, 0, len(accounts))
	for _, account := range accounts {
		result, err := s.ValidateBalance(ctx, userID, account.Currency)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
