package service

import (
	"context"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostingMeta is everything a posting carries besides the money itself.
type PostingMeta struct {
	TransactionNo       string // pre-allocated number; generated when empty
	Category            string
	Description         string
	CounterpartyID      string
	LinkedTransactionNo string
	RiskSnapshot        string
	RequestID           string
	GeoLat              *float64
	GeoLon              *float64
}

// LedgerService is the single balance-mutation primitive. One call is one
// posting: read balance under FOR UPDATE, validate the delta, then write the
// new balance and append the transaction record inside one database
// transaction, so no concurrent posting against the same account can act on
// an intermediate state.
//
// Paired postings (transfers, cross-border) are two independent Post calls;
// all-or-nothing semantics across the pair belong to the orchestrator.
type LedgerService struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Post applies one signed amount to one account. A negative result fails
// with repository.ErrInsufficientFunds and applies no mutation. On success
// the returned record carries the balance-after snapshot.
func (s *LedgerService) Post(ctx context.Context, userID, currency string, signedAmount decimal.Decimal, meta PostingMeta) (*model.TransactionRecord, error) {
	if signedAmount.IsZero() {
		return nil, ErrInvalidAmount
	}

	var record *model.TransactionRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetForUpdate(ctx, tx, userID, currency)
		if err != nil {
			return err
		}

		newBalance := account.Balance.Add(signedAmount)
		if newBalance.IsNegative() {
			return repository.ErrInsufficientFunds
		}

		if err := s.accountRepo.ApplyDelta(ctx, tx, userID, currency, signedAmount, account.Version); err != nil {
			return err
		}

		transactionNo := meta.TransactionNo
		if transactionNo == "" {
			transactionNo = idgen.GenerateTransactionNo()
		}

		record = &model.TransactionRecord{
			TransactionNo:       transactionNo,
			UserID:              userID,
			Amount:              signedAmount,
			Currency:            currency,
			Category:            meta.Category,
			Status:              model.TransactionStatusCompleted,
			Description:         meta.Description,
			CounterpartyID:      meta.CounterpartyID,
			LinkedTransactionNo: meta.LinkedTransactionNo,
			RiskSnapshot:        meta.RiskSnapshot,
			RequestID:           meta.RequestID,
			GeoLat:              meta.GeoLat,
			GeoLon:              meta.GeoLon,
			BalanceBefore:       account.Balance,
			BalanceAfter:        newBalance,
		}
		return s.transactionRepo.Create(ctx, tx, record)
	})

	if err != nil {
		return nil, err
	}
	return record, nil
}
