package service

import (
	"context"
	"errors"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountService is the read side of the account store plus user
// onboarding. All balance mutation goes through the orchestrator.
type AccountService struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository

	defaultDaily   decimal.Decimal
	defaultMonthly decimal.Decimal
}

func NewAccountService(db *gorm.DB, cfg *config.Config) *AccountService {
	return &AccountService{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		defaultDaily:    parseDecimal(cfg.Business.DefaultDailyLimit, decimal.Zero),
		defaultMonthly:  parseDecimal(cfg.Business.DefaultMonthlyLimit, decimal.Zero),
	}
}

// RegisterUser onboards a user. Accounts are opened lazily on first touch.
func (s *AccountService) RegisterUser(ctx context.Context, user *model.User) error {
	existing, err := s.userRepo.GetByUserID(ctx, user.UserID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	if existing != nil {
		return ErrDuplicateRequest
	}
	return s.userRepo.Create(ctx, user)
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.GetByUserID(ctx, userID)
}

// GetBalance returns the balance for one currency, opening the account at
// zero if the user has never touched it.
func (s *AccountService) GetBalance(ctx context.Context, userID, currency string) (*model.Account, error) {
	if _, err := s.userRepo.GetActiveByUserID(ctx, userID); err != nil {
		return nil, err
	}
	return s.accountRepo.GetOrCreate(ctx, userID, currency, s.defaultDaily, s.defaultMonthly)
}

// ListAccounts returns every currency balance the user holds.
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]*model.Account, error) {
	if _, err := s.userRepo.GetActiveByUserID(ctx, userID); err != nil {
		return nil, err
	}
	return s.accountRepo.ListByUserID(ctx, userID)
}

// ListTransactions pages through the user's history, newest first.
func (s *AccountService) ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]*model.TransactionRecord, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
