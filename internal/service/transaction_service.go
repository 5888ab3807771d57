package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/lock"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/risk"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OperationDebit  = "DEBIT"
	OperationCredit = "CREDIT"
)

// Operation is one financial operation as submitted by a caller.
type Operation struct {
	RequestID        string          // client idempotency key, optional
	UserID           string          //
	Amount           decimal.Decimal // always positive; Type carries the direction
	Currency         string          //
	Type             string          // DEBIT or CREDIT
	Category         string          //
	Description      string          //
	RecipientID      string          // transfers only
	RecipientCountry string          // risk input, optional
	GeoLat           *float64        // device location, optional
	GeoLon           *float64        //
}

// OperationResult is what a completed operation reports back.
type OperationResult struct {
	TransactionNo          string           `json:"transaction_no"`
	NewBalance             decimal.Decimal  `json:"new_balance"`
	RecipientTransactionNo string           `json:"recipient_transaction_no,omitempty"`
	RecipientNewBalance    *decimal.Decimal `json:"recipient_new_balance,omitempty"`
	Assessment             *risk.Assessment `json:"assessment,omitempty"`
	Duplicate              bool             `json:"duplicate,omitempty"` // replayed idempotent request
}

// TransactionService is the orchestrator: it composes the spending-limit
// guard, the risk engine and the ledger into "process one financial
// operation", including the paired posting for transfers.
//
// Gate order is fixed: validation, then limits (log reads only), then risk
// (log reads only), then the ledger (mutates). Nothing mutates until every
// gate has passed, and the log-reading gates run under the same per-account
// lock as the posting so their window sums cannot race a concurrent debit.
type TransactionService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	ledger          *LedgerService
	limits          *LimitService
	engine          *risk.Engine
	locks           lock.Factory
	notifier        *Notifier

	currencies     map[string]bool
	defaultDaily   decimal.Decimal
	defaultMonthly decimal.Decimal
}

func NewTransactionService(db *gorm.DB, cfg *config.Config, locks lock.Factory, engine *risk.Engine, notifier *Notifier) *TransactionService {
	loc := time.UTC
	if cfg.Business.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Business.Timezone); err == nil {
			loc = l
		}
	}

	currencies := make(map[string]bool, len(cfg.Business.Currencies))
	for _, c := range cfg.Business.Currencies {
		currencies[c] = true
	}

	return &TransactionService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		ledger:          NewLedgerService(db),
		limits:          NewLimitService(db, loc),
		engine:          engine,
		locks:           locks,
		notifier:        notifier,
		currencies:      currencies,
		defaultDaily:    parseDecimal(cfg.Business.DefaultDailyLimit, decimal.Zero),
		defaultMonthly:  parseDecimal(cfg.Business.DefaultMonthlyLimit, decimal.Zero),
	}
}

// Limits exposes the guard for components that share its windows.
func (s *TransactionService) Limits() *LimitService {
	return s.limits
}

// ProcessOperation runs the full gate sequence for one operation.
func (s *TransactionService) ProcessOperation(ctx context.Context, op *Operation) (*OperationResult, error) {
	// VALIDATE
	if !op.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !s.currencies[op.Currency] {
		return nil, ErrUnsupportedCurrency
	}
	if op.Type != OperationDebit && op.Type != OperationCredit {
		return nil, fmt.Errorf("unknown operation type %q", op.Type)
	}
	if _, err := s.userRepo.GetActiveByUserID(ctx, op.UserID); err != nil {
		return nil, err
	}

	// Idempotency, first pass (cheap, before the lock).
	if result, err := s.replayByRequestID(ctx, op.RequestID); err != nil || result != nil {
		return result, err
	}

	account, err := s.accountRepo.GetOrCreate(ctx, op.UserID, op.Currency, s.defaultDaily, s.defaultMonthly)
	if err != nil {
		return nil, err
	}

	// Serialize the gates and the posting against other operations on
	// this account. The limit and risk checks read the transaction log;
	// concurrent debits that both read pre-posting window sums could
	// jointly exceed the daily limit.
	accountLock := s.locks.NewLock(lock.AccountKey(op.UserID, op.Currency), uuid.NewString())
	if err := accountLock.Lock(ctx); err != nil {
		return nil, fmt.Errorf("account busy, retry: %w", err)
	}
	defer accountLock.Unlock(ctx)

	// Idempotency, second pass: a duplicate may have committed while we
	// waited for the lock.
	if result, err := s.replayByRequestID(ctx, op.RequestID); err != nil || result != nil {
		return result, err
	}

	now := time.Now()

	// LIMIT_CHECK: debits only; credits always pass.
	if op.Type == OperationDebit {
		if err := s.limits.Check(ctx, account, op.Amount, now); err != nil {
			return nil, err
		}
	}

	// RISK_CHECK
	assessment, err := s.engine.Assess(ctx, risk.Context{
		UserID:           op.UserID,
		RecipientID:      op.RecipientID,
		Amount:           op.Amount,
		Currency:         op.Currency,
		Category:         op.Category,
		OccurredAt:       now,
		RecipientCountry: op.RecipientCountry,
		SenderLat:        op.GeoLat,
		SenderLon:        op.GeoLon,
	})
	if err != nil {
		return nil, fmt.Errorf("risk assessment failed: %w", err)
	}
	if assessment.Blocking() {
		return nil, &DeclinedError{Assessment: assessment}
	}
	if assessment.Recommendation == risk.RecommendReview && s.cfg.Business.BlockOnReview {
		return nil, &DeclinedError{Assessment: assessment}
	}

	snapshot := ""
	if len(assessment.Flags) > 0 {
		raw, err := json.Marshal(assessment)
		if err == nil {
			snapshot = string(raw)
		}
	}

	// POST_PRIMARY
	signed := op.Amount
	if op.Type == OperationDebit {
		signed = op.Amount.Neg()
	}
	primary, err := s.ledger.Post(ctx, op.UserID, op.Currency, signed, PostingMeta{
		Category:       op.Category,
		Description:    op.Description,
		CounterpartyID: op.RecipientID,
		RiskSnapshot:   snapshot,
		RequestID:      op.RequestID,
		GeoLat:         op.GeoLat,
		GeoLon:         op.GeoLon,
	})
	if err != nil {
		return nil, err
	}

	result := &OperationResult{
		TransactionNo: primary.TransactionNo,
		NewBalance:    primary.BalanceAfter,
		Assessment:    assessment,
	}

	// POST_COUNTERPARTY: transfers only.
	if op.Category == model.CategoryTransferOut && op.RecipientID != "" {
		credit, err := s.postCounterparty(ctx, op, primary)
		if err != nil {
			return nil, err
		}
		result.RecipientTransactionNo = credit.TransactionNo
		result.RecipientNewBalance = &credit.BalanceAfter
	}

	// NOTIFY: best effort, never rolls anything back.
	s.notifier.Notify(ctx, primary.TransactionNo, map[string]interface{}{
		"event":          "operation.completed",
		"transaction_no": primary.TransactionNo,
		"user_id":        op.UserID,
		"category":       op.Category,
		"amount":         op.Amount.String(),
		"currency":       op.Currency,
		"completed_at":   time.Now().Format(time.RFC3339),
	})

	return result, nil
}

// postCounterparty posts the offsetting credit leg. If it fails, the
// primary debit has already committed, so a compensating reversal is posted
// against the sender before the error is surfaced. The ledger stays
// append-only: the observable outcome is no net balance change and a trail
// of two linked records.
func (s *TransactionService) postCounterparty(ctx context.Context, op *Operation, primary *model.TransactionRecord) (*model.TransactionRecord, error) {
	credit, err := s.creditRecipient(ctx, op, primary)
	if err == nil {
		return credit, nil
	}

	reversal, revErr := s.ledger.Post(ctx, op.UserID, op.Currency, op.Amount, PostingMeta{
		TransactionNo:       idgen.GenerateReversalNo(),
		Category:            model.CategoryReversal,
		Description:         fmt.Sprintf("reversal of %s: counterparty posting failed", primary.TransactionNo),
		CounterpartyID:      op.RecipientID,
		LinkedTransactionNo: primary.TransactionNo,
	})
	if revErr != nil {
		// Both legs stuck: money left the sender and the reversal
		// could not be written. This needs an operator, loudly.
		log.Printf("[TransactionService] CRITICAL: reversal failed for %s: %v (counterparty error: %v)",
			primary.TransactionNo, revErr, err)
		return nil, fmt.Errorf("counterparty posting failed and reversal failed: %v (original %s)", revErr, primary.TransactionNo)
	}

	return nil, &CounterpartyFailureError{
		OriginalNo: primary.TransactionNo,
		ReversalNo: reversal.TransactionNo,
		Cause:      err,
	}
}

func (s *TransactionService) creditRecipient(ctx context.Context, op *Operation, primary *model.TransactionRecord) (*model.TransactionRecord, error) {
	if _, err := s.userRepo.GetActiveByUserID(ctx, op.RecipientID); err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.GetOrCreate(ctx, op.RecipientID, op.Currency, s.defaultDaily, s.defaultMonthly); err != nil {
		return nil, err
	}

	recipientLock := s.locks.NewLock(lock.AccountKey(op.RecipientID, op.Currency), uuid.NewString())
	if err := recipientLock.Lock(ctx); err != nil {
		return nil, err
	}
	defer recipientLock.Unlock(ctx)

	return s.ledger.Post(ctx, op.RecipientID, op.Currency, op.Amount, PostingMeta{
		Category:            model.CategoryTransferIn,
		Description:         op.Description,
		CounterpartyID:      op.UserID,
		LinkedTransactionNo: primary.TransactionNo,
	})
}

// replayByRequestID reconstructs the original result for a repeated
// request. The repeated call observes exactly what the first one did.
func (s *TransactionService) replayByRequestID(ctx context.Context, requestID string) (*OperationResult, error) {
	if requestID == "" {
		return nil, nil
	}
	existing, err := s.transactionRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	return &OperationResult{
		TransactionNo: existing.TransactionNo,
		NewBalance:    existing.BalanceAfter,
		Duplicate:     true,
	}, nil
}

func parseDecimal(raw string, fallback decimal.Decimal) decimal.Decimal {
	if raw == "" {
		return fallback
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("invalid decimal in config: %q: %v", raw, err)
	}
	return value
}
