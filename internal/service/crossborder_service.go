package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

// InitiateRequest starts one cross-border payment.
type InitiateRequest struct {
	RequestID         string
	SenderID          string
	RecipientID       string
	SenderAmount      decimal.Decimal
	SenderCurrency    string
	RecipientCurrency string
	Purpose           string
	GeoLat            *float64
	GeoLon            *float64
}

// CrossBorderService handles the currency-converting two-sided posting: it
// locks an exchange rate, computes the fee split, gates on risk, and runs
// the two ledger legs under the same compensation discipline as a domestic
// transfer. A critical risk level parks the payment in COMPLIANCE_HOLD with
// no ledger mutation at all.
type CrossBorderService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	paymentRepo     *repository.CrossBorderRepository
	rateRepo        *repository.RateRepository
	ledger          *LedgerService
	limits          *LimitService
	engine          *risk.Engine
	locks           lock.Factory
	notifier        *Notifier

	exchangeFeeRate   decimal.Decimal
	transferFee       decimal.Decimal
	identityThreshold decimal.Decimal
	friendNetworkCap  decimal.Decimal
	defaultDaily      decimal.Decimal
	defaultMonthly    decimal.Decimal
}

func NewCrossBorderService(db *gorm.DB, cfg *config.Config, locks lock.Factory, engine *risk.Engine, notifier *Notifier) *CrossBorderService {
	loc := time.UTC
	if cfg.Business.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Business.Timezone); err == nil {
			loc = l
		}
	}

	return &CrossBorderService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		paymentRepo:     repository.NewCrossBorderRepository(db),
		rateRepo:        repository.NewRateRepository(db),
		ledger:          NewLedgerService(db),
		limits:          NewLimitService(db, loc),
		engine:          engine,
		locks:           locks,
		notifier:        notifier,

		exchangeFeeRate:   parseDecimal(cfg.Business.ExchangeFeeRate, decimal.Zero),
		transferFee:       parseDecimal(cfg.Business.TransferFee, decimal.Zero),
		identityThreshold: parseDecimal(cfg.Business.IdentityVerifyThreshold, decimal.Zero),
		friendNetworkCap:  parseDecimal(cfg.Business.FriendNetworkMonthlyCap, decimal.Zero),
		defaultDaily:      parseDecimal(cfg.Business.DefaultDailyLimit, decimal.Zero),
		defaultMonthly:    parseDecimal(cfg.Business.DefaultMonthlyLimit, decimal.Zero),
	}
}

// Initiate creates and, unless held for compliance, executes the payment.
// Fees are computed from the sender amount only; the recipient amount is
// sender amount times the rate locked here.
func (s *CrossBorderService) Initiate(ctx context.Context, req *InitiateRequest) (*model.CrossBorderPayment, error) {
	if !req.SenderAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	// The request ID is mandatory here: payment_no generation and the
	// unique request_id column both key off it, and a settlement retry
	// without one could double-debit.
	if req.RequestID == "" {
		return nil, ErrRequestIDRequired
	}

	sender, err := s.userRepo.GetActiveByUserID(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	if !sender.InternationalEnabled {
		return nil, ErrInternationalDisabled
	}
	if s.identityThreshold.IsPositive() && req.SenderAmount.GreaterThan(s.identityThreshold) && !sender.IdentityVerified {
		return nil, ErrComplianceRequired
	}

	recipient, err := s.userRepo.GetActiveByUserID(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}

	// Idempotency: a replayed request observes the outcome the original
	// call reported, not unconditional success.
	if existing, err := s.paymentRepo.GetByRequestID(ctx, req.RequestID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.replayOutcome(existing)
	}

	rate, err := s.rateRepo.GetActiveRate(ctx, req.SenderCurrency, req.RecipientCurrency)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Friend-network monthly cap, separate from the account spending
	// limits: cumulative sender-to-recipient cross-border volume.
	if s.friendNetworkCap.IsPositive() {
		used, err := s.transactionRepo.SumTransfersToCounterparty(
			ctx, req.SenderID, req.RecipientID, model.CategoryCrossBorderOut, s.limits.StartOfMonth(now))
		if err != nil {
			return nil, err
		}
		if used.Add(req.SenderAmount).GreaterThan(s.friendNetworkCap) {
			return nil, &LimitExceededError{
				Scope:     "FRIEND_NETWORK_MONTHLY",
				Limit:     s.friendNetworkCap,
				Used:      used,
				Requested: req.SenderAmount,
			}
		}
	}

	recipientAmount := req.SenderAmount.Mul(rate.Rate).Round(4)
	exchangeFee := req.SenderAmount.Mul(s.exchangeFeeRate).Round(4)

	payment := &model.CrossBorderPayment{
		PaymentNo:         idgen.GeneratePaymentNo(),
		RequestID:         req.RequestID,
		SenderID:          req.SenderID,
		RecipientID:       req.RecipientID,
		SenderAmount:      req.SenderAmount,
		SenderCurrency:    req.SenderCurrency,
		RecipientAmount:   recipientAmount,
		RecipientCurrency: req.RecipientCurrency,
		ExchangeRate:      rate.Rate,
		ExchangeFee:       exchangeFee,
		TransferFee:       s.transferFee,
		Purpose:           req.Purpose,
		Status:            model.CrossBorderStatusPending,
	}

	assessment, err := s.engine.Assess(ctx, risk.Context{
		UserID:           req.SenderID,
		RecipientID:      req.RecipientID,
		Amount:           req.SenderAmount,
		Currency:         req.SenderCurrency,
		Category:         model.CategoryCrossBorderOut,
		OccurredAt:       now,
		RecipientCountry: recipient.CountryCode,
		CrossBorder:      true,
		SenderLat:        req.GeoLat,
		SenderLon:        req.GeoLon,
	})
	if err != nil {
		return nil, fmt.Errorf("risk assessment failed: %w", err)
	}
	if raw, err := json.Marshal(assessment); err == nil {
		payment.RiskSnapshot = string(raw)
	}

	// Critical risk: persist the hold and stop before any ledger
	// mutation. A compliance decision resumes or rejects it.
	if assessment.Level == risk.LevelCritical {
		payment.Status = model.CrossBorderStatusComplianceHold
		if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
			return nil, err
		}
		s.notifyPayment(ctx, payment, "crossborder.compliance_hold")
		return payment, &ComplianceHoldError{PaymentNo: payment.PaymentNo, Assessment: assessment}
	}
	if assessment.Blocking() {
		payment.Status = model.CrossBorderStatusFailed
		payment.FailureReason = fmt.Sprintf("declined by risk engine: score %d", assessment.Score)
		if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
			return nil, err
		}
		return payment, &DeclinedError{Assessment: assessment}
	}

	if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
		return nil, err
	}

	if err := s.executePostings(ctx, payment); err != nil {
		return payment, err
	}

	s.notifyPayment(ctx, payment, "crossborder.processing")
	return payment, nil
}

// executePostings runs the two ledger legs for a payment whose risk gate
// has passed: debit principal plus fees from the sender, credit the
// converted amount to the recipient, compensate on a failed second leg.
// On success the payment moves to PROCESSING, waiting on the provider
// reference.
func (s *CrossBorderService) executePostings(ctx context.Context, payment *model.CrossBorderPayment) error {
	fromStatus := payment.Status

	senderAccount, err := s.accountRepo.GetOrCreate(ctx, payment.SenderID, payment.SenderCurrency, s.defaultDaily, s.defaultMonthly)
	if err != nil {
		return err
	}

	senderLock := s.locks.NewLock(lock.AccountKey(payment.SenderID, payment.SenderCurrency), uuid.NewString())
	if err := senderLock.Lock(ctx); err != nil {
		s.markFailed(ctx, payment, fromStatus, "sender account lock unavailable")
		return fmt.Errorf("account busy, retry: %w", err)
	}
	defer senderLock.Unlock(ctx)

	// Under the sender lock: the limit windows must not race a concurrent
	// posting on the same account, and a denial here lands the payment in
	// FAILED rather than stranding it in its current status.
	totalDebit := payment.TotalDebit()
	if err := s.limits.Check(ctx, senderAccount, totalDebit, time.Now()); err != nil {
		s.markFailed(ctx, payment, fromStatus, err.Error())
		return err
	}

	debit, err := s.ledger.Post(ctx, payment.SenderID, payment.SenderCurrency, totalDebit.Neg(), PostingMeta{
		Category:       model.CategoryCrossBorderOut,
		Description:    fmt.Sprintf("cross-border to %s: %s", payment.RecipientID, payment.Purpose),
		CounterpartyID: payment.RecipientID,
		RiskSnapshot:   payment.RiskSnapshot,
	})
	if err != nil {
		s.markFailed(ctx, payment, fromStatus, err.Error())
		return err
	}

	credit, err := s.creditRecipient(ctx, payment, debit)
	if err != nil {
		reversal, revErr := s.ledger.Post(ctx, payment.SenderID, payment.SenderCurrency, totalDebit, PostingMeta{
			TransactionNo:       idgen.GenerateReversalNo(),
			Category:            model.CategoryReversal,
			Description:         fmt.Sprintf("reversal of %s: cross-border credit leg failed", debit.TransactionNo),
			CounterpartyID:      payment.RecipientID,
			LinkedTransactionNo: debit.TransactionNo,
		})
		if revErr != nil {
			s.markFailed(ctx, payment, fromStatus, "credit leg and reversal both failed")
			return fmt.Errorf("credit leg failed and reversal failed: %v (original %s)", revErr, debit.TransactionNo)
		}
		s.markFailed(ctx, payment, fromStatus, fmt.Sprintf("credit leg failed, reversed by %s", reversal.TransactionNo))
		return &CounterpartyFailureError{
			OriginalNo: debit.TransactionNo,
			ReversalNo: reversal.TransactionNo,
			Cause:      err,
		}
	}

	err = s.paymentRepo.UpdateStatus(ctx, nil, payment.PaymentNo, fromStatus, model.CrossBorderStatusProcessing, map[string]interface{}{
		"debit_transaction_no":  debit.TransactionNo,
		"credit_transaction_no": credit.TransactionNo,
	})
	if err != nil {
		return err
	}
	payment.Status = model.CrossBorderStatusProcessing
	payment.DebitTransactionNo = debit.TransactionNo
	payment.CreditTransactionNo = credit.TransactionNo
	return nil
}

func (s *CrossBorderService) creditRecipient(ctx context.Context, payment *model.CrossBorderPayment, debit *model.TransactionRecord) (*model.TransactionRecord, error) {
	if _, err := s.accountRepo.GetOrCreate(ctx, payment.RecipientID, payment.RecipientCurrency, s.defaultDaily, s.defaultMonthly); err != nil {
		return nil, err
	}

	recipientLock := s.locks.NewLock(lock.AccountKey(payment.RecipientID, payment.RecipientCurrency), uuid.NewString())
	if err := recipientLock.Lock(ctx); err != nil {
		return nil, err
	}
	defer recipientLock.Unlock(ctx)

	return s.ledger.Post(ctx, payment.RecipientID, payment.RecipientCurrency, payment.RecipientAmount, PostingMeta{
		Category:            model.CategoryCrossBorderIn,
		Description:         fmt.Sprintf("cross-border from %s: %s", payment.SenderID, payment.Purpose),
		CounterpartyID:      payment.SenderID,
		LinkedTransactionNo: debit.TransactionNo,
	})
}

// replayOutcome reconstructs the result of the call that created the
// payment. Only a payment whose postings committed replays as success: a
// held payment reports the hold again and a failed one stays failed.
func (s *CrossBorderService) replayOutcome(payment *model.CrossBorderPayment) (*model.CrossBorderPayment, error) {
	switch payment.Status {
	case model.CrossBorderStatusComplianceHold, model.CrossBorderStatusDocumentsRequested:
		return payment, &ComplianceHoldError{
			PaymentNo:  payment.PaymentNo,
			Assessment: assessmentFromSnapshot(payment.RiskSnapshot),
		}
	case model.CrossBorderStatusFailed, model.CrossBorderStatusRejected, model.CrossBorderStatusPending:
		return payment, fmt.Errorf("%w: %s: %s", ErrPaymentFailed, payment.PaymentNo, payment.FailureReason)
	default:
		return payment, nil
	}
}

func assessmentFromSnapshot(snapshot string) *risk.Assessment {
	if snapshot == "" {
		return nil
	}
	var assessment risk.Assessment
	if err := json.Unmarshal([]byte(snapshot), &assessment); err != nil {
		return nil
	}
	return &assessment
}

func (s *CrossBorderService) markFailed(ctx context.Context, payment *model.CrossBorderPayment, fromStatus, reason string) {
	err := s.paymentRepo.UpdateStatus(ctx, nil, payment.PaymentNo, fromStatus, model.CrossBorderStatusFailed, map[string]interface{}{
		"failure_reason": reason,
	})
	if err == nil {
		payment.Status = model.CrossBorderStatusFailed
		payment.FailureReason = reason
	}
}

// Complete attaches the provider reference and finishes the payment. Also
// accepts payments the timeout job parked, so a late provider confirmation
// still lands.
func (s *CrossBorderService) Complete(ctx context.Context, paymentNo, providerReference string) (*model.CrossBorderPayment, error) {
	payment, err := s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, err
	}

	err = s.paymentRepo.UpdateStatus(ctx, nil, paymentNo, payment.Status, model.CrossBorderStatusCompleted, map[string]interface{}{
		"provider_reference": providerReference,
	})
	if err != nil {
		return nil, err
	}

	payment, err = s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, err
	}
	s.notifyPayment(ctx, payment, "crossborder.completed")
	return payment, nil
}

// ============================================================================
// Compliance decisions (external reviewer callbacks)
// ============================================================================

// ApproveHold resumes a held payment through the normal posting path.
func (s *CrossBorderService) ApproveHold(ctx context.Context, paymentNo string) (*model.CrossBorderPayment, error) {
	payment, err := s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.CrossBorderStatusComplianceHold && payment.Status != model.CrossBorderStatusDocumentsRequested {
		return nil, repository.ErrPaymentStatusInvalid
	}

	if err := s.executePostings(ctx, payment); err != nil {
		return payment, err
	}
	s.notifyPayment(ctx, payment, "crossborder.hold_approved")
	return payment, nil
}

// RejectHold closes a held payment. No money ever moved.
func (s *CrossBorderService) RejectHold(ctx context.Context, paymentNo, reason string) (*model.CrossBorderPayment, error) {
	payment, err := s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, err
	}

	err = s.paymentRepo.UpdateStatus(ctx, nil, paymentNo, payment.Status, model.CrossBorderStatusRejected, map[string]interface{}{
		"failure_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	payment.Status = model.CrossBorderStatusRejected
	payment.FailureReason = reason
	s.notifyPayment(ctx, payment, "crossborder.rejected")
	return payment, nil
}

// RequestDocuments keeps the payment held while the reviewer collects more
// paperwork from the sender.
func (s *CrossBorderService) RequestDocuments(ctx context.Context, paymentNo string) (*model.CrossBorderPayment, error) {
	payment, err := s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, err
	}

	err = s.paymentRepo.UpdateStatus(ctx, nil, paymentNo, payment.Status, model.CrossBorderStatusDocumentsRequested, nil)
	if err != nil {
		return nil, err
	}
	payment.Status = model.CrossBorderStatusDocumentsRequested
	s.notifyPayment(ctx, payment, "crossborder.documents_requested")
	return payment, nil
}

func (s *CrossBorderService) GetPayment(ctx context.Context, paymentNo string) (*model.CrossBorderPayment, error) {
	return s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
}

func (s *CrossBorderService) ListPayments(ctx context.Context, userID string, page, pageSize int) ([]*model.CrossBorderPayment, int64, error) {
	return s.paymentRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *CrossBorderService) notifyPayment(ctx context.Context, payment *model.CrossBorderPayment, event string) {
	s.notifier.Notify(ctx, payment.PaymentNo, map[string]interface{}{
		"event":              event,
		"payment_no":         payment.PaymentNo,
		"sender_id":          payment.SenderID,
		"recipient_id":       payment.RecipientID,
		"sender_amount":      payment.SenderAmount.String(),
		"sender_currency":    payment.SenderCurrency,
		"recipient_amount":   payment.RecipientAmount.String(),
		"recipient_currency": payment.RecipientCurrency,
		"status":             payment.Status,
	})
}

// IsNotFound reports user/payment absence across the repository sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrUserNotFound) ||
		errors.Is(err, repository.ErrAccountNotFound) ||
		errors.Is(err, repository.ErrPaymentNotFound)
}
