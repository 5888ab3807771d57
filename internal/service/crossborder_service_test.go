package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
)

func TestInitiateComputesFeesAndPostsBothLegs(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "200.00")
	ts.seedRate(t, "USD", "ZWL", "1320")

	payment, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-1",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
		Purpose:           "family support",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	// 2% exchange fee plus the flat transfer fee, all from the sender.
	assertDecimalEqual(t, payment.ExchangeFee, "2.00", "exchange fee")
	assertDecimalEqual(t, payment.TransferFee, "2.00", "transfer fee")
	assertDecimalEqual(t, payment.TotalDebit(), "104.00", "total debit")
	assertDecimalEqual(t, payment.RecipientAmount, "132000.00", "recipient amount")
	assertDecimalEqual(t, payment.ExchangeRate, "1320", "locked rate")

	if payment.Status != model.CrossBorderStatusProcessing {
		t.Errorf("status = %s, want %s", payment.Status, model.CrossBorderStatusProcessing)
	}
	if payment.DebitTransactionNo == "" || payment.CreditTransactionNo == "" {
		t.Error("payment must carry both ledger record numbers")
	}

	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "96.00", "sender balance")
	assertDecimalEqual(t, ts.balance(t, "u-b", "ZWL"), "132000.00", "recipient balance")

	credit, err := ts.txRepo.GetByTransactionNo(context.Background(), payment.CreditTransactionNo)
	if err != nil || credit == nil {
		t.Fatalf("credit leg not found: %v", err)
	}
	if credit.LinkedTransactionNo != payment.DebitTransactionNo {
		t.Errorf("credit linked to %s, want %s", credit.LinkedTransactionNo, payment.DebitTransactionNo)
	}
	if credit.Category != model.CategoryCrossBorderIn {
		t.Errorf("credit category = %s, want %s", credit.Category, model.CategoryCrossBorderIn)
	}
}

func TestInitiateRequiresRate(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "200.00")

	_, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-1",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	})
	if !errors.Is(err, repository.ErrRateUnavailable) {
		t.Fatalf("err = %v, want ErrRateUnavailable", err)
	}

	// No payment row and no money moved.
	existing, err := ts.paymentRepo.GetByRequestID(context.Background(), "cb-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if existing != nil {
		t.Error("payment row created despite missing rate")
	}
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "200.00", "sender balance")
}

func TestInitiateGates(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-domestic", "ZW", false, false)
	ts.seedUser(t, "u-unverified", "ZW", true, false)
	ts.seedUser(t, "u-b", "ZW", false, false)

	tests := []struct {
		name    string
		req     *InitiateRequest
		wantErr error
	}{
		{
			name: "missing request id",
			req: &InitiateRequest{
				SenderID: "u-domestic", RecipientID: "u-b",
				SenderAmount: mustDecimal(t, "10"), SenderCurrency: "USD", RecipientCurrency: "ZWL",
			},
			wantErr: ErrRequestIDRequired,
		},
		{
			name: "international not enabled",
			req: &InitiateRequest{
				RequestID: "cb-g1", SenderID: "u-domestic", RecipientID: "u-b",
				SenderAmount: mustDecimal(t, "10"), SenderCurrency: "USD", RecipientCurrency: "ZWL",
			},
			wantErr: ErrInternationalDisabled,
		},
		{
			name: "identity verification threshold",
			req: &InitiateRequest{
				RequestID: "cb-g2", SenderID: "u-unverified", RecipientID: "u-b",
				SenderAmount: mustDecimal(t, "600"), SenderCurrency: "USD", RecipientCurrency: "ZWL",
			},
			wantErr: ErrComplianceRequired,
		},
		{
			name: "zero amount",
			req: &InitiateRequest{
				RequestID: "cb-g3", SenderID: "u-domestic", RecipientID: "u-b",
				SenderAmount: mustDecimal(t, "0"), SenderCurrency: "USD", RecipientCurrency: "ZWL",
			},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.crossBorder.Initiate(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// holdServices builds a setup where a large payment to a sanctioned
// destination reaches the risk gate: caps are lifted so the hold is what
// stops it, and the sender holds 6000 USD.
func holdServices(t *testing.T) *testServices {
	t.Helper()
	cfg := testAppConfig()
	cfg.Business.DefaultDailyLimit = "0"
	cfg.Business.DefaultMonthlyLimit = "0"
	cfg.Business.FriendNetworkMonthlyCap = "100000.00"

	ts := newTestServices(t, cfg)
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-kp", "KP", false, false)
	ts.fund(t, "u-a", "USD", "6000.00")
	ts.seedRate(t, "USD", "ZWL", "1320")
	return ts
}

func holdPayment(t *testing.T, ts *testServices, requestID string) *model.CrossBorderPayment {
	t.Helper()
	payment, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         requestID,
		SenderID:          "u-a",
		RecipientID:       "u-kp",
		SenderAmount:      mustDecimal(t, "5500.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	})

	var holdErr *ComplianceHoldError
	if !errors.As(err, &holdErr) {
		t.Fatalf("err = %v, want ComplianceHoldError", err)
	}
	if payment == nil || payment.Status != model.CrossBorderStatusComplianceHold {
		t.Fatalf("payment = %+v, want COMPLIANCE_HOLD", payment)
	}
	return payment
}

func TestCriticalRiskParksPaymentWithoutPosting(t *testing.T) {
	ts := holdServices(t)
	payment := holdPayment(t, ts, "cb-hold-1")

	// Nothing posted while held.
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "6000.00", "sender balance")
	if got := ts.recordCount(t, "u-a"); got != 1 {
		t.Errorf("record count = %d, want 1", got)
	}
	if payment.RiskSnapshot == "" {
		t.Error("held payment must carry the risk snapshot")
	}
}

func TestApproveHoldExecutesPostings(t *testing.T) {
	ts := holdServices(t)
	payment := holdPayment(t, ts, "cb-hold-2")

	approved, err := ts.crossBorder.ApproveHold(context.Background(), payment.PaymentNo)
	if err != nil {
		t.Fatalf("ApproveHold failed: %v", err)
	}
	if approved.Status != model.CrossBorderStatusProcessing {
		t.Errorf("status = %s, want %s", approved.Status, model.CrossBorderStatusProcessing)
	}

	// 5500 + 110 exchange fee + 2 flat fee.
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "388.00", "sender balance")
	assertDecimalEqual(t, ts.balance(t, "u-kp", "ZWL"), "7260000.00", "recipient balance")
}

func TestRejectHoldNeverMovesMoney(t *testing.T) {
	ts := holdServices(t)
	payment := holdPayment(t, ts, "cb-hold-3")

	rejected, err := ts.crossBorder.RejectHold(context.Background(), payment.PaymentNo, "source of funds unclear")
	if err != nil {
		t.Fatalf("RejectHold failed: %v", err)
	}
	if rejected.Status != model.CrossBorderStatusRejected {
		t.Errorf("status = %s, want %s", rejected.Status, model.CrossBorderStatusRejected)
	}
	if rejected.FailureReason == "" {
		t.Error("rejection must record the reason")
	}
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "6000.00", "sender balance")
}

func TestRequestDocumentsThenApprove(t *testing.T) {
	ts := holdServices(t)
	payment := holdPayment(t, ts, "cb-hold-4")

	held, err := ts.crossBorder.RequestDocuments(context.Background(), payment.PaymentNo)
	if err != nil {
		t.Fatalf("RequestDocuments failed: %v", err)
	}
	if held.Status != model.CrossBorderStatusDocumentsRequested {
		t.Errorf("status = %s, want %s", held.Status, model.CrossBorderStatusDocumentsRequested)
	}

	approved, err := ts.crossBorder.ApproveHold(context.Background(), payment.PaymentNo)
	if err != nil {
		t.Fatalf("ApproveHold after documents failed: %v", err)
	}
	if approved.Status != model.CrossBorderStatusProcessing {
		t.Errorf("status = %s, want %s", approved.Status, model.CrossBorderStatusProcessing)
	}
}

func TestApproveRequiresHeldPayment(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "200.00")
	ts.seedRate(t, "USD", "ZWL", "1320")

	payment, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-ok",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	_, err = ts.crossBorder.ApproveHold(context.Background(), payment.PaymentNo)
	if !errors.Is(err, repository.ErrPaymentStatusInvalid) {
		t.Fatalf("err = %v, want ErrPaymentStatusInvalid", err)
	}
}

func TestFriendNetworkMonthlyCap(t *testing.T) {
	cfg := testAppConfig()
	cfg.Business.FriendNetworkMonthlyCap = "300.00"
	ts := newTestServices(t, cfg)
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "1000.00")
	ts.seedRate(t, "USD", "ZWL", "1320")

	if _, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-cap-1",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "250.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	}); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}

	_, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-cap-2",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	})

	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitExceededError", err)
	}
	if limitErr.Scope != "FRIEND_NETWORK_MONTHLY" {
		t.Errorf("scope = %s, want FRIEND_NETWORK_MONTHLY", limitErr.Scope)
	}
}

// TestAccountLimitFailsPaymentTerminally covers the path where the payment
// row exists before the spending-limit check runs: the denial must land the
// payment in FAILED, and a replay of the request must report that failure
// instead of success.
func TestAccountLimitFailsPaymentTerminally(t *testing.T) {
	cfg := testAppConfig()
	cfg.Business.DefaultDailyLimit = "50.00"
	ts := newTestServices(t, cfg)
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "200.00")
	ts.seedRate(t, "USD", "ZWL", "1320")

	req := &InitiateRequest{
		RequestID:         "cb-limit",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	}

	payment, err := ts.crossBorder.Initiate(context.Background(), req)
	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitExceededError", err)
	}
	if limitErr.Scope != "DAILY" {
		t.Errorf("scope = %s, want DAILY", limitErr.Scope)
	}
	if payment == nil || payment.Status != model.CrossBorderStatusFailed {
		t.Fatalf("payment = %+v, want FAILED", payment)
	}
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "200.00", "sender balance")

	replayed, err := ts.crossBorder.Initiate(context.Background(), req)
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("replay err = %v, want ErrPaymentFailed", err)
	}
	if replayed == nil || replayed.Status != model.CrossBorderStatusFailed {
		t.Fatalf("replay payment = %+v, want FAILED", replayed)
	}
	// Still nothing moved.
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "200.00", "sender balance")
}

func TestHoldReplayReportsHoldAgain(t *testing.T) {
	ts := holdServices(t)
	payment := holdPayment(t, ts, "cb-hold-replay")

	replayed, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-hold-replay",
		SenderID:          "u-a",
		RecipientID:       "u-kp",
		SenderAmount:      mustDecimal(t, "5500.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	})

	var holdErr *ComplianceHoldError
	if !errors.As(err, &holdErr) {
		t.Fatalf("replay err = %v, want ComplianceHoldError", err)
	}
	if holdErr.PaymentNo != payment.PaymentNo {
		t.Errorf("hold reports %s, want %s", holdErr.PaymentNo, payment.PaymentNo)
	}
	if replayed.PaymentNo != payment.PaymentNo {
		t.Errorf("replay returned %s, want %s", replayed.PaymentNo, payment.PaymentNo)
	}
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "6000.00", "sender balance")
}

func TestInitiateIdempotentReplay(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "200.00")
	ts.seedRate(t, "USD", "ZWL", "1320")

	req := &InitiateRequest{
		RequestID:         "cb-replay",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	}

	first, err := ts.crossBorder.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := ts.crossBorder.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if second.PaymentNo != first.PaymentNo {
		t.Errorf("replay returned %s, want %s", second.PaymentNo, first.PaymentNo)
	}
	// Debited exactly once.
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "96.00", "sender balance")
}

func TestCompleteAttachesProviderReference(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", true, true)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "200.00")
	ts.seedRate(t, "USD", "ZWL", "1320")

	payment, err := ts.crossBorder.Initiate(context.Background(), &InitiateRequest{
		RequestID:         "cb-done",
		SenderID:          "u-a",
		RecipientID:       "u-b",
		SenderAmount:      mustDecimal(t, "100.00"),
		SenderCurrency:    "USD",
		RecipientCurrency: "ZWL",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	completed, err := ts.crossBorder.Complete(context.Background(), payment.PaymentNo, "PROV-20260829-001")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != model.CrossBorderStatusCompleted {
		t.Errorf("status = %s, want %s", completed.Status, model.CrossBorderStatusCompleted)
	}
	if completed.ProviderReference != "PROV-20260829-001" {
		t.Errorf("provider reference = %s", completed.ProviderReference)
	}
	if completed.CompletedAt == nil {
		t.Error("completed payment must carry completed_at")
	}
}

func TestCompleteUnknownPayment(t *testing.T) {
	ts := newTestServices(t, testAppConfig())

	_, err := ts.crossBorder.Complete(context.Background(), "CBP-nope", "PROV-1")
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound must cover ErrPaymentNotFound")
	}
}
