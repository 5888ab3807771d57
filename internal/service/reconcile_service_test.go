package service

import (
	"context"
	"testing"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
)

func TestValidateBalanceAfterMixedActivity(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", false, false)
	ts.seedUser(t, "u-b", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "500.00")

	ctx := context.Background()

	if _, err := ts.transaction.ProcessOperation(ctx, &Operation{
		UserID:   "u-a",
		Amount:   mustDecimal(t, "120.00"),
		Currency: "USD",
		Type:     OperationDebit,
		Category: model.CategoryBillPayment,
	}); err != nil {
		t.Fatalf("bill payment failed: %v", err)
	}

	if _, err := ts.transaction.ProcessOperation(ctx, &Operation{
		UserID:      "u-a",
		RecipientID: "u-b",
		Amount:      mustDecimal(t, "80.00"),
		Currency:    "USD",
		Type:        OperationDebit,
		Category:    model.CategoryTransferOut,
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	reconcile := NewReconcileService(ts.db)

	senderResult, err := reconcile.ValidateBalance(ctx, "u-a", "USD")
	if err != nil {
		t.Fatalf("ValidateBalance failed: %v", err)
	}
	if !senderResult.IsValid {
		t.Errorf("sender replay invalid: stored %s, calculated %s",
			senderResult.StoredBalance, senderResult.CalculatedBalance)
	}
	assertDecimalEqual(t, senderResult.CalculatedBalance, "300.00", "sender calculated balance")
	if senderResult.RecordCount != 3 {
		t.Errorf("sender record count = %d, want 3", senderResult.RecordCount)
	}

	recipientResult, err := reconcile.ValidateBalance(ctx, "u-b", "USD")
	if err != nil {
		t.Fatalf("ValidateBalance failed: %v", err)
	}
	if !recipientResult.IsValid {
		t.Errorf("recipient replay invalid: stored %s, calculated %s",
			recipientResult.StoredBalance, recipientResult.CalculatedBalance)
	}
	assertDecimalEqual(t, recipientResult.CalculatedBalance, "80.00", "recipient calculated balance")
}

func TestValidateBalanceAfterCompensation(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "500.00")

	// Failed transfer leg: debit then reversal, both on the ledger.
	_, err := ts.transaction.ProcessOperation(context.Background(), &Operation{
		UserID:      "u-a",
		RecipientID: "ghost",
		Amount:      mustDecimal(t, "200.00"),
		Currency:    "USD",
		Type:        OperationDebit,
		Category:    model.CategoryTransferOut,
	})
	if err == nil {
		t.Fatal("transfer to missing recipient should fail")
	}

	result, err := NewReconcileService(ts.db).ValidateBalance(context.Background(), "u-a", "USD")
	if err != nil {
		t.Fatalf("ValidateBalance failed: %v", err)
	}
	if !result.IsValid {
		t.Errorf("replay invalid after compensation: stored %s, calculated %s",
			result.StoredBalance, result.CalculatedBalance)
	}
	assertDecimalEqual(t, result.CalculatedBalance, "500.00", "calculated balance")
	if result.RecordCount != 3 {
		t.Errorf("record count = %d, want 3", result.RecordCount)
	}
}

func TestValidateBalanceDetectsDrift(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "500.00")

	// Corrupt the stored balance behind the ledger's back.
	err := ts.db.Model(&model.Account{}).
		Where("user_id = ? AND currency = ?", "u-a", "USD").
		Update("balance", "505.00").Error
	if err != nil {
		t.Fatalf("failed to corrupt balance: %v", err)
	}

	result, err := NewReconcileService(ts.db).ValidateBalance(context.Background(), "u-a", "USD")
	if err != nil {
		t.Fatalf("ValidateBalance failed: %v", err)
	}
	if result.IsValid {
		t.Error("drifted balance reported as valid")
	}
	assertDecimalEqual(t, result.Discrepancy, "5.00", "discrepancy")

	// Report only: the stored balance must not have been touched.
	assertDecimalEqual(t, ts.balance(t, "u-a", "USD"), "505.00", "stored balance untouched")
}

func TestValidateUserCoversEveryCurrency(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-a", "ZW", false, false)
	ts.fund(t, "u-a", "USD", "100.00")
	ts.fund(t, "u-a", "ZWL", "50000.00")

	results, err := NewReconcileService(ts.db).ValidateUser(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("ValidateUser failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, result := range results {
		if !result.IsValid {
			t.Errorf("%s replay invalid", result.Currency)
		}
	}
}
