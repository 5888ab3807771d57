package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
)

func TestPostRecordsBalanceSnapshots(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-1", "ZW", false, false)
	ts.fund(t, "u-1", "USD", "100.00")

	record, err := ts.ledger.Post(context.Background(), "u-1", "USD", mustDecimal(t, "-30.00"), PostingMeta{
		Category: model.CategoryPayment,
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	assertDecimalEqual(t, record.BalanceBefore, "100.00", "balance before")
	assertDecimalEqual(t, record.BalanceAfter, "70.00", "balance after")
	assertDecimalEqual(t, ts.balance(t, "u-1", "USD"), "70.00", "stored balance")
	if record.Status != model.TransactionStatusCompleted {
		t.Errorf("status = %s, want %s", record.Status, model.TransactionStatusCompleted)
	}
	if !record.IsDebit() {
		t.Error("negative posting must report as debit")
	}
}

func TestPostRejectsOverdraft(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-1", "ZW", false, false)
	ts.fund(t, "u-1", "USD", "50.00")

	_, err := ts.ledger.Post(context.Background(), "u-1", "USD", mustDecimal(t, "-75.00"), PostingMeta{
		Category: model.CategoryPayment,
	})
	if !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// Nothing moved and nothing was appended.
	assertDecimalEqual(t, ts.balance(t, "u-1", "USD"), "50.00", "balance after failed debit")
	if got := ts.recordCount(t, "u-1"); got != 1 {
		t.Errorf("record count = %d, want 1 (funding only)", got)
	}
}

func TestPostRejectsZeroAmount(t *testing.T) {
	ts := newTestServices(t, testAppConfig())
	ts.seedUser(t, "u-1", "ZW", false, false)
	ts.fund(t, "u-1", "USD", "50.00")

	_, err := ts.ledger.Post(context.Background(), "u-1", "USD", mustDecimal(t, "0"), PostingMeta{
		Category: model.CategoryPayment,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestPostUnknownAccount(t *testing.T) {
	ts := newTestServices(t, testAppConfig())

	_, err := ts.ledger.Post(context.Background(), "nobody", "USD", mustDecimal(t, "10.00"), PostingMeta{
		Category: model.CategoryTopup,
	})
	if !errors.Is(err, repository.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}
