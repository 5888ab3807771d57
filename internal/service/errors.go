package service

import (
	"errors"
	"fmt"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/risk"

	"github.com/shopspring/decimal"
)

// Gate failures are returned synchronously with no partial effect; the
// caller never has to guess whether money moved. The single exception is
// CounterpartyFailureError, which reports a completed compensation: net
// balance change zero, two records on the ledger.

var (
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrUnsupportedCurrency   = errors.New("unsupported currency")
	ErrInternationalDisabled = errors.New("account is not enabled for international payments")
	ErrComplianceRequired    = errors.New("identity verification required for this amount")
	ErrDuplicateRequest      = errors.New("duplicate request")
	ErrRequestIDRequired     = errors.New("request_id is required")
	ErrPaymentFailed         = errors.New("cross-border payment did not complete")
)

// LimitExceededError reports which window was exhausted and by how much.
type LimitExceededError struct {
	Scope     string // DAILY, MONTHLY or FRIEND_NETWORK_MONTHLY
	Limit     decimal.Decimal
	Used      decimal.Decimal
	Requested decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s spending limit exceeded: limit %s, used %s, requested %s",
		e.Scope, e.Limit, e.Used, e.Requested)
}

// DeclinedError carries the assessment that blocked the operation.
type DeclinedError struct {
	Assessment *risk.Assessment
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("operation declined by risk engine: score %d, level %s",
		e.Assessment.Score, e.Assessment.Level)
}

// ComplianceHoldError is a suspended state, not a failure: the payment was
// created, no money moved, and a compliance decision will resume or reject
// it.
type ComplianceHoldError struct {
	PaymentNo  string
	Assessment *risk.Assessment
}

func (e *ComplianceHoldError) Error() string {
	if e.Assessment == nil {
		return fmt.Sprintf("payment %s held for compliance review", e.PaymentNo)
	}
	return fmt.Sprintf("payment %s held for compliance review: risk level %s",
		e.PaymentNo, e.Assessment.Level)
}

// CounterpartyFailureError reports that the second leg of a paired posting
// failed and the primary leg was compensated. Both record numbers are
// reported so the trail is auditable.
type CounterpartyFailureError struct {
	OriginalNo string
	ReversalNo string
	Cause      error
}

func (e *CounterpartyFailureError) Error() string {
	return fmt.Sprintf("counterparty posting failed, original %s reversed by %s: %v",
		e.OriginalNo, e.ReversalNo, e.Cause)
}

func (e *CounterpartyFailureError) Unwrap() error {
	return e.Cause
}
