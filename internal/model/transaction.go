package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Transaction categories and statuses
// ============================================================================

const (
	CategoryTopup          = "TOPUP"
	CategoryPayment        = "PAYMENT"
	CategoryBillPayment    = "BILL_PAYMENT"
	CategoryTransferOut    = "TRANSFER_OUT"
	CategoryTransferIn     = "TRANSFER_IN"
	CategoryCrossBorderOut = "CROSS_BORDER_OUT"
	CategoryCrossBorderIn  = "CROSS_BORDER_IN"
	CategoryReversal       = "REVERSAL"
)

const (
	TransactionStatusCompleted      = "COMPLETED"
	TransactionStatusFailed         = "FAILED"
	TransactionStatusComplianceHold = "COMPLIANCE_HOLD"
)

// creditCategories are the categories that add funds when a user's history
// is replayed. Everything else subtracts. REVERSAL is here because a
// reversal re-credits the sender of a failed paired posting.
var creditCategories = map[string]bool{
	CategoryTopup:         true,
	CategoryTransferIn:    true,
	CategoryCrossBorderIn: true,
	CategoryReversal:      true,
}

// IsCreditCategory reports whether the category adds funds to the owner.
func IsCreditCategory(category string) bool {
	return creditCategories[category]
}

// ============================================================================
// Transaction record entity
// ============================================================================

// TransactionRecord is one immutable monetary fact and the unit the
// reconciliation auditor replays.
//
// Rules for this table:
//  1. Append only. Never updated, never deleted once COMPLETED; corrections
//     are new offsetting rows (category REVERSAL).
//  2. Every row records the balance before and after the posting, so a
//     replay of the history can be checked against the stored balance.
//  3. The two legs of a transfer are linked: the debit leg carries the
//     counterparty, the credit leg carries linked_transaction_no pointing
//     back at the debit.
type TransactionRecord struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID              string          `gorm:"type:varchar(64);index:idx_user_created;not null" json:"user_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"` // signed: credit > 0, debit < 0
	Currency            string          `gorm:"type:varchar(3);not null" json:"currency"`
	Category            string          `gorm:"type:varchar(32);not null" json:"category"`
	Status              string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Description         string          `gorm:"type:varchar(256)" json:"description"`
	CounterpartyID      string          `gorm:"type:varchar(64);index" json:"counterparty_id,omitempty"`
	LinkedTransactionNo string          `gorm:"type:varchar(64);index" json:"linked_transaction_no,omitempty"`
	RiskSnapshot        string          `gorm:"type:text" json:"risk_snapshot,omitempty"` // JSON RiskAssessment, set when the risk gate flagged the operation
	BalanceBefore       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance_before"`
	BalanceAfter        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance_after"`
	GeoLat              *float64        `json:"geo_lat,omitempty"` // device location when the operation was submitted, if known
	GeoLon              *float64        `json:"geo_lon,omitempty"`
	RequestID           string          `gorm:"type:varchar(64);index" json:"request_id,omitempty"` // client idempotency key
	CreatedAt           time.Time       `gorm:"autoCreateTime;index:idx_user_created" json:"created_at"`
}

func (TransactionRecord) TableName() string {
	return "transaction_record"
}

// IsDebit reports whether the record took funds out of the owner's account.
func (t *TransactionRecord) IsDebit() bool {
	return t.Amount.IsNegative()
}
