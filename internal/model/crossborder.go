package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CrossBorderStatusPending            = "PENDING"
	CrossBorderStatusProcessing         = "PROCESSING"
	CrossBorderStatusComplianceHold     = "COMPLIANCE_HOLD"
	CrossBorderStatusDocumentsRequested = "DOCUMENTS_REQUESTED"
	CrossBorderStatusCompleted          = "COMPLETED"
	CrossBorderStatusFailed             = "FAILED"
	CrossBorderStatusRejected           = "REJECTED"
	CrossBorderStatusTimeout            = "TIMEOUT"
)

// ValidCrossBorderTransitions encodes the payment lifecycle. A payment in
// COMPLIANCE_HOLD has moved no money yet; PROCESSING means both ledger legs
// committed and we are waiting on the provider reference. TIMEOUT is
// terminal-but-inspectable: a stale PROCESSING payment parked there can
// still be completed once the provider reference arrives.
var ValidCrossBorderTransitions = map[string][]string{
	CrossBorderStatusPending:            {CrossBorderStatusProcessing, CrossBorderStatusComplianceHold, CrossBorderStatusFailed},
	CrossBorderStatusComplianceHold:     {CrossBorderStatusProcessing, CrossBorderStatusDocumentsRequested, CrossBorderStatusRejected, CrossBorderStatusFailed},
	CrossBorderStatusDocumentsRequested: {CrossBorderStatusProcessing, CrossBorderStatusRejected, CrossBorderStatusFailed},
	CrossBorderStatusProcessing:         {CrossBorderStatusCompleted, CrossBorderStatusFailed, CrossBorderStatusTimeout},
	CrossBorderStatusTimeout:            {CrossBorderStatusCompleted, CrossBorderStatusFailed},
}

// CanTransitionCrossBorder reports whether the status change is allowed.
func CanTransitionCrossBorder(currentStatus, targetStatus string) bool {
	allowed, exists := ValidCrossBorderTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// CrossBorderPayment is the aggregate for a currency-converting two-sided
// posting. The exchange rate is locked at creation; recipient_amount is
// sender_amount * rate at that moment, and both fees are computed from the
// sender amount only.
type CrossBorderPayment struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo           string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	RequestID           string          `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`
	SenderID            string          `gorm:"type:varchar(64);index;not null" json:"sender_id"`
	RecipientID         string          `gorm:"type:varchar(64);index;not null" json:"recipient_id"`
	SenderAmount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"sender_amount"`
	SenderCurrency      string          `gorm:"type:varchar(3);not null" json:"sender_currency"`
	RecipientAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"recipient_amount"`
	RecipientCurrency   string          `gorm:"type:varchar(3);not null" json:"recipient_currency"`
	ExchangeRate        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchange_rate"`
	ExchangeFee         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"exchange_fee"`
	TransferFee         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"transfer_fee"`
	Purpose             string          `gorm:"type:varchar(128)" json:"purpose"`
	Status              string          `gorm:"type:varchar(24);index;not null" json:"status"`
	DebitTransactionNo  string          `gorm:"type:varchar(64)" json:"debit_transaction_no,omitempty"`
	CreditTransactionNo string          `gorm:"type:varchar(64)" json:"credit_transaction_no,omitempty"`
	ProviderReference   string          `gorm:"type:varchar(128)" json:"provider_reference,omitempty"`
	RiskSnapshot        string          `gorm:"type:text" json:"risk_snapshot,omitempty"`
	FailureReason       string          `gorm:"type:varchar(256)" json:"failure_reason,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedAt           time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CrossBorderPayment) TableName() string {
	return "cross_border_payment"
}

// TotalFees is the full fee load charged to the sender on top of the
// transfer amount.
func (p *CrossBorderPayment) TotalFees() decimal.Decimal {
	return p.ExchangeFee.Add(p.TransferFee)
}

// TotalDebit is the amount taken from the sender: principal plus fees, all
// in the sender currency.
func (p *CrossBorderPayment) TotalDebit() decimal.Decimal {
	return p.SenderAmount.Add(p.TotalFees())
}
