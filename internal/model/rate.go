package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is one directed conversion rate. Only the newest active row
// per (base, quote) pair is served; settlement locks the rate it resolved
// onto the payment, so later rate changes never affect in-flight payments.
type ExchangeRate struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BaseCurrency  string          `gorm:"type:varchar(3);index:idx_pair;not null" json:"base_currency"`
	QuoteCurrency string          `gorm:"type:varchar(3);index:idx_pair;not null" json:"quote_currency"`
	Rate          decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"rate"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	EffectiveAt   time.Time       `gorm:"not null" json:"effective_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (ExchangeRate) TableName() string {
	return "exchange_rate"
}
