package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User holds the profile attributes the financial core needs to gate
// operations. Credential issuance and KYC document handling live outside
// this service; we only consume their outcomes.
type User struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	FullName             string    `gorm:"type:varchar(128);not null" json:"full_name"`
	Phone                string    `gorm:"type:varchar(32);index" json:"phone"`
	CountryCode          string    `gorm:"type:varchar(2);not null;default:ZW" json:"country_code"`
	InternationalEnabled bool      `gorm:"not null;default:false" json:"international_enabled"` // may initiate cross-border payments
	IdentityVerified     bool      `gorm:"not null;default:false" json:"identity_verified"`     // KYC outcome, set externally
	Active               bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// Account is one currency balance for one user. A user holds one row per
// currency. Balance is mutated exclusively by the ledger engine, inside a
// transaction that also appends the matching TransactionRecord.
//
// The version column is an optimistic lock: the conditional UPDATE in the
// account repository requires the version it read, so two concurrent
// postings against the same row cannot both apply.
type Account struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string          `gorm:"type:varchar(64);uniqueIndex:uk_user_currency;not null" json:"user_id"`
	Currency     string          `gorm:"type:varchar(3);uniqueIndex:uk_user_currency;not null" json:"currency"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	DailyLimit   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"daily_limit"`   // max debit volume per calendar day
	MonthlyLimit decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"monthly_limit"` // max debit volume per calendar month
	Version      int             `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
