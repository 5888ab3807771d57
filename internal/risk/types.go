package risk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Level buckets a numeric score for policy decisions.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Recommendation is the engine's verdict. APPROVE and DECLINE are hard
// signals; REVIEW means the operation may proceed but the assessment rides
// on the resulting record for manual handling.
type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReview  Recommendation = "REVIEW"
	RecommendDecline Recommendation = "DECLINE"
)

// Severity of a single triggered flag, for display and triage only; the
// numeric weight is what contributes to the score.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Flag kinds, one per detector.
const (
	FlagHighAmount       = "HIGH_AMOUNT"
	FlagVelocity         = "VELOCITY"
	FlagUnusualHours     = "UNUSUAL_HOURS"
	FlagHighRiskCountry  = "HIGH_RISK_COUNTRY"
	FlagImpossibleTravel = "IMPOSSIBLE_TRAVEL"
	FlagNewRecipient     = "NEW_RECIPIENT"
	FlagSanctioned       = "SANCTIONED_JURISDICTION"
	FlagCrossBorder      = "CROSS_BORDER_CORRIDOR"
)

// Flag is one triggered rule.
type Flag struct {
	Kind        string   `json:"kind"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Weight      int      `json:"weight"`
}

// Assessment is the result of scoring one operation. Score is the sum of
// triggered flag weights capped at 100; level and recommendation are
// deterministic functions of the score. Confidence is observability only
// and must never gate anything.
type Assessment struct {
	ID             string         `json:"id"`
	Score          int            `json:"score"`
	Level          Level          `json:"level"`
	Flags          []Flag         `json:"flags"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	AssessedAt     time.Time      `json:"assessed_at"`
}

// Blocking reports whether the recommendation forbids the posting.
func (a *Assessment) Blocking() bool {
	return a.Recommendation == RecommendDecline
}

// Context carries everything a single scoring run needs besides history.
type Context struct {
	UserID           string
	RecipientID      string
	Amount           decimal.Decimal
	Currency         string
	Category         string
	OccurredAt       time.Time
	RecipientCountry string
	CrossBorder      bool

	// Device location when the operation was submitted, if the client
	// reported one. Feeds the impossible-travel detector.
	SenderLat *float64
	SenderLon *float64
}

// Position is a located point in a user's transaction history.
type Position struct {
	Lat float64
	Lon float64
	At  time.Time
}

// HistoryReader is the engine's only view of stored state. Tests inject a
// synthetic implementation; production wires an adapter over the
// transaction repository.
type HistoryReader interface {
	// CountSince returns how many transactions the user created at or
	// after the given instant.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	// HasCompletedWith reports whether a completed transaction already
	// links the user with the counterparty, in either direction.
	HasCompletedWith(ctx context.Context, userID, counterpartyID string) (bool, error)
	// LastKnownPosition returns the newest located transaction for the
	// user, or nil if none carries a location.
	LastKnownPosition(ctx context.Context, userID string) (*Position, error)
}
