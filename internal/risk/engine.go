package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config is the engine's rule book. Every detector has a fixed weight; the
// score is purely additive, so adding a triggered flag can never lower it.
type Config struct {
	HighAmountThreshold decimal.Decimal
	VelocityMaxPerHour  int
	NightHours          map[int]bool
	HighRiskCountries   map[string]bool
	SanctionedCountries map[string]bool
	TravelKmThreshold   float64
	TravelWindow        time.Duration
	Location            *time.Location

	WeightHighAmount       int
	WeightVelocity         int
	WeightUnusualHours     int
	WeightHighRiskCountry  int
	WeightImpossibleTravel int
	WeightNewRecipient     int
	WeightSanctioned       int
	WeightCrossBorder      int
}

// DefaultConfig returns the production defaults. Deployments override them
// through the risk section of the YAML config.
func DefaultConfig() Config {
	return Config{
		HighAmountThreshold: decimal.NewFromInt(5000),
		VelocityMaxPerHour:  10,
		NightHours:          map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true},
		HighRiskCountries:   map[string]bool{},
		SanctionedCountries: map[string]bool{},
		TravelKmThreshold:   500,
		TravelWindow:        time.Hour,
		Location:            time.UTC,

		WeightHighAmount:       20,
		WeightVelocity:         25,
		WeightUnusualHours:     10,
		WeightHighRiskCountry:  15,
		WeightImpossibleTravel: 30,
		WeightNewRecipient:     10,
		WeightSanctioned:       30,
		WeightCrossBorder:      5,
	}
}

// Engine is the deterministic weighted-flag scorer. It reads history but
// never writes anything; the same context and history always produce the
// same assessment.
type Engine struct {
	cfg     Config
	history HistoryReader
}

func NewEngine(cfg Config, history HistoryReader) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{cfg: cfg, history: history}
}

// Assess runs every detector against the operation context and folds the
// triggered flags into a score, level and recommendation.
func (e *Engine) Assess(ctx context.Context, op Context) (*Assessment, error) {
	var flags []Flag

	if f := e.checkAmount(op); f != nil {
		flags = append(flags, *f)
	}

	f, err := e.checkVelocity(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("velocity check: %w", err)
	}
	if f != nil {
		flags = append(flags, *f)
	}

	if f := e.checkUnusualHours(op); f != nil {
		flags = append(flags, *f)
	}

	f, err = e.checkGeography(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("geography check: %w", err)
	}
	if f != nil {
		flags = append(flags, *f)
	}

	f, err = e.checkNewRecipient(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("recipient check: %w", err)
	}
	if f != nil {
		flags = append(flags, *f)
	}

	if f := e.checkSanctioned(op); f != nil {
		flags = append(flags, *f)
	}

	if f := e.checkCrossBorder(op); f != nil {
		flags = append(flags, *f)
	}

	total := 0
	for _, fl := range flags {
		total += fl.Weight
	}
	score := total
	if score > 100 {
		score = 100
	}

	level := levelFor(score)

	return &Assessment{
		ID:             uuid.NewString(),
		Score:          score,
		Level:          level,
		Flags:          flags,
		Recommendation: recommendationFor(level),
		Confidence:     confidenceFor(len(flags), total),
		AssessedAt:     op.OccurredAt,
	}, nil
}

func levelFor(score int) Level {
	switch {
	case score < 20:
		return LevelLow
	case score < 40:
		return LevelMedium
	case score < 70:
		return LevelHigh
	default:
		return LevelCritical
	}
}

func recommendationFor(level Level) Recommendation {
	switch level {
	case LevelLow:
		return RecommendApprove
	case LevelMedium:
		return RecommendReview
	default:
		return RecommendDecline
	}
}

// confidenceFor: 0.95 with a clean run, otherwise grows with total weight
// but is never asserted as certain.
func confidenceFor(flagCount, totalWeight int) float64 {
	if flagCount == 0 {
		return 0.95
	}
	c := 0.5 + float64(totalWeight)/200
	if c > 1 {
		c = 1
	}
	return c
}

// ============================================================================
// Detectors. Each returns at most one flag.
// ============================================================================

func (e *Engine) checkAmount(op Context) *Flag {
	if op.Amount.GreaterThan(e.cfg.HighAmountThreshold) {
		return &Flag{
			Kind:        FlagHighAmount,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("amount %s exceeds high-amount threshold %s", op.Amount, e.cfg.HighAmountThreshold),
			Weight:      e.cfg.WeightHighAmount,
		}
	}
	return nil
}

func (e *Engine) checkVelocity(ctx context.Context, op Context) (*Flag, error) {
	count, err := e.history.CountSince(ctx, op.UserID, op.OccurredAt.Add(-time.Hour))
	if err != nil {
		return nil, err
	}
	if count > e.cfg.VelocityMaxPerHour {
		return &Flag{
			Kind:        FlagVelocity,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("%d transactions in the trailing hour (max %d)", count, e.cfg.VelocityMaxPerHour),
			Weight:      e.cfg.WeightVelocity,
		}, nil
	}
	return nil, nil
}

func (e *Engine) checkUnusualHours(op Context) *Flag {
	hour := op.OccurredAt.In(e.cfg.Location).Hour()
	if e.cfg.NightHours[hour] {
		return &Flag{
			Kind:        FlagUnusualHours,
			Severity:    SeverityLow,
			Description: fmt.Sprintf("transaction at %02d:00 local time", hour),
			Weight:      e.cfg.WeightUnusualHours,
		}
	}
	return nil
}

// checkGeography returns either an impossible-travel flag or a high-risk
// country flag, preferring the former since it carries the higher weight.
func (e *Engine) checkGeography(ctx context.Context, op Context) (*Flag, error) {
	if op.SenderLat != nil && op.SenderLon != nil {
		last, err := e.history.LastKnownPosition(ctx, op.UserID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			elapsed := op.OccurredAt.Sub(last.At)
			if elapsed >= 0 && elapsed <= e.cfg.TravelWindow {
				km := haversineKm(last.Lat, last.Lon, *op.SenderLat, *op.SenderLon)
				if km > e.cfg.TravelKmThreshold {
					return &Flag{
						Kind:        FlagImpossibleTravel,
						Severity:    SeverityHigh,
						Description: fmt.Sprintf("%.0f km moved in %s since previous transaction", km, elapsed.Round(time.Minute)),
						Weight:      e.cfg.WeightImpossibleTravel,
					}, nil
				}
			}
		}
	}

	if op.RecipientCountry != "" && e.cfg.HighRiskCountries[op.RecipientCountry] {
		return &Flag{
			Kind:        FlagHighRiskCountry,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("recipient country %s is on the high-risk list", op.RecipientCountry),
			Weight:      e.cfg.WeightHighRiskCountry,
		}, nil
	}

	return nil, nil
}

func (e *Engine) checkNewRecipient(ctx context.Context, op Context) (*Flag, error) {
	if op.RecipientID == "" {
		return nil, nil
	}
	known, err := e.history.HasCompletedWith(ctx, op.UserID, op.RecipientID)
	if err != nil {
		return nil, err
	}
	if !known {
		return &Flag{
			Kind:        FlagNewRecipient,
			Severity:    SeverityLow,
			Description: "no prior completed transaction with this recipient",
			Weight:      e.cfg.WeightNewRecipient,
		}, nil
	}
	return nil, nil
}

// checkSanctioned is independent of and additive to the geography flag: a
// sanctioned jurisdiction always contributes its weight even when the same
// country is also on the high-risk list.
func (e *Engine) checkSanctioned(op Context) *Flag {
	if op.RecipientCountry != "" && e.cfg.SanctionedCountries[op.RecipientCountry] {
		return &Flag{
			Kind:        FlagSanctioned,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("recipient country %s is sanctioned", op.RecipientCountry),
			Weight:      e.cfg.WeightSanctioned,
		}
	}
	return nil
}

// checkCrossBorder adds a small constant weight to any cross-border
// corridor, so a borderline payment leaving the country needs less
// additional signal to reach review.
func (e *Engine) checkCrossBorder(op Context) *Flag {
	if !op.CrossBorder {
		return nil
	}
	return &Flag{
		Kind:        FlagCrossBorder,
		Severity:    SeverityLow,
		Description: "payment crosses a currency border",
		Weight:      e.cfg.WeightCrossBorder,
	}
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
