package service

import (
	"context"
	"log"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/risk"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// transactionHistory adapts the transaction repository to the risk engine's
// read-only HistoryReader.
type transactionHistory struct {
	transactionRepo *repository.TransactionRepository
}

func NewTransactionHistory(db *gorm.DB) risk.HistoryReader {
	return &transactionHistory{transactionRepo: repository.NewTransactionRepository(db)}
}

func (h *transactionHistory) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	count, err := h.transactionRepo.CountSince(ctx, userID, since)
	return int(count), err
}

func (h *transactionHistory) HasCompletedWith(ctx context.Context, userID, counterpartyID string) (bool, error) {
	return h.transactionRepo.HasCompletedWith(ctx, userID, counterpartyID)
}

func (h *transactionHistory) LastKnownPosition(ctx context.Context, userID string) (*risk.Position, error) {
	record, err := h.transactionRepo.LastLocated(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return &risk.Position{
		Lat: *record.GeoLat,
		Lon: *record.GeoLon,
		At:  record.CreatedAt,
	}, nil
}

// RiskConfigFromApp translates the YAML risk section into the engine's
// native config. Bad decimal strings are a deployment error, reported loud
// at boot rather than silently defaulted.
func RiskConfigFromApp(cfg *config.Config) risk.Config {
	rc := risk.DefaultConfig()

	if cfg.Risk.HighAmountThreshold != "" {
		threshold, err := decimal.NewFromString(cfg.Risk.HighAmountThreshold)
		if err != nil {
			log.Fatalf("invalid risk.high_amount_threshold: %v", err)
		}
		rc.HighAmountThreshold = threshold
	}
	if cfg.Risk.VelocityMaxPerHour > 0 {
		rc.VelocityMaxPerHour = cfg.Risk.VelocityMaxPerHour
	}
	if len(cfg.Risk.NightHours) > 0 {
		rc.NightHours = make(map[int]bool, len(cfg.Risk.NightHours))
		for _, h := range cfg.Risk.NightHours {
			rc.NightHours[h] = true
		}
	}
	rc.HighRiskCountries = make(map[string]bool, len(cfg.Risk.HighRiskCountries))
	for _, c := range cfg.Risk.HighRiskCountries {
		rc.HighRiskCountries[c] = true
	}
	rc.SanctionedCountries = make(map[string]bool, len(cfg.Risk.SanctionedCountries))
	for _, c := range cfg.Risk.SanctionedCountries {
		rc.SanctionedCountries[c] = true
	}
	if cfg.Risk.TravelKmThreshold > 0 {
		rc.TravelKmThreshold = cfg.Risk.TravelKmThreshold
	}
	if cfg.Risk.TravelWindowMinutes > 0 {
		rc.TravelWindow = time.Duration(cfg.Risk.TravelWindowMinutes) * time.Minute
	}
	if cfg.Business.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Business.Timezone)
		if err != nil {
			log.Fatalf("invalid business.timezone: %v", err)
		}
		rc.Location = loc
	}

	if cfg.Risk.WeightHighAmount > 0 {
		rc.WeightHighAmount = cfg.Risk.WeightHighAmount
	}
	if cfg.Risk.WeightVelocity > 0 {
		rc.WeightVelocity = cfg.Risk.WeightVelocity
	}
	if cfg.Risk.WeightUnusualHours > 0 {
		rc.WeightUnusualHours = cfg.Risk.WeightUnusualHours
	}
	if cfg.Risk.WeightHighRiskCountry > 0 {
		rc.WeightHighRiskCountry = cfg.Risk.WeightHighRiskCountry
	}
	if cfg.Risk.WeightImpossibleTravel > 0 {
		rc.WeightImpossibleTravel = cfg.Risk.WeightImpossibleTravel
	}
	if cfg.Risk.WeightNewRecipient > 0 {
		rc.WeightNewRecipient = cfg.Risk.WeightNewRecipient
	}
	if cfg.Risk.WeightSanctioned > 0 {
		rc.WeightSanctioned = cfg.Risk.WeightSanctioned
	}
	if cfg.Risk.WeightCrossBorder > 0 {
		rc.WeightCrossBorder = cfg.Risk.WeightCrossBorder
	}

	return rc
}
