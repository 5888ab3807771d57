package service

import (
	"context"
	"testing"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/database"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/lock"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/risk"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	idgen.Init(1)
}

// newTestDB opens an isolated in-memory sqlite database with the full
// schema. Capped to one connection so every query sees the same memory db.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

// testAppConfig mirrors the production YAML with deterministic values.
// Tests mutate the returned config before constructing services.
func testAppConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			Currencies:               []string{"USD", "ZWL", "ZAR"},
			DefaultDailyLimit:        "1000.00",
			DefaultMonthlyLimit:      "10000.00",
			BlockOnReview:            false,
			ExchangeFeeRate:          "0.02",
			TransferFee:              "2.00",
			IdentityVerifyThreshold:  "500.00",
			FriendNetworkMonthlyCap:  "3000.00",
			ProcessingTimeoutMinutes: 30,
			ReconcileIntervalMinutes: 60,
		},
		Risk: config.RiskConfig{
			HighAmountThreshold: "5000.00",
			VelocityMaxPerHour:  10,
			NightHours:          []int{0, 1, 2, 3, 4},
			HighRiskCountries:   []string{"NG", "KE", "KP"},
			SanctionedCountries: []string{"KP", "IR"},
			TravelKmThreshold:   500,
			TravelWindowMinutes: 60,
		},
	}
}

type testServices struct {
	db          *gorm.DB
	cfg         *config.Config
	transaction *TransactionService
	crossBorder *CrossBorderService
	ledger      *LedgerService
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	paymentRepo *repository.CrossBorderRepository
}

func newTestServices(t *testing.T, cfg *config.Config) *testServices {
	t.Helper()

	db := newTestDB(t)
	locks := lock.NewKeyMutex()
	engine := risk.NewEngine(RiskConfigFromApp(cfg), NewTransactionHistory(db))
	notifier := NewNotifier(db, "test.events")

	return &testServices{
		db:          db,
		cfg:         cfg,
		transaction: NewTransactionService(db, cfg, locks, engine, notifier),
		crossBorder: NewCrossBorderService(db, cfg, locks, engine, notifier),
		ledger:      NewLedgerService(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		paymentRepo: repository.NewCrossBorderRepository(db),
	}
}

func (ts *testServices) seedUser(t *testing.T, userID, countryCode string, international, verified bool) {
	t.Helper()
	user := &model.User{
		UserID:               userID,
		FullName:             "Test " + userID,
		CountryCode:          countryCode,
		InternationalEnabled: international,
		IdentityVerified:     verified,
		Active:               true,
	}
	if err := ts.db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
}

// fund opens the account if needed and credits it through the ledger, so
// the transaction log and the balance stay consistent for reconciliation.
func (ts *testServices) fund(t *testing.T, userID, currency, amount string) {
	t.Helper()
	ctx := context.Background()

	daily := mustDecimal(t, ts.cfg.Business.DefaultDailyLimit)
	monthly := mustDecimal(t, ts.cfg.Business.DefaultMonthlyLimit)
	if _, err := ts.accountRepo.GetOrCreate(ctx, userID, currency, daily, monthly); err != nil {
		t.Fatalf("failed to open account for %s/%s: %v", userID, currency, err)
	}

	_, err := ts.ledger.Post(ctx, userID, currency, mustDecimal(t, amount), PostingMeta{
		Category:    model.CategoryTopup,
		Description: "test funding",
	})
	if err != nil {
		t.Fatalf("failed to fund %s/%s with %s: %v", userID, currency, amount, err)
	}
}

func (ts *testServices) balance(t *testing.T, userID, currency string) decimal.Decimal {
	t.Helper()
	account, err := ts.accountRepo.Get(context.Background(), userID, currency)
	if err != nil {
		t.Fatalf("failed to read balance for %s/%s: %v", userID, currency, err)
	}
	return account.Balance
}

func (ts *testServices) recordCount(t *testing.T, userID string) int {
	t.Helper()
	var count int64
	err := ts.db.Model(&model.TransactionRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed to count records for %s: %v", userID, err)
	}
	return int(count)
}

func (ts *testServices) seedRate(t *testing.T, base, quote, rate string) {
	t.Helper()
	row := &model.ExchangeRate{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Rate:          mustDecimal(t, rate),
		Active:        true,
		EffectiveAt:   time.Now(),
	}
	if err := ts.db.Create(row).Error; err != nil {
		t.Fatalf("failed to seed rate %s/%s: %v", base, quote, err)
	}
}

func mustDecimal(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", raw, err)
	}
	return value
}

func assertDecimalEqual(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(mustDecimal(t, want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}
