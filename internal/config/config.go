package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded once at boot.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Risk     RiskConfig     `mapstructure:"risk"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	NotificationEvents string `mapstructure:"notification_events"`
	CrossBorderEvents  string `mapstructure:"cross_border_events"`
}

// BusinessConfig carries everything the orchestrator and the settlement
// extension need that is policy rather than code.
type BusinessConfig struct {
	Currencies          []string `mapstructure:"currencies"`            // currencies an account may hold
	DefaultDailyLimit   string   `mapstructure:"default_daily_limit"`   // decimal string, applied at lazy account creation
	DefaultMonthlyLimit string   `mapstructure:"default_monthly_limit"` // decimal string
	Timezone            string   `mapstructure:"timezone"`              // local zone for day/month limit windows and night hours
	BlockOnReview       bool     `mapstructure:"block_on_review"`       // treat a REVIEW recommendation as blocking

	ExchangeFeeRate          string `mapstructure:"exchange_fee_rate"`          // decimal string, fraction of sender amount
	TransferFee              string `mapstructure:"transfer_fee"`               // decimal string, flat fee in sender currency
	IdentityVerifyThreshold  string `mapstructure:"identity_verify_threshold"`  // sender amount above which verified identity is required
	FriendNetworkMonthlyCap  string `mapstructure:"friend_network_monthly_cap"` // cumulative sender->recipient cross-border cap per month
	ProcessingTimeoutMinutes int    `mapstructure:"processing_timeout_minutes"` // stale PROCESSING payments are parked as TIMEOUT after this
	ReconcileIntervalMinutes int    `mapstructure:"reconcile_interval_minutes"` // periodic balance replay audit
}

// RiskConfig is the deterministic scorer's rule book: thresholds and the
// fixed weight each triggered flag contributes.
type RiskConfig struct {
	HighAmountThreshold string   `mapstructure:"high_amount_threshold"` // decimal string
	VelocityMaxPerHour  int      `mapstructure:"velocity_max_per_hour"`
	NightHours          []int    `mapstructure:"night_hours"` // local hours considered unusual, e.g. [0,1,2,3,4]
	HighRiskCountries   []string `mapstructure:"high_risk_countries"`
	SanctionedCountries []string `mapstructure:"sanctioned_countries"`
	TravelKmThreshold   float64  `mapstructure:"travel_km_threshold"`   // great-circle distance considered implausible...
	TravelWindowMinutes int      `mapstructure:"travel_window_minutes"` // ...within this window since the previous transaction

	WeightHighAmount       int `mapstructure:"weight_high_amount"`
	WeightVelocity         int `mapstructure:"weight_velocity"`
	WeightUnusualHours     int `mapstructure:"weight_unusual_hours"`
	WeightHighRiskCountry  int `mapstructure:"weight_high_risk_country"`
	WeightImpossibleTravel int `mapstructure:"weight_impossible_travel"`
	WeightNewRecipient     int `mapstructure:"weight_new_recipient"`
	WeightSanctioned       int `mapstructure:"weight_sanctioned"`
	WeightCrossBorder      int `mapstructure:"weight_cross_border"`
}

var GlobalConfig *Config

// LoadConfig reads and parses the YAML config file. Fatal on error: the
// service cannot run half-configured.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	GlobalConfig = config
	return config
}
