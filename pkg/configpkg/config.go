// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBSource       string `mapstructure:"DB_SOURCE"`
	MetricsAddress string `mapstructure:"METRICS_ADDRESS"`
	Environment    string `mapstructure:"GO_ENV"`

	RateProviderName    string        `mapstructure:"RATE_PROVIDER_NAME"`
	RateProviderURL     string        `mapstructure:"RATE_PROVIDER_URL"`
	RateProviderKey     string        `mapstructure:"RATE_PROVIDER_KEY"`
	RateProviderTimeout time.Duration `mapstructure:"RATE_PROVIDER_TIMEOUT"`
	BaseCurrency        string        `mapstructure:"BASE_CURRENCY"`

	SnapshotStaleAfter time.Duration `mapstructure:"SNAPSHOT_STALE_AFTER"`
	SnapshotCacheTTL   time.Duration `mapstructure:"SNAPSHOT_CACHE_TTL"`
	VolatilityMaxPct   float64       `mapstructure:"VOLATILITY_MAX_PCT"`
	IngestInterval     time.Duration `mapstructure:"INGEST_INTERVAL"`

	QuoteTTL         time.Duration `mapstructure:"QUOTE_TTL"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	WeekendPolicy    string        `mapstructure:"WEEKEND_POLICY"`
	WeekendBufferPct float64       `mapstructure:"WEEKEND_BUFFER_PCT"`

	// DailyTransferLimit caps per-account debits over a rolling day.
	// Empty disables the cap. Kept as a decimal string, never a float.
	DailyTransferLimit string `mapstructure:"DAILY_TRANSFER_LIMIT"`
}

// Load reads configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
