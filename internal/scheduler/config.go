package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls scheduler cadence and batch sizes.
type Config struct {
	RunInterval         time.Duration
	MaxBillingBatchSize int
	BillingTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Hour,
		MaxBillingBatchSize: 50,
		BillingTimeout:      5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.MaxBillingBatchSize <= 0 {
		c.MaxBillingBatchSize = defaults.MaxBillingBatchSize
	}
	if c.BillingTimeout <= 0 {
		c.BillingTimeout = defaults.BillingTimeout
	}
	return c
}

// ProvideConfig reads scheduler tuning from the environment, falling back to
// defaults for anything unset or unparseable.
func ProvideConfig() Config {
	return Config{
		RunInterval:         getenvDuration("SCHEDULER_RUN_INTERVAL"),
		MaxBillingBatchSize: getenvInt("SCHEDULER_MAX_BILLING_BATCH_SIZE"),
		BillingTimeout:      getenvDuration("SCHEDULER_BILLING_TIMEOUT"),
	}.withDefaults()
}

func getenvDuration(key string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}

func getenvInt(key string) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
