package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/omniboxhq/omnibox/internal/rating/engine"
)

// BillingDefaults are the fallback billing knobs used when a billing_settings
// row is absent. Decimal values are kept as strings so no precision is lost
// between the config file and the engine.
type BillingDefaults struct {
	TrialPeriodDays       int               `mapstructure:"trialPeriodDays"`
	GracePeriodDays       int               `mapstructure:"gracePeriodDays"`
	AnnualDiscountPercent string            `mapstructure:"annualDiscountPercent"`
	AutoSuspendOnFailure  bool              `mapstructure:"autoSuspendOnFailure"`
	DefaultRates          map[string]string `mapstructure:"defaultRates"`
}

func DefaultBillingDefaults() BillingDefaults {
	return BillingDefaults{
		TrialPeriodDays:       14,
		GracePeriodDays:       7,
		AnnualDiscountPercent: "10",
		AutoSuspendOnFailure:  true,
		DefaultRates:          map[string]string{},
	}
}

// Engine converts the defaults into the typed settings the rating engine
// consumes. Validation happens at load time, so conversion cannot fail here.
func (d BillingDefaults) Engine() engine.BillingSettings {
	settings := engine.BillingSettings{
		TrialPeriodDays:       d.TrialPeriodDays,
		GracePeriodDays:       d.GracePeriodDays,
		AnnualDiscountPercent: decimal.RequireFromString(d.AnnualDiscountPercent),
		AutoSuspendOnFailure:  d.AutoSuspendOnFailure,
		DefaultRates:          map[engine.ServiceType]decimal.Decimal{},
	}
	for service, rate := range d.DefaultRates {
		settings.DefaultRates[engine.ServiceType(service)] = decimal.RequireFromString(rate)
	}
	return settings
}

// BillingDefaultsHolder holds the current defaults and hot-reloads them when
// the config file changes.
type BillingDefaultsHolder struct {
	current atomic.Value // holds BillingDefaults
}

func NewBillingDefaultsHolder() (*BillingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/omnibox/config") // Volume-mounted config
	v.AddConfigPath("/etc/omnibox")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("OMNIBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingDefaults()
		v.SetDefault("billing.trialPeriodDays", defaults.TrialPeriodDays)
		v.SetDefault("billing.gracePeriodDays", defaults.GracePeriodDays)
		v.SetDefault("billing.annualDiscountPercent", defaults.AnnualDiscountPercent)
		v.SetDefault("billing.autoSuspendOnFailure", defaults.AutoSuspendOnFailure)
		v.SetDefault("billing.defaultRates", defaults.DefaultRates)
	}

	var cfg BillingDefaults
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingDefaults
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingDefaults(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingDefaultsHolder returns a holder pinned to the given
// defaults, with no config file watching. Tests and one-shot tools use it.
func NewStaticBillingDefaultsHolder(cfg BillingDefaults) *BillingDefaultsHolder {
	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingDefaultsHolder) Get() BillingDefaults {
	return h.current.Load().(BillingDefaults)
}

func validateBillingDefaults(cfg BillingDefaults) error {
	if cfg.TrialPeriodDays < 0 || cfg.GracePeriodDays < 0 {
		return errors.New("billing: period days cannot be negative")
	}
	discount, err := decimal.NewFromString(cfg.AnnualDiscountPercent)
	if err != nil {
		return errors.New("billing.annualDiscountPercent must be a decimal")
	}
	if discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("billing.annualDiscountPercent must be within [0, 100]")
	}
	for service, rate := range cfg.DefaultRates {
		if _, err := decimal.NewFromString(rate); err != nil {
			return errors.New("billing.defaultRates." + service + " must be a decimal")
		}
	}
	return nil
}
