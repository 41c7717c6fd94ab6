package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FreeQuotaProfile describes a time-windowed free pool.
type FreeQuotaProfile struct {
	DailyLimit         int `mapstructure:"dailyLimit"`
	ResetIntervalHours int `mapstructure:"resetIntervalHours"`
}

// LimitsConfig carries the tunable entitlement policy knobs. Plan rows in
// the catalog take precedence; these values are the fallback when the
// catalog has no matching profile, and the policy inputs for the
// eligibility guard.
type LimitsConfig struct {
	Anonymous FreeQuotaProfile `mapstructure:"anonymous"`
	// LowTrust applies to anonymous callers without a browser fingerprint.
	LowTrust FreeQuotaProfile `mapstructure:"lowTrust"`

	DowngradeMinMonths   int `mapstructure:"downgradeMinMonths"`
	DowngradeMinPayments int `mapstructure:"downgradeMinPayments"`
}

func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		Anonymous:            FreeQuotaProfile{DailyLimit: 5, ResetIntervalHours: 24},
		LowTrust:             FreeQuotaProfile{DailyLimit: 3, ResetIntervalHours: 24},
		DowngradeMinMonths:   4,
		DowngradeMinPayments: 2,
	}
}

type LimitsConfigHolder struct {
	current atomic.Value // holds LimitsConfig
}

func NewLimitsConfigHolder() (*LimitsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/creditd/config")
	v.AddConfigPath("/etc/creditd")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDITD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLimitsConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("limits.anonymous", defaults.Anonymous)
		v.SetDefault("limits.lowTrust", defaults.LowTrust)
		v.SetDefault("limits.downgradeMinMonths", defaults.DowngradeMinMonths)
		v.SetDefault("limits.downgradeMinPayments", defaults.DowngradeMinPayments)
	}

	var cfg LimitsConfig
	if err := v.UnmarshalKey("limits", &cfg); err != nil {
		return nil, err
	}
	applyLimitsDefaults(&cfg, defaults)
	if err := validateLimitsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LimitsConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LimitsConfig
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		applyLimitsDefaults(&updated, defaults)
		if err := validateLimitsConfig(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *LimitsConfigHolder) Get() LimitsConfig {
	return h.current.Load().(LimitsConfig)
}

func applyLimitsDefaults(cfg *LimitsConfig, defaults LimitsConfig) {
	if cfg.Anonymous.DailyLimit == 0 {
		cfg.Anonymous = defaults.Anonymous
	}
	if cfg.Anonymous.ResetIntervalHours == 0 {
		cfg.Anonymous.ResetIntervalHours = defaults.Anonymous.ResetIntervalHours
	}
	if cfg.LowTrust.DailyLimit == 0 {
		cfg.LowTrust = defaults.LowTrust
	}
	if cfg.LowTrust.ResetIntervalHours == 0 {
		cfg.LowTrust.ResetIntervalHours = defaults.LowTrust.ResetIntervalHours
	}
	if cfg.DowngradeMinMonths == 0 {
		cfg.DowngradeMinMonths = defaults.DowngradeMinMonths
	}
	if cfg.DowngradeMinPayments == 0 {
		cfg.DowngradeMinPayments = defaults.DowngradeMinPayments
	}
}

func validateLimitsConfig(cfg LimitsConfig) error {
	if cfg.Anonymous.DailyLimit < 0 || cfg.LowTrust.DailyLimit < 0 {
		return errors.New("limits daily limit cannot be negative")
	}
	if cfg.Anonymous.ResetIntervalHours <= 0 || cfg.LowTrust.ResetIntervalHours <= 0 {
		return errors.New("limits reset interval must be positive")
	}
	if cfg.DowngradeMinMonths < 0 || cfg.DowngradeMinPayments < 0 {
		return errors.New("limits downgrade thresholds cannot be negative")
	}
	return nil
}
