package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CommerceConfig carries the tunables that may change without a restart.
type CommerceConfig struct {
	Pricing  PricingConfig  `mapstructure:"pricing"`
	FanOut   FanOutConfig   `mapstructure:"fanout"`
	Sequence SequenceConfig `mapstructure:"sequence"`
}

type PricingConfig struct {
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

type FanOutConfig struct {
	MaxDepth      int           `mapstructure:"maxDepth"`
	RetryInterval time.Duration `mapstructure:"retryInterval"`
	RetryBatch    int           `mapstructure:"retryBatch"`
	MaxAttempts   int           `mapstructure:"maxAttempts"`
}

type SequenceConfig struct {
	LockTTL     time.Duration `mapstructure:"lockTTL"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
}

func DefaultCommerceConfig() CommerceConfig {
	return CommerceConfig{
		Pricing: PricingConfig{CacheTTL: 90 * time.Second},
		FanOut: FanOutConfig{
			MaxDepth:      10,
			RetryInterval: time.Minute,
			RetryBatch:    20,
			MaxAttempts:   5,
		},
		Sequence: SequenceConfig{
			LockTTL:     5 * time.Second,
			MaxAttempts: 3,
		},
	}
}

type CommerceConfigHolder struct {
	current atomic.Value // holds CommerceConfig
}

// NewStaticCommerceConfigHolder pins a config; used by tests and tools.
func NewStaticCommerceConfigHolder(cfg CommerceConfig) *CommerceConfigHolder {
	holder := &CommerceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCommerceConfigHolder(log *zap.Logger) (*CommerceConfigHolder, error) {
	log = log.Named("config.commerce")
	v := viper.New()

	v.SetConfigName("commerce")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tradeway")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRADEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCommerceConfig()
	v.SetDefault("commerce.pricing.cacheTTL", defaults.Pricing.CacheTTL)
	v.SetDefault("commerce.fanout.maxDepth", defaults.FanOut.MaxDepth)
	v.SetDefault("commerce.fanout.retryInterval", defaults.FanOut.RetryInterval)
	v.SetDefault("commerce.fanout.retryBatch", defaults.FanOut.RetryBatch)
	v.SetDefault("commerce.fanout.maxAttempts", defaults.FanOut.MaxAttempts)
	v.SetDefault("commerce.sequence.lockTTL", defaults.Sequence.LockTTL)
	v.SetDefault("commerce.sequence.maxAttempts", defaults.Sequence.MaxAttempts)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeCommerceConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateCommerceConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CommerceConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeCommerceConfig(v)
			if err != nil {
				log.Warn("commerce config reload failed", zap.Error(err))
				return
			}
			if err := validateCommerceConfig(updated); err != nil {
				log.Warn("invalid commerce config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("commerce config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// decodeCommerceConfig goes through AllSettings so keys missing from a
// partial file still pick up their defaults.
func decodeCommerceConfig(v *viper.Viper) (CommerceConfig, error) {
	var root struct {
		Commerce CommerceConfig `mapstructure:"commerce"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return CommerceConfig{}, err
	}
	return root.Commerce, nil
}

func (h *CommerceConfigHolder) Get() CommerceConfig {
	if h == nil {
		return DefaultCommerceConfig()
	}
	cfg, ok := h.current.Load().(CommerceConfig)
	if !ok {
		return DefaultCommerceConfig()
	}
	return cfg
}

func validateCommerceConfig(cfg CommerceConfig) error {
	if cfg.Pricing.CacheTTL < 0 {
		return errors.New("commerce.pricing.cacheTTL cannot be negative")
	}
	if cfg.FanOut.MaxDepth <= 0 {
		return errors.New("commerce.fanout.maxDepth must be positive")
	}
	if cfg.FanOut.RetryInterval <= 0 {
		return errors.New("commerce.fanout.retryInterval must be positive")
	}
	if cfg.FanOut.RetryBatch <= 0 {
		return errors.New("commerce.fanout.retryBatch must be positive")
	}
	if cfg.FanOut.MaxAttempts <= 0 {
		return errors.New("commerce.fanout.maxAttempts must be positive")
	}
	if cfg.Sequence.LockTTL <= 0 {
		return errors.New("commerce.sequence.lockTTL must be positive")
	}
	if cfg.Sequence.MaxAttempts <= 0 {
		return errors.New("commerce.sequence.maxAttempts must be positive")
	}
	return nil
}
